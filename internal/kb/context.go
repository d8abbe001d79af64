package kb

import (
	"fmt"
	"strings"

	"github.com/minatolabs/kbchat/internal/models"
	"github.com/minatolabs/kbchat/internal/pkg/logger"
)

// NoActiveKnowledge is returned by BuildContext when the caller has no active
// sources or when nothing survives origin filtering. The chat layer turns it
// into a user-facing message; it never reaches a prompt verbatim.
const NoActiveKnowledge = "NO_ACTIVE_KNOWLEDGE"

// Assembler builds the grounding text for a generation call from the current
// aggregate, scoped to what the caller may see.
type Assembler struct {
	reg *Registry
	agg *Aggregator
	log *logger.Logger

	// compatSubstring additionally admits a record whose origin merely
	// contains an eligible identifier as a substring. Off by default; exists
	// only for data ingested before identifiers were normalized.
	compatSubstring bool
}

func NewAssembler(reg *Registry, agg *Aggregator, compatSubstring bool, log *logger.Logger) *Assembler {
	return &Assembler{
		reg:             reg,
		agg:             agg,
		compatSubstring: compatSubstring,
		log:             log.With("component", "context"),
	}
}

// BuildContext renders the records the caller's active sources contribute,
// in aggregate order, as "=== <section> ===" blocks. It never fails; every
// empty or degraded path collapses to the NoActiveKnowledge sentinel.
func (a *Assembler) BuildContext(tenantID string, superadmin bool) string {
	eligible := identifierSet(a.reg.Resolve(tenantID, superadmin))
	if len(eligible) == 0 {
		return NoActiveKnowledge
	}

	agg := a.agg.Current()

	var b strings.Builder
	for _, rec := range agg.Records {
		if !a.originEligible(rec.Origin(), eligible) {
			continue
		}
		fmt.Fprintf(&b, "=== %s ===\n%s\n", rec.Section, rec.Content)
	}
	if b.Len() > 0 {
		return b.String()
	}

	if text := a.rawTextFallback(agg.RawText, eligible); text != "" {
		return text
	}
	return NoActiveKnowledge
}

// rawTextFallback filters the aggregate's raw text by its source markers,
// keeping the blocks of eligible sources. It exists for older snapshots whose
// structured records were lost but whose text survived.
func (a *Assembler) rawTextFallback(raw string, eligible map[string]struct{}) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	var (
		b       strings.Builder
		include bool
	)
	for _, line := range strings.Split(raw, "\n") {
		if name, ok := sourceMarker(line); ok {
			include = a.originEligible(name, eligible)
			continue
		}
		if include {
			b.WriteString(line + "\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func (a *Assembler) originEligible(origin string, eligible map[string]struct{}) bool {
	if origin == "" {
		return false
	}
	if _, ok := eligible[origin]; ok {
		return true
	}
	if a.compatSubstring {
		for id := range eligible {
			if strings.Contains(origin, id) {
				return true
			}
		}
	}
	return false
}

// sourceMarker parses the "=== source: <identifier> ===" delimiter lines the
// aggregator writes between contributions.
func sourceMarker(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "=== source: ") || !strings.HasSuffix(line, " ===") {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(line, "=== source: "), " ==="), true
}

func identifierSet(sources []models.Source) map[string]struct{} {
	set := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		set[s.Identifier] = struct{}{}
	}
	return set
}
