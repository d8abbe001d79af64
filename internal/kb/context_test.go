package kb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minatolabs/kbchat/internal/models"
	"github.com/minatolabs/kbchat/internal/pkg/logger"
)

func setupAssembler(t *testing.T, compatSubstring bool) (*Registry, *Aggregator, *Assembler) {
	t.Helper()
	reg, _ := testRegistry()
	agg := testAggregator(reg, nil)
	return reg, agg, NewAssembler(reg, agg, compatSubstring, logger.NewNop())
}

func TestBuildContextRendersSections(t *testing.T) {
	reg, agg, asm := setupAssembler(t, false)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, fileSource("hours.txt", "t1"), snapshotOf(
		models.Record{Section: "Opening Hours:", Content: "Mon-Fri 9-17", File: "hours.txt"},
		models.Record{Section: "Contact:", Content: "info@example.com", File: "hours.txt"},
	)))
	agg.Refresh(ctx)

	out := asm.BuildContext("t1", false)
	assert.Contains(t, out, "=== Opening Hours: ===\nMon-Fri 9-17")
	assert.Contains(t, out, "=== Contact: ===\ninfo@example.com")
}

func TestBuildContextEmptyActiveSetSentinel(t *testing.T) {
	reg, agg, asm := setupAssembler(t, false)
	ctx := context.Background()
	for _, id := range []string{"a.txt", "b.txt", "c.txt"} {
		require.NoError(t, reg.Register(ctx, fileSource(id, "t1"), snapshotOf(
			models.Record{Section: "General", Content: "body", File: id})))
		require.NoError(t, reg.SetActive(ctx, id, false))
	}
	agg.Refresh(ctx)

	assert.Equal(t, NoActiveKnowledge, asm.BuildContext("t1", false))
}

func TestBuildContextTenantIsolation(t *testing.T) {
	reg, agg, asm := setupAssembler(t, false)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, fileSource("t1.txt", "t1"), snapshotOf(
		models.Record{Section: "General", Content: "tenant one secret", File: "t1.txt"})))
	require.NoError(t, reg.Register(ctx, fileSource("t2.txt", "t2"), snapshotOf(
		models.Record{Section: "General", Content: "tenant two secret", File: "t2.txt"})))
	agg.Refresh(ctx)

	out := asm.BuildContext("t1", false)
	assert.Contains(t, out, "tenant one secret")
	assert.NotContains(t, out, "tenant two secret")

	all := asm.BuildContext("", true)
	assert.Contains(t, all, "tenant one secret")
	assert.Contains(t, all, "tenant two secret")
}

func TestBuildContextExactMatchByDefault(t *testing.T) {
	reg, agg, asm := setupAssembler(t, false)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, fileSource("report", "t1"), snapshotOf(
		// origin normalized differently at ingest time
		models.Record{Section: "General", Content: "loose origin", File: "report-2026.txt"})))
	agg.Refresh(ctx)

	// identifier "report" is a substring of origin "report-2026.txt" but not
	// an exact match, so structured filtering drops the record and the raw
	// text fallback (keyed by exact source markers) carries it instead
	out := asm.BuildContext("t1", false)
	assert.NotContains(t, out, "=== General ===")
	assert.Contains(t, out, "loose origin")
}

func TestBuildContextSubstringOptIn(t *testing.T) {
	reg, agg, asm := setupAssembler(t, true)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, fileSource("report", "t1"), snapshotOf(
		models.Record{Section: "General", Content: "loose origin", File: "report-2026.txt"})))
	agg.Refresh(ctx)

	out := asm.BuildContext("t1", false)
	assert.Contains(t, out, "=== General ===\nloose origin")
}

func TestBuildContextRawTextFallback(t *testing.T) {
	reg, agg, asm := setupAssembler(t, false)
	ctx := context.Background()
	// snapshot with text but no structured records, as older data may have
	require.NoError(t, reg.Register(ctx, fileSource("old.txt", "t1"),
		&models.Snapshot{Text: "legacy body line"}))
	agg.Refresh(ctx)

	out := asm.BuildContext("t1", false)
	assert.Equal(t, "legacy body line", out)
}

func TestBuildContextUnknownTenantSentinel(t *testing.T) {
	reg, agg, asm := setupAssembler(t, false)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, fileSource("a.txt", "t1"), snapshotOf(
		models.Record{Section: "General", Content: "body", File: "a.txt"})))
	agg.Refresh(ctx)

	assert.Equal(t, NoActiveKnowledge, asm.BuildContext("nobody", false))
}

func TestSourceMarkerParsing(t *testing.T) {
	name, ok := sourceMarker("=== source: hours.txt ===")
	require.True(t, ok)
	assert.Equal(t, "hours.txt", name)

	_, ok = sourceMarker("=== Opening Hours: ===")
	assert.False(t, ok)
}
