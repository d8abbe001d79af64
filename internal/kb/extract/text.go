package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"

	"github.com/minatolabs/kbchat/internal/kb/segment"
	"github.com/minatolabs/kbchat/internal/models"
)

// Text extracts a plain-text file. Decoding never fails: UTF-8 first, then
// Shift-JIS, then Latin-1 as the last resort (Latin-1 maps every byte).
func Text(filename, tenantID string, data []byte) (*Result, error) {
	text := DecodeBytes(data)
	sections := segment.Split(text)

	var full strings.Builder
	full.WriteString(fmt.Sprintf("=== File: %s ===\n\n", filename))
	for _, s := range sections {
		full.WriteString(fmt.Sprintf("=== %s ===\n%s\n\n", s.Label, s.Content))
	}

	return &Result{
		Records:  recordsFromSections(sections, models.KindText, filename, "", tenantID),
		Sections: sections,
		Text:     full.String(),
	}, nil
}

// DecodeBytes decodes with a UTF-8, then Shift-JIS, then Latin-1 fallback
// chain. The Shift-JIS decoder substitutes U+FFFD for bytes it cannot map, so
// a replacement rune in its output means the input was not Shift-JIS.
func DecodeBytes(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	if decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(data); err == nil &&
		!strings.ContainsRune(string(decoded), utf8.RuneError) {
		return string(decoded)
	}
	decoded, _ := charmap.ISO8859_1.NewDecoder().Bytes(data)
	return string(decoded)
}
