// File: pkg/artifact/encoding.go
package artifact

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Encodings lists the names accepted for HTML snapshots.
var Encodings = []string{"utf-8", "ascii", "latin-1", "windows-1252"}

// newEncoder returns a transformer that writes text in the named encoding,
// silently dropping every character the encoding cannot represent. Ill-formed
// UTF-8 in the input is dropped too.
func newEncoder(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return runes.Remove(runes.In(illFormed)), nil
	case "ascii", "us-ascii":
		return runes.Remove(runes.Predicate(func(r rune) bool {
			return r > unicode.MaxASCII || r == utf8.RuneError
		})), nil
	case "latin-1", "latin1", "iso-8859-1":
		return dropUnmappable(charmap.ISO8859_1), nil
	case "windows-1252", "cp1252":
		return dropUnmappable(charmap.Windows1252), nil
	}
	return nil, fmt.Errorf("unsupported artifact encoding %q (choose from %s)", name, strings.Join(Encodings, ", "))
}

// illFormed contains only utf8.RuneError, which is what runes transformers
// report for invalid input bytes.
var illFormed = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: utf8.RuneError, Hi: utf8.RuneError, Stride: 1}},
}

func dropUnmappable(cm *charmap.Charmap) transform.Transformer {
	return transform.Chain(
		runes.Remove(runes.Predicate(func(r rune) bool {
			if r == utf8.RuneError {
				return true
			}
			_, ok := cm.EncodeRune(r)
			return !ok
		})),
		cm.NewEncoder(),
	)
}

// Encode renders s in the named encoding, dropping unrepresentable characters.
func Encode(s, encoding string) ([]byte, error) {
	t, err := newEncoder(encoding)
	if err != nil {
		return nil, err
	}
	out, _, err := transform.String(t, s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page source as %s: %w", encoding, err)
	}
	return []byte(out), nil
}
