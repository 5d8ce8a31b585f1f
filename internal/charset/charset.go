// Package charset maps text onto the single-byte alphabet the model reads.
//
// The model sees one byte per character. Text is NFC-normalised first so that
// composed forms like "é" occupy a single code point, then each rune is mapped
// through ISO-8859-1 (Latin-1), whose code points are exactly bytes 0-255.
package charset

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

var ErrUnrepresentable = errors.New("charset: character outside Latin-1")

// Encode converts s to model input bytes.
func Encode(s string) ([]byte, error) {
	s = norm.NFC.String(s)
	out := make([]byte, 0, len(s))
	for off, r := range s {
		b, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok {
			return nil, fmt.Errorf("%w: %q (U+%04X) at byte offset %d", ErrUnrepresentable, r, r, off)
		}
		out = append(out, b)
	}
	return out, nil
}

// Decode renders model bytes as a UTF-8 string.
func Decode(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(charmap.ISO8859_1.DecodeByte(c))
	}
	return sb.String()
}

// Rune returns the character for a single model byte.
func Rune(c byte) rune {
	return charmap.ISO8859_1.DecodeByte(c)
}
