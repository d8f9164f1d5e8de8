package catalog

import (
	"fmt"
	"unicode"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"

	"github.com/deploymenttheory/go-hfsplus/internal/parsers/primitives"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// DecodeNodeName decodes an HFSUniStr255: a 16-bit character count followed
// by that many UTF-16BE code units. Names are stored fully decomposed in
// canonical order; they are returned as-is, without recomposition.
func DecodeNodeName(data []byte, offset int) (string, int, error) {
	length, err := primitives.ReadU16(data, offset)
	if err != nil {
		return "", offset, err
	}
	if length > types.NameMaxChars {
		return "", offset, fmt.Errorf("%w: node name of %d characters exceeds the %d maximum",
			types.ErrInvalidRecordType, length, types.NameMaxChars)
	}

	pos := offset + 2
	units := make([]uint16, length)
	for i := range units {
		units[i], err = primitives.ReadU16(data, pos)
		if err != nil {
			return "", offset, fmt.Errorf("node name unit %d: %w", i, err)
		}
		pos += 2
	}

	return string(utf16.Decode(units)), pos, nil
}

// NormalizeName prepares a caller-supplied name for catalog key comparison.
// On-disk names are fully decomposed (a variant of NFD), so composed input
// such as terminal-entered accented characters must be decomposed before it
// can match.
func NormalizeName(name string) string {
	return norm.NFD.String(name)
}

// CompareNames orders two node names the way the catalog tree does. HFSX
// volumes with binary key comparison order names by raw UTF-16 code unit;
// everything else folds case first.
//
// Case folding here uses Unicode simple folding rather than the frozen
// folding table in the Apple specification. The tables agree for the
// characters found in practice; names differing only in esoteric foldings
// may order differently than an in-kernel comparison would.
func CompareNames(a, b string, caseSensitive bool) int {
	au := utf16.Encode([]rune(a))
	bu := utf16.Encode([]rune(b))

	for i := 0; i < len(au) && i < len(bu); i++ {
		x, y := au[i], bu[i]
		if !caseSensitive {
			x = foldUnit(x)
			y = foldUnit(y)
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(au) < len(bu):
		return -1
	case len(au) > len(bu):
		return 1
	}
	return 0
}

func foldUnit(u uint16) uint16 {
	if utf16.IsSurrogate(rune(u)) {
		return u
	}
	r := unicode.ToLower(rune(u))
	if r <= 0xFFFF {
		return uint16(r)
	}
	return u
}
