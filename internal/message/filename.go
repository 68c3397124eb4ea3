package message

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NormalizeFilename repairs upload filenames that arrive mis-encoded.
// Two failure modes are handled:
//
//   - percent-encoded names ("r%C3%A9sum%C3%A9.pdf" -> "résumé.pdf")
//   - UTF-8 bytes mis-decoded as Latin-1 ("rÃ©sumÃ©.pdf" -> "résumé.pdf")
//
// The result is normalized to composed form (NFC) so that the same
// name always maps to the same object key regardless of the sender's
// platform. The heuristics are intentionally conservative: a name that
// doesn't look damaged passes through untouched.
func NormalizeFilename(name string) string {
	if strings.Contains(name, "%") {
		if dec, err := url.PathUnescape(name); err == nil && utf8.ValidString(dec) {
			name = dec
		}
	}
	name = repairLatin1(name)
	return norm.NFC.String(name)
}

// repairLatin1 detects strings whose runes all fit in a single byte but
// include high-byte values that reassemble into valid multi-byte UTF-8.
// That pattern means the original UTF-8 bytes were decoded as Latin-1.
func repairLatin1(s string) string {
	hasHigh := false
	for _, r := range s {
		if r > 0xFF {
			return s
		}
		if r >= 0x80 {
			hasHigh = true
		}
	}
	if !hasHigh {
		return s
	}

	b := make([]byte, 0, len(s))
	for _, r := range s {
		b = append(b, byte(r))
	}
	if !utf8.Valid(b) {
		return s
	}
	repaired := string(b)
	// Only accept the repair if it actually produced multi-byte runes;
	// otherwise the high bytes were legitimate Latin-1 text.
	if utf8.RuneCountInString(repaired) < utf8.RuneCountInString(s) {
		return repaired
	}
	return s
}
