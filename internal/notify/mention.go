package notify

import "strings"

// ScanMentions extracts @name tokens from text and resolves them
// against the candidate recipients by fuzzy name match: a candidate
// matches when any word of their name starts with the token,
// case-insensitively. Returns the matched recipient ids, deduplicated.
func ScanMentions(text string, candidates []Recipient) []uint {
	var out []uint
	seen := map[uint]struct{}{}

	for _, field := range strings.Fields(text) {
		if !strings.HasPrefix(field, "@") {
			continue
		}
		token := strings.ToLower(strings.Trim(field[1:], ".,!?:;"))
		if token == "" {
			continue
		}
		for _, c := range candidates {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			if nameMatches(c.Name, token) {
				seen[c.ID] = struct{}{}
				out = append(out, c.ID)
			}
		}
	}
	return out
}

func nameMatches(name, token string) bool {
	for _, word := range strings.Fields(strings.ToLower(name)) {
		if strings.HasPrefix(word, token) {
			return true
		}
	}
	return false
}
