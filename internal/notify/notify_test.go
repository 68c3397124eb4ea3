package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanMentions(t *testing.T) {
	candidates := []Recipient{
		{ID: 1, Name: "Alice Johnson"},
		{ID: 2, Name: "Bob Smith"},
		{ID: 3, Name: "Alina Petrova"},
	}

	tests := []struct {
		name string
		text string
		want []uint
	}{
		{"no mentions", "hello everyone", nil},
		{"exact first name", "hey @alice, got a minute?", []uint{1}},
		{"last name", "@smith please review", []uint{2}},
		{"prefix matches several", "@ali where are you", []uint{1, 3}},
		{"trailing punctuation stripped", "thanks @bob!", []uint{2}},
		{"bare at ignored", "meet @ 5pm", nil},
		{"duplicate mention counted once", "@bob @bob @bob", []uint{2}},
		{"unknown name", "@charlie anyone?", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ScanMentions(tc.text, candidates))
		})
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short one", Preview("  short one  "))

	long := strings.Repeat("я", 200)
	got := Preview(long)
	runes := []rune(got)
	assert.Len(t, runes, 81)
	assert.Equal(t, '…', runes[80])
}
