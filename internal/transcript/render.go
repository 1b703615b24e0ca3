package transcript

import (
	"strconv"
	"strings"

	"transcript-server/internal/domain"
)

const obfuscatedWord = "*****"

// Excerpt joins the first n words with single spaces, without paragraph marks.
func Excerpt(words []domain.Word, n int) string {
	if n > len(words) {
		n = len(words)
	}
	parts := make([]string, 0, n)
	for _, w := range words[:n] {
		parts = append(parts, strings.TrimLeft(w.Text, "\n"))
	}
	return strings.Join(parts, " ")
}

// RenderText writes a plain-text transcript with a heading on every speaker
// change. Words listed in Obfuscate are masked.
func RenderText(t domain.Transcript) string {
	var b strings.Builder
	prev := ""
	for i, w := range t.Words {
		speaker := speakerHeading(w)
		if i == 0 || speaker != prev {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(speaker)
			b.WriteString(":\n")
			prev = speaker
		} else {
			b.WriteByte(' ')
		}
		text := strings.TrimLeft(w.Text, "\n")
		if t.Obfuscate[text] {
			text = obfuscatedWord
		}
		b.WriteString(text)
	}
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	return b.String()
}

func speakerHeading(w domain.Word) string {
	if !w.HasSpeaker() || *w.SpeakerID == 0 {
		return "Speaker default"
	}
	return "Speaker " + strconv.Itoa(*w.SpeakerID)
}
