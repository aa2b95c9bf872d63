// Package postprocess splits model reasoning from answers and flags the
// lecture elements present in a response.
package postprocess

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var thinkRe = regexp.MustCompile(`<think>([\s\S]*?)</think>`)

const (
	autoSplitMinLen        = 500
	autoSplitMinParagraphs = 2
)

// Thinking is a response separated into reasoning and answer.
type Thinking struct {
	HasThinking bool   `json:"has_thinking"`
	Thinking    string `json:"thinking,omitempty"`
	Final       string `json:"final_content"`
	// AutoSplit is set when no <think> tags were found and the text was cut
	// in half by length alone. It is a guess, not a parse.
	AutoSplit bool `json:"auto_split,omitempty"`
}

// Process extracts the first <think>...</think> region. The answer is the
// text with every think region removed. Untagged text longer than 500
// characters with more than two paragraphs is split at its middle character
// instead.
func Process(raw string) Thinking {
	if m := thinkRe.FindStringSubmatch(raw); m != nil {
		return Thinking{
			HasThinking: true,
			Thinking:    strings.TrimSpace(m[1]),
			Final:       strings.TrimSpace(thinkRe.ReplaceAllString(raw, "")),
		}
	}

	if n := utf8.RuneCountInString(raw); n > autoSplitMinLen && len(strings.Split(raw, "\n\n")) > autoSplitMinParagraphs {
		runes := []rune(raw)
		mid := n / 2
		return Thinking{
			HasThinking: true,
			Thinking:    strings.TrimSpace(string(runes[:mid])),
			Final:       strings.TrimSpace(string(runes[mid:])),
			AutoSplit:   true,
		}
	}

	return Thinking{Final: raw}
}
