package postprocess

import (
	"regexp"
	"strings"
)

// LectureComponents flags classroom elements found in a response. Each flag
// is tested independently.
type LectureComponents struct {
	HasWhiteboard bool `json:"has_whiteboard"`
	HasEquation   bool `json:"has_equation"`
	HasExample    bool `json:"has_example"`
	HasDiagram    bool `json:"has_diagram"`
	HasReferences bool `json:"has_references"`
	HasSections   bool `json:"has_sections"`
	HasKeyPoints  bool `json:"has_key_points"`
	HasEmojis     bool `json:"has_emojis"`
	HasTables     bool `json:"has_tables"`
	HasASCIIArt   bool `json:"has_ascii_art"`
}

var (
	exampleRe   = regexp.MustCompile(`(?i)examples?:|for example,|let's consider|consider this example`)
	diagramRe   = regexp.MustCompile(`(?i)diagram|figure|illustration`)
	referenceRe = regexp.MustCompile(`\[\d+\]|\[Source \d+\]`)
	headingRe   = regexp.MustCompile(`(?m)^#{1,6}[ \t]+\S`)
	keyPointRe  = regexp.MustCompile(`(?i)key points?|key takeaways?|in summary`)
	tableRowRe  = regexp.MustCompile(`(?m)^[ \t]*\|[^|\n]+\|[^|\n]+\|`)
	artLineRe   = regexp.MustCompile(`^[ \t]*[+|/\\][-=+|/\\_* \t]*[+|/\\][ \t]*$`)
)

const minArtLines = 3

// Classify reports which lecture components text contains.
func Classify(text string) LectureComponents {
	return LectureComponents{
		HasWhiteboard: strings.Contains(text, "```"),
		HasEquation:   strings.Contains(text, "$") || strings.Contains(text, `\begin{equation}`),
		HasExample:    exampleRe.MatchString(text),
		HasDiagram:    diagramRe.MatchString(text),
		HasReferences: referenceRe.MatchString(text) || strings.Contains(strings.ToLower(text), "according to"),
		HasSections:   headingRe.MatchString(text),
		HasKeyPoints:  keyPointRe.MatchString(text),
		HasEmojis:     hasEmoji(text),
		HasTables:     tableRowRe.MatchString(text),
		HasASCIIArt:   hasASCIIArt(text),
	}
}

func hasEmoji(text string) bool {
	for _, r := range text {
		switch {
		case r >= 0x1F300 && r <= 0x1FAFF, // pictographs, emoticons, transport, supplemental
			r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
			return true
		}
	}
	return false
}

// hasASCIIArt looks for box-drawing characters or three consecutive lines
// drawn with +, |, - and friends.
func hasASCIIArt(text string) bool {
	for _, r := range text {
		if r >= 0x2500 && r <= 0x257F {
			return true
		}
	}
	run := 0
	for _, line := range strings.Split(text, "\n") {
		if artLineRe.MatchString(line) {
			run++
			if run >= minArtLines {
				return true
			}
			continue
		}
		run = 0
	}
	return false
}
