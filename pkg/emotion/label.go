// Package emotion maps the backend's free-form emotion strings onto a
// closed set of labels and plays a matching gesture on the robot.
//
// Each label has an ordered list of candidate actions. The Resolver
// remembers the last candidate that actually played and tries it first
// next time, so a robot missing some animation sets converges on the
// ones it has.
package emotion

import (
	"fmt"
	"strings"
)

// Label is a coarse emotion.
type Label string

const (
	Happy   Label = "happy"
	Sad     Label = "sad"
	Angry   Label = "angry"
	Neutral Label = "neutral"
)

// Labels lists every label in a stable order.
var Labels = []Label{Happy, Sad, Angry, Neutral}

// Valid reports whether l is one of the four labels.
func (l Label) Valid() bool {
	switch l {
	case Happy, Sad, Angry, Neutral:
		return true
	}
	return false
}

func (l Label) String() string { return string(l) }

// UnmarshalText accepts any raw emotion string and normalizes it.
func (l *Label) UnmarshalText(b []byte) error {
	*l = Normalize(string(b))
	return nil
}

// ParseLabel accepts only the canonical label names.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("emotion: unknown label %q", s)
	}
	return l, nil
}

// synonyms is checked in order; the first label with a matching word wins.
// Sad comes before Happy so "unhappy" is not read as happy.
var synonyms = []struct {
	label Label
	words []string
}{
	{Sad, []string{
		"sad", "unhappy", "sorrow", "upset", "depress", "gloom", "grief", "cry", "lonely", "disappoint", "hurt",
		"悲傷", "難過", "傷心", "哀", "憂", "沮喪", "失望", "哭",
	}},
	{Angry, []string{
		"angry", "anger", "furious", "rage", "annoy", "irritat", "frustrat", "hostile", "mad at",
		"生氣", "憤怒", "發怒", "惱", "氣憤", "不爽",
	}},
	{Happy, []string{
		"happy", "joy", "glad", "delight", "cheer", "excite", "love", "laugh", "smile",
		"快樂", "開心", "高興", "愉快", "喜", "興奮", "笑",
	}},
	{Neutral, []string{
		"neutral", "calm", "normal", "none",
		"中性", "平靜", "一般",
	}},
}

// Normalize maps a raw string onto a label by case-insensitive
// containment against the synonym table. Unrecognized input is Neutral.
func Normalize(raw string) Label {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Neutral
	}
	for _, entry := range synonyms {
		for _, w := range entry.words {
			if strings.Contains(s, w) {
				return entry.label
			}
		}
	}
	return Neutral
}
