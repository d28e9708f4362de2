// Package brief turns a one-sentence marketing brief into fixed semantic slots.
//
// The format is a leading main idea followed by optional "key: value"
// segments, all separated by semicolons:
//
//	Cozy autumn t-shirt launch; target: students; mood: warm; cta: 'wear your focus'.
package brief

import "strings"

const (
	KeyMainIdea = "main_idea"
	KeyTarget   = "target"
	KeyMood     = "mood"
	KeyCTA      = "cta"
)

// Components holds the parsed slots. Absent slots are empty strings.
type Components struct {
	MainIdea string `json:"main_idea"`
	Target   string `json:"target"`
	Mood     string `json:"mood"`
	CTA      string `json:"cta"`
}

// Parse never fails: segments without a colon and unknown keys are dropped.
func Parse(sentence string) Components {
	var c Components

	parts := strings.Split(sentence, ";")
	c.MainIdea = strings.TrimSpace(parts[0])

	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		value = cleanValue(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case KeyMainIdea:
			c.MainIdea = value
		case KeyTarget:
			c.Target = value
		case KeyMood:
			c.Mood = value
		case KeyCTA:
			c.CTA = value
		}
	}
	return c
}

func cleanValue(value string) string {
	value = strings.TrimSpace(value)
	// The final segment carries the sentence terminator.
	value = strings.TrimRight(value, ".")
	return strings.TrimSpace(strings.Trim(value, `'"`+" "))
}

type productRule struct {
	keywords []string
	label    string
}

// Checked in order; garments come before drinkware before footwear.
var productRules = []productRule{
	{keywords: []string{"t-shirt", "shirt"}, label: "t-shirt"},
	{keywords: []string{"mug"}, label: "mug"},
	{keywords: []string{"sneaker", "shoe"}, label: "sneaker"},
}

const FallbackProductType = "product"

// InferProductType returns the label of the first rule with a keyword contained
// in the lowercased brief, or FallbackProductType.
func InferProductType(sentence string) string {
	lower := strings.ToLower(sentence)
	for _, rule := range productRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.label
			}
		}
	}
	return FallbackProductType
}
