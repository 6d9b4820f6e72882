package classifier

import (
	"context"
	"strings"
)

// Classifier suggests which of the offered categories an expense description belongs to.
// An empty result means no suggestion.
type Classifier interface {
	Suggest(ctx context.Context, description string, categories []string) string
}

// KeywordClassifier matches description words against a fixed keyword table.
type KeywordClassifier struct {
	keywords map[string][]string
}

// DefaultKeywords covers the default category set.
var DefaultKeywords = map[string][]string{
	"travel":        {"taxi", "uber", "bus", "train", "flight", "hotel", "metro", "fuel", "gas", "ticket", "parking"},
	"food":          {"lunch", "dinner", "breakfast", "coffee", "cafe", "restaurant", "pizza", "groceries", "grocery", "snack", "bakery"},
	"clothes":       {"shirt", "shoes", "jacket", "jeans", "dress", "socks", "coat", "hat"},
	"entertainment": {"movie", "cinema", "concert", "game", "netflix", "spotify", "bar", "party", "theater", "book"},
	"health":        {"pharmacy", "doctor", "dentist", "medicine", "pills", "gym", "vitamins", "clinic"},
}

func NewKeywordClassifier(keywords map[string][]string) *KeywordClassifier {
	if keywords == nil {
		keywords = DefaultKeywords
	}
	return &KeywordClassifier{keywords: keywords}
}

func (c *KeywordClassifier) Suggest(ctx context.Context, description string, categories []string) string {
	words := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
	if len(words) == 0 {
		return ""
	}

	for _, category := range categories {
		name := strings.ToLower(category)
		for _, word := range words {
			if word == name {
				return category
			}
		}
	}

	for _, category := range categories {
		for _, keyword := range c.keywords[strings.ToLower(category)] {
			for _, word := range words {
				if word == keyword {
					return category
				}
			}
		}
	}

	return ""
}

// match returns the entry of categories equal to name ignoring case.
func match(name string, categories []string) string {
	name = strings.TrimSpace(name)
	for _, category := range categories {
		if strings.EqualFold(category, name) {
			return category
		}
	}
	return ""
}
