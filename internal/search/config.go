package search

import (
	"errors"
	"fmt"
)

// Weights is the base score of a match in each field. Title matches are
// the strongest signal, body content the weakest per occurrence.
type Weights struct {
	Title       float64 `json:"title"`
	Headings    float64 `json:"headings"`
	Keywords    float64 `json:"keywords"`
	Description float64 `json:"description"`
	Content     float64 `json:"content"`
}

// Config holds the ranking policy of an Engine.
type Config struct {
	Weights Weights `json:"weights"`
	// PositionBonus scales a substring hit by up to (1 + PositionBonus)
	// the closer it is to the start of the field.
	PositionBonus float64 `json:"position_bonus"`
	// MultiFieldBonus is added once per matched field beyond the first.
	MultiFieldBonus float64 `json:"multi_field_bonus"`
	// FuzzyPenalty multiplies fuzzy contributions so an exact hit in a
	// field always outweighs a fuzzy one.
	FuzzyPenalty   float64 `json:"fuzzy_penalty"`
	MaxContentHits int     `json:"max_content_hits"`

	DefaultLimit        int     `json:"default_limit"`
	FuzzyThreshold      float64 `json:"fuzzy_threshold"`
	SuggestionThreshold float64 `json:"suggestion_threshold"`
	DefaultSuggestions  int     `json:"default_suggestions"`

	HighlightWindow int `json:"highlight_window"`
	MaxHighlights   int `json:"max_highlights"`
}

func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Title:       10,
			Headings:    6,
			Keywords:    5,
			Description: 3,
			Content:     1,
		},
		PositionBonus:       0.5,
		MultiFieldBonus:     2,
		FuzzyPenalty:        0.7,
		MaxContentHits:      5,
		DefaultLimit:        8,
		FuzzyThreshold:      0.6,
		SuggestionThreshold: 0.5,
		DefaultSuggestions:  5,
		HighlightWindow:     100,
		MaxHighlights:       2,
	}
}

func (c Config) Validate() error {
	w := c.Weights
	if w.Content <= 0 {
		return errors.New("search weights.content must be positive")
	}
	if !(w.Title > w.Headings && w.Headings > w.Keywords && w.Keywords > w.Description && w.Description > w.Content) {
		return errors.New("search weights must be ordered title > headings > keywords > description > content")
	}
	if c.PositionBonus < 0 || c.MultiFieldBonus < 0 {
		return errors.New("search bonuses must not be negative")
	}
	if c.FuzzyPenalty <= 0 || c.FuzzyPenalty > 1 {
		return fmt.Errorf("search fuzzy_penalty %v outside (0,1]", c.FuzzyPenalty)
	}
	if c.MaxContentHits < 1 {
		return errors.New("search max_content_hits must be at least 1")
	}
	if c.DefaultLimit < 1 || c.DefaultSuggestions < 1 {
		return errors.New("search default limits must be at least 1")
	}
	for name, v := range map[string]float64{
		"fuzzy_threshold":      c.FuzzyThreshold,
		"suggestion_threshold": c.SuggestionThreshold,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("search %s %v outside (0,1]", name, v)
		}
	}
	if c.HighlightWindow < 20 {
		return errors.New("search highlight_window must be at least 20")
	}
	if c.MaxHighlights < 0 {
		return errors.New("search max_highlights must not be negative")
	}
	return nil
}
