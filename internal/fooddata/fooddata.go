// Package fooddata fetches nutrition facts for a food name from public
// food-data APIs.
package fooddata

import (
	"context"
	"errors"
	"math"
	"strings"
)

var ErrNotFound = errors.New("food not found")

// Facts are the nutrition values a source reports for one food.
type Facts struct {
	Name        string
	Calories    float64
	Nutrients   map[string]float64
	ServingSize string
	Source      string
}

// Source looks up nutrition facts by free-text query.
type Source interface {
	Name() string
	Lookup(ctx context.Context, query string) (*Facts, error)
}

// QueryForLabel turns a class label such as "french_onion_soup" into a
// search query.
func QueryForLabel(label string) string {
	return strings.ReplaceAll(label, "_", " ")
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// DefaultSources returns USDA FoodData Central as the primary source when an
// API key is set, and Open Food Facts as the fallback.
func DefaultSources(usdaAPIKey string) (primary, fallback Source) {
	if usdaAPIKey != "" {
		primary = NewUSDAClient("", usdaAPIKey)
	}
	return primary, NewOpenFoodFactsClient("")
}
