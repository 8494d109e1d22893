// Package nutrition holds the label-keyed nutrition lookup table that
// enriches classifier predictions.
package nutrition

import "fmt"

// Record is the nutrition entry for one food label. Amounts are per portion.
type Record struct {
	Label          string             `json:"-"`
	Calories       float64            `json:"calories"`
	Nutrients      map[string]float64 `json:"nutrients"`
	GlycemicIndex  int                `json:"glycemic_index"`
	PortionSize    string             `json:"portion_size"`
	Description    string             `json:"description"`
	DiabetesImpact string             `json:"diabetes_impact"`
}

const (
	UnknownPortion = "Unknown"
	UnknownImpact  = "Unknown impact on blood glucose levels"
)

// DefaultDescription is the description used when the store has none.
func DefaultDescription(label string) string {
	return fmt.Sprintf("This appears to be %s", label)
}

// Lookup returns the stored record for label, filling every missing field
// with its default so the response shape never depends on data completeness.
func Lookup(db map[string]Record, label string) Record {
	rec, ok := db[label]
	if !ok {
		rec = Record{}
	}
	rec.Label = label
	if rec.Nutrients == nil {
		rec.Nutrients = map[string]float64{}
	}
	if rec.Description == "" {
		rec.Description = DefaultDescription(label)
	}
	if rec.PortionSize == "" {
		rec.PortionSize = UnknownPortion
	}
	if rec.DiabetesImpact == "" {
		rec.DiabetesImpact = UnknownImpact
	}
	return rec
}
