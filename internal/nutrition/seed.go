package nutrition

// BuildSeed returns the small hardcoded table used when no external data
// sources are wanted.
func BuildSeed() map[string]Record {
	return map[string]Record{
		"pizza": {
			Calories: 266,
			Nutrients: map[string]float64{
				"carbohydrates": 33.0,
				"protein":       11.0,
				"fat":           10.0,
				"fiber":         2.3,
				"sugar":         3.6,
				"sodium":        598.0,
				"potassium":     184.0,
				"cholesterol":   17.0,
				"vitamin_a":     5.0,
				"vitamin_c":     2.0,
				"calcium":       18.0,
				"iron":          10.0,
			},
			GlycemicIndex:  60,
			PortionSize:    "1 slice (107g)",
			Description:    "Pizza with cheese, tomato sauce, and various toppings",
			DiabetesImpact: "Moderate glycemic impact. The combination of cheese and refined flour crust can raise blood glucose levels.",
		},
		"salad": {
			Calories: 152,
			Nutrients: map[string]float64{
				"carbohydrates": 11.0,
				"protein":       3.8,
				"fat":           11.0,
				"fiber":         3.0,
				"sugar":         2.5,
				"sodium":        170.0,
				"potassium":     350.0,
				"cholesterol":   0.0,
				"vitamin_a":     70.0,
				"vitamin_c":     40.0,
				"calcium":       5.0,
				"iron":          8.0,
			},
			GlycemicIndex:  15,
			PortionSize:    "1 bowl (150g)",
			Description:    "Mixed greens with vegetables and dressing",
			DiabetesImpact: "Low glycemic impact. High fiber content helps slow glucose absorption.",
		},
		"apple_pie": {
			Calories: 237,
			Nutrients: map[string]float64{
				"carbohydrates": 33.6,
				"protein":       2.4,
				"fat":           11.0,
				"fiber":         1.4,
				"sugar":         18.9,
				"sodium":        170.0,
				"potassium":     100.0,
				"cholesterol":   0.0,
				"vitamin_a":     1.0,
				"vitamin_c":     2.0,
				"calcium":       1.0,
				"iron":          4.0,
			},
			GlycemicIndex:  65,
			PortionSize:    "1 slice (125g)",
			Description:    "Apple pie with a sweet filling of apple, sugar, and cinnamon",
			DiabetesImpact: "High glycemic impact due to sugar content and refined flour crust.",
		},
	}
}
