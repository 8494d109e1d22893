package nutrition

import "fmt"

// FoodType is the coarse category used to estimate a glycemic index.
type FoodType string

const (
	Bread         FoodType = "bread"
	Dessert       FoodType = "dessert"
	FrozenDessert FoodType = "frozen_dessert"
	Fried         FoodType = "fried"
	Rice          FoodType = "rice"
	Noodles       FoodType = "noodles"
	Pasta         FoodType = "pasta"
	Pizza         FoodType = "pizza"
	Sandwich      FoodType = "sandwich"
	Tortilla      FoodType = "tortilla"
	Dumpling      FoodType = "dumpling"
	Soup          FoodType = "soup"
	Salad         FoodType = "salad"
	Legume        FoodType = "legume"
	Dairy         FoodType = "dairy"
	Protein       FoodType = "protein"
)

// DefaultGlycemicIndex is used for labels without a curated food type.
const DefaultGlycemicIndex = 50

var glycemicByType = map[FoodType]int{
	Bread:         70,
	Dessert:       62,
	FrozenDessert: 51,
	Fried:         72,
	Rice:          73,
	Noodles:       55,
	Pasta:         50,
	Pizza:         60,
	Sandwich:      60,
	Tortilla:      52,
	Dumpling:      60,
	Soup:          45,
	Salad:         15,
	Legume:        30,
	Dairy:         30,
	Protein:       10,
}

var foodTypes = map[string]FoodType{
	"apple_pie":               Dessert,
	"baby_back_ribs":          Protein,
	"baklava":                 Dessert,
	"beef_carpaccio":          Protein,
	"beef_tartare":            Protein,
	"beet_salad":              Salad,
	"beignets":                Fried,
	"bibimbap":                Rice,
	"bread_pudding":           Dessert,
	"breakfast_burrito":       Tortilla,
	"bruschetta":              Bread,
	"caesar_salad":            Salad,
	"cannoli":                 Dessert,
	"caprese_salad":           Salad,
	"carrot_cake":             Dessert,
	"ceviche":                 Protein,
	"cheese_plate":            Dairy,
	"cheesecake":              Dessert,
	"chicken_curry":           Protein,
	"chicken_quesadilla":      Tortilla,
	"chicken_wings":           Protein,
	"chocolate_cake":          Dessert,
	"chocolate_mousse":        Dessert,
	"churros":                 Fried,
	"clam_chowder":            Soup,
	"club_sandwich":           Sandwich,
	"crab_cakes":              Fried,
	"creme_brulee":            Dessert,
	"croque_madame":           Sandwich,
	"cup_cakes":               Dessert,
	"deviled_eggs":            Protein,
	"donuts":                  Fried,
	"dumplings":               Dumpling,
	"edamame":                 Legume,
	"eggs_benedict":           Bread,
	"escargots":               Protein,
	"falafel":                 Legume,
	"filet_mignon":            Protein,
	"fish_and_chips":          Fried,
	"foie_gras":               Protein,
	"french_fries":            Fried,
	"french_onion_soup":       Soup,
	"french_toast":            Bread,
	"fried_calamari":          Fried,
	"fried_rice":              Rice,
	"frozen_yogurt":           FrozenDessert,
	"garlic_bread":            Bread,
	"gnocchi":                 Pasta,
	"greek_salad":             Salad,
	"grilled_cheese_sandwich": Sandwich,
	"grilled_salmon":          Protein,
	"guacamole":               Salad,
	"gyoza":                   Dumpling,
	"hamburger":               Sandwich,
	"hot_and_sour_soup":       Soup,
	"hot_dog":                 Sandwich,
	"huevos_rancheros":        Tortilla,
	"hummus":                  Legume,
	"ice_cream":               FrozenDessert,
	"lasagna":                 Pasta,
	"lobster_bisque":          Soup,
	"lobster_roll_sandwich":   Sandwich,
	"macaroni_and_cheese":     Pasta,
	"macarons":                Dessert,
	"miso_soup":               Soup,
	"mussels":                 Protein,
	"nachos":                  Tortilla,
	"omelette":                Protein,
	"onion_rings":             Fried,
	"oysters":                 Protein,
	"pad_thai":                Noodles,
	"paella":                  Rice,
	"pancakes":                Bread,
	"panna_cotta":             Dessert,
	"peking_duck":             Protein,
	"pho":                     Noodles,
	"pizza":                   Pizza,
	"pork_chop":               Protein,
	"poutine":                 Fried,
	"prime_rib":               Protein,
	"pulled_pork_sandwich":    Sandwich,
	"ramen":                   Noodles,
	"ravioli":                 Pasta,
	"red_velvet_cake":         Dessert,
	"risotto":                 Rice,
	"samosa":                  Fried,
	"sashimi":                 Protein,
	"scallops":                Protein,
	"seaweed_salad":           Salad,
	"shrimp_and_grits":        Bread,
	"spaghetti_bolognese":     Pasta,
	"spaghetti_carbonara":     Pasta,
	"spring_rolls":            Fried,
	"steak":                   Protein,
	"strawberry_shortcake":    Dessert,
	"sushi":                   Rice,
	"tacos":                   Tortilla,
	"takoyaki":                Dumpling,
	"tiramisu":                Dessert,
	"tuna_tartare":            Protein,
	"waffles":                 Bread,
}

// FoodTypeOf reports the curated food type for label.
func FoodTypeOf(label string) (FoodType, bool) {
	ft, ok := foodTypes[label]
	return ft, ok
}

// EstimateGlycemicIndex maps label through its food type to a glycemic
// index estimate, falling back to DefaultGlycemicIndex.
func EstimateGlycemicIndex(label string) int {
	if ft, ok := FoodTypeOf(label); ok {
		if gi, ok := glycemicByType[ft]; ok {
			return gi
		}
	}
	return DefaultGlycemicIndex
}

// DiabetesImpact describes the expected blood glucose effect of a glycemic
// index using the usual low/medium/high bands.
func DiabetesImpact(gi int) string {
	switch {
	case gi <= 0:
		return UnknownImpact
	case gi <= 55:
		return fmt.Sprintf("Low glycemic impact (GI %d). Likely to cause a gradual rise in blood glucose.", gi)
	case gi < 70:
		return fmt.Sprintf("Moderate glycemic impact (GI %d). Pair with fiber or protein and watch the portion size.", gi)
	default:
		return fmt.Sprintf("High glycemic impact (GI %d). Can raise blood glucose quickly; consider a smaller portion.", gi)
	}
}
