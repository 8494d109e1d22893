package fooddata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultUSDABaseURL = "https://api.nal.usda.gov/fdc/v1"

// usdaNutrients maps FoodData Central nutrient names onto our nutrient keys.
var usdaNutrients = map[string]string{
	"Carbohydrate, by difference":    "carbohydrates",
	"Protein":                        "protein",
	"Total lipid (fat)":              "fat",
	"Fiber, total dietary":           "fiber",
	"Sugars, total including NLEA":   "sugar",
	"Total Sugars":                   "sugar",
	"Sodium, Na":                     "sodium",
	"Potassium, K":                   "potassium",
	"Cholesterol":                    "cholesterol",
	"Vitamin A, IU":                  "vitamin_a",
	"Vitamin C, total ascorbic acid": "vitamin_c",
	"Calcium, Ca":                    "calcium",
	"Iron, Fe":                       "iron",
}

// USDAClient queries the FoodData Central search API.
type USDAClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewUSDAClient(baseURL, apiKey string) *USDAClient {
	if baseURL == "" {
		baseURL = DefaultUSDABaseURL
	}
	return &USDAClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *USDAClient) Name() string {
	return "usda"
}

type usdaSearchResponse struct {
	Foods []struct {
		Description     string  `json:"description"`
		ServingSize     float64 `json:"servingSize"`
		ServingSizeUnit string  `json:"servingSizeUnit"`
		FoodNutrients   []struct {
			NutrientName string  `json:"nutrientName"`
			UnitName     string  `json:"unitName"`
			Value        float64 `json:"value"`
		} `json:"foodNutrients"`
	} `json:"foods"`
}

func (c *USDAClient) Lookup(ctx context.Context, query string) (*Facts, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", query)
	params.Set("pageSize", "1")
	endpoint := fmt.Sprintf("%s/foods/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create usda request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usda request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usda returned status: %d", resp.StatusCode)
	}

	var body usdaSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode usda response: %w", err)
	}
	if len(body.Foods) == 0 {
		return nil, ErrNotFound
	}

	food := body.Foods[0]
	facts := &Facts{
		Name:        food.Description,
		Nutrients:   make(map[string]float64),
		ServingSize: "100g",
		Source:      c.Name(),
	}
	if food.ServingSize > 0 && food.ServingSizeUnit != "" {
		facts.ServingSize = fmt.Sprintf("%g%s", food.ServingSize, strings.ToLower(food.ServingSizeUnit))
	}
	for _, n := range food.FoodNutrients {
		if n.NutrientName == "Energy" && strings.EqualFold(n.UnitName, "KCAL") {
			facts.Calories = round1(n.Value)
			continue
		}
		if key, ok := usdaNutrients[n.NutrientName]; ok {
			facts.Nutrients[key] = round1(n.Value)
		}
	}
	return facts, nil
}
