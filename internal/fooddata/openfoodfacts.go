package fooddata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultOpenFoodFactsBaseURL = "https://world.openfoodfacts.org"

// offNutrients maps Open Food Facts per-100g keys onto our nutrient keys.
// Sodium is reported in grams and converted to milligrams.
var offNutrients = map[string]string{
	"carbohydrates_100g": "carbohydrates",
	"proteins_100g":      "protein",
	"fat_100g":           "fat",
	"fiber_100g":         "fiber",
	"sugars_100g":        "sugar",
	"sodium_100g":        "sodium",
}

// OpenFoodFactsClient queries the public Open Food Facts product search.
type OpenFoodFactsClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewOpenFoodFactsClient(baseURL string) *OpenFoodFactsClient {
	if baseURL == "" {
		baseURL = DefaultOpenFoodFactsBaseURL
	}
	return &OpenFoodFactsClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "food-api/1.0 (nutrition database builder)",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *OpenFoodFactsClient) Name() string {
	return "openfoodfacts"
}

type offSearchResponse struct {
	Products []struct {
		ProductName string         `json:"product_name"`
		ServingSize string         `json:"serving_size"`
		Nutriments  map[string]any `json:"nutriments"`
	} `json:"products"`
}

func (c *OpenFoodFactsClient) Lookup(ctx context.Context, query string) (*Facts, error) {
	params := url.Values{}
	params.Set("search_terms", query)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", "1")
	endpoint := fmt.Sprintf("%s/cgi/search.pl?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create openfoodfacts request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openfoodfacts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openfoodfacts returned status: %d", resp.StatusCode)
	}

	var body offSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode openfoodfacts response: %w", err)
	}
	if len(body.Products) == 0 {
		return nil, ErrNotFound
	}

	product := body.Products[0]
	facts := &Facts{
		Name:        product.ProductName,
		Nutrients:   make(map[string]float64),
		ServingSize: "100g",
		Source:      c.Name(),
	}
	if product.ServingSize != "" {
		facts.ServingSize = product.ServingSize
	}
	if kcal, ok := number(product.Nutriments["energy-kcal_100g"]); ok {
		facts.Calories = round1(kcal)
	}
	for key, name := range offNutrients {
		v, ok := number(product.Nutriments[key])
		if !ok {
			continue
		}
		if name == "sodium" {
			v *= 1000
		}
		facts.Nutrients[name] = round1(v)
	}
	return facts, nil
}

// number accepts the mix of JSON numbers and numeric strings that Open Food
// Facts returns for nutriments.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
