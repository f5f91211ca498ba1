package negotiation

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var defaultScenarios []byte

// ErrUnknownScenario is returned for a key missing from the catalog.
var ErrUnknownScenario = errors.New("unknown scenario")

// Scenario is the public item description plus each side's secret limits.
type Scenario struct {
	Key               string  `json:"key" yaml:"key"`
	Name              string  `json:"name" yaml:"name"`
	ItemName          string  `json:"item_name" yaml:"item_name"`
	ListPrice         float64 `json:"list_price" yaml:"list_price"`
	SellerPersonality string  `json:"seller_personality" yaml:"seller_personality"`
	SellerMinPrice    float64 `json:"seller_min_price" yaml:"seller_min_price"`
	BuyerDesireLevel  string  `json:"buyer_desire_level" yaml:"buyer_desire_level"`
	BuyerTargetPrice  float64 `json:"buyer_target_price" yaml:"buyer_target_price"`
	BuyerMaxPrice     float64 `json:"buyer_max_price" yaml:"buyer_max_price"`
}

// Validate checks the prices are usable.
func (s Scenario) Validate() error {
	switch {
	case s.Key == "":
		return errors.New("scenario key is required")
	case s.ListPrice <= 0:
		return fmt.Errorf("scenario %s: list price must be positive", s.Key)
	case s.SellerMinPrice > s.ListPrice:
		return fmt.Errorf("scenario %s: seller minimum above list price", s.Key)
	case s.BuyerTargetPrice > s.BuyerMaxPrice:
		return fmt.Errorf("scenario %s: buyer target above buyer maximum", s.Key)
	}
	return nil
}

// Catalog holds scenarios in file order.
type Catalog struct {
	scenarios []Scenario
}

// DefaultCatalog returns the built-in scenarios.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultScenarios)
	if err != nil {
		panic(fmt.Sprintf("embedded scenarios: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML list of scenarios from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML list of scenarios.
func ParseCatalog(data []byte) (*Catalog, error) {
	var list []Scenario
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}
	seen := map[string]bool{}
	for _, s := range list {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.Key] {
			return nil, fmt.Errorf("duplicate scenario %s", s.Key)
		}
		seen[s.Key] = true
	}
	return &Catalog{scenarios: list}, nil
}

// Merge adds or replaces scenarios from other.
func (c *Catalog) Merge(other *Catalog) {
	for _, s := range other.scenarios {
		replaced := false
		for i := range c.scenarios {
			if c.scenarios[i].Key == s.Key {
				c.scenarios[i] = s
				replaced = true
			}
		}
		if !replaced {
			c.scenarios = append(c.scenarios, s)
		}
	}
}

// Keys lists scenario keys in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.scenarios))
	for i, s := range c.scenarios {
		keys[i] = s.Key
	}
	return keys
}

// All returns every scenario.
func (c *Catalog) All() []Scenario {
	return append([]Scenario(nil), c.scenarios...)
}

// Get looks a scenario up by key.
func (c *Catalog) Get(key string) (Scenario, error) {
	for _, s := range c.scenarios {
		if s.Key == key {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("%w: %s", ErrUnknownScenario, key)
}
