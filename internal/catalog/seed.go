package catalog

import (
	_ "embed"
	"encoding/json"
)

//go:embed seed.json
var seedJSON []byte

// Seed returns the catalog a fresh storefront starts with.
func Seed() []Product {
	var ps []Product
	if err := json.Unmarshal(seedJSON, &ps); err != nil {
		panic("catalog: bad embedded seed: " + err.Error())
	}
	return ps
}
