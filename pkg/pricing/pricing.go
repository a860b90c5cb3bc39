// Package pricing estimates the USD cost of a completion from token counts.
package pricing

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var defaultTable []byte

// Rate is the USD cost per million tokens.
type Rate struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// Table maps model name prefixes to rates.
type Table struct {
	Models map[string]Rate `yaml:"models"`
}

// Parse decodes a YAML price table.
func Parse(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("parse price table: %w", err)
	}
	if t.Models == nil {
		t.Models = map[string]Rate{}
	}
	return t, nil
}

// Default returns the embedded price table.
func Default() Table {
	t, err := Parse(defaultTable)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the rate whose key is the longest prefix of model.
func (t Table) Lookup(model string) (Rate, bool) {
	best := ""
	var rate Rate
	for prefix, r := range t.Models {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best, rate = prefix, r
		}
	}
	return rate, best != ""
}

// Cost returns the price of a single exchange. The boolean is false when the
// model has no known rate.
func (t Table) Cost(model string, inputTokens, outputTokens int) (float64, bool) {
	rate, ok := t.Lookup(model)
	if !ok {
		return 0, false
	}
	cost := float64(inputTokens)*rate.Input/1_000_000 + float64(outputTokens)*rate.Output/1_000_000
	return cost, true
}

// Format renders a cost the way the price listener prints it.
func Format(cost float64) string {
	return fmt.Sprintf("$%.3f", cost)
}
