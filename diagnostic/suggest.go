package diagnostic

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed suggestions.yaml
var suggestionsYAML []byte

type suggestionRule struct {
	Match      string `yaml:"match"`
	Suggestion string `yaml:"suggestion"`
}

type suggestionTable struct {
	Generic string           `yaml:"generic"`
	Rules   []suggestionRule `yaml:"rules"`
}

var suggestions = mustLoadSuggestions(suggestionsYAML)

func loadSuggestions(data []byte) (suggestionTable, error) {
	var table suggestionTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return suggestionTable{}, fmt.Errorf("parse suggestion table: %w", err)
	}
	for i := range table.Rules {
		table.Rules[i].Match = strings.ToLower(table.Rules[i].Match)
	}
	return table, nil
}

func mustLoadSuggestions(data []byte) suggestionTable {
	table, err := loadSuggestions(data)
	if err != nil {
		panic(err)
	}
	return table
}

// Suggest returns the fix hint of the first rule whose substring occurs in
// message, or the generic hint.
func Suggest(message string) string {
	lower := strings.ToLower(message)
	for _, rule := range suggestions.Rules {
		if strings.Contains(lower, rule.Match) {
			return rule.Suggestion
		}
	}
	return suggestions.Generic
}
