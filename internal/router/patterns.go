package router

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Patterns holds the regular expressions behind the keyword signals. Each is
// matched case-insensitively. Empty fields fall back to the defaults.
type Patterns struct {
	ComplexKeywords string `yaml:"complex_keywords"`
	ComparisonWords string `yaml:"comparison_words"`
	Negation        string `yaml:"negation"`
	Subclause       string `yaml:"subclause"`
	MultiEntity     string `yaml:"multi_entity"`
}

// DefaultPatterns returns the built-in signal patterns.
func DefaultPatterns() Patterns {
	return Patterns{
		ComplexKeywords: `\b(compare|comparison|explain|difference|differences|why|how does|how do|` +
			`analyze|analyse|pros and cons|trade-?off|versus|implications|impact|` +
			`advantages|disadvantages|recommend|suggest|evaluate|assessment|` +
			`relationship between|what happens if|describe in detail)\b`,
		ComparisonWords: `\b(vs\.?|versus|better|worse|or|compared to|differ)\b`,
		Negation:        `\b(not|don't|doesn't|can't|cannot|won't|shouldn't|isn't|aren't)\b`,
		Subclause:       `(;|—|–|--|however|but\b|although|whereas|nevertheless|furthermore|moreover|on the other hand)`,
		MultiEntity:     `\b(and|both|all|each|every|multiple|several)\b`,
	}
}

// PatternFile is the on-disk shape of a pattern override file. It carries
// the evaluator's refusal pattern alongside the router's.
type PatternFile struct {
	Router  Patterns `yaml:"router"`
	Refusal string   `yaml:"refusal"`
}

// LoadPatternFile reads a YAML pattern override file.
func LoadPatternFile(path string) (PatternFile, error) {
	var pf PatternFile
	data, err := os.ReadFile(path)
	if err != nil {
		return pf, fmt.Errorf("read pattern file: %w", err)
	}
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return pf, fmt.Errorf("parse pattern file: %w", err)
	}
	return pf, nil
}

type compiled struct {
	complexKeywords *regexp.Regexp
	comparison      *regexp.Regexp
	negation        *regexp.Regexp
	subclause       *regexp.Regexp
	multiEntity     *regexp.Regexp
}

func compile(p Patterns) (compiled, error) {
	def := DefaultPatterns()
	var c compiled
	for _, f := range []struct {
		name      string
		expr, def string
		dst       **regexp.Regexp
	}{
		{"complex_keywords", p.ComplexKeywords, def.ComplexKeywords, &c.complexKeywords},
		{"comparison_words", p.ComparisonWords, def.ComparisonWords, &c.comparison},
		{"negation", p.Negation, def.Negation, &c.negation},
		{"subclause", p.Subclause, def.Subclause, &c.subclause},
		{"multi_entity", p.MultiEntity, def.MultiEntity, &c.multiEntity},
	} {
		expr := f.expr
		if expr == "" {
			expr = f.def
		}
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return compiled{}, fmt.Errorf("compile %s pattern: %w", f.name, err)
		}
		*f.dst = re
	}
	return c, nil
}
