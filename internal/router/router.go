package router

import (
	"fmt"
	"strings"

	"github.com/dgallion1/clearpath/internal/document"
)

// Classification is the model tier chosen for a query.
type Classification string

const (
	Simple  Classification = "simple"
	Complex Classification = "complex"
)

// Decision is the outcome of routing one query.
type Decision struct {
	Classification Classification `json:"classification"`
	Score          int            `json:"score"`
	Signals        []string       `json:"signals"`
	Model          string         `json:"model"`
}

// Config sets the thresholds and the model used for each tier.
type Config struct {
	ComplexityThreshold int
	MultiDocThreshold   int
	SimpleModel         string
	ComplexModel        string
}

// Router scores queries with additive, rule-based signals.
type Router struct {
	cfg Config
	re  compiled
}

// New compiles p (empty fields use the defaults) and returns a Router.
func New(cfg Config, p Patterns) (*Router, error) {
	re, err := compile(p)
	if err != nil {
		return nil, err
	}
	if cfg.ComplexityThreshold <= 0 {
		cfg.ComplexityThreshold = 3
	}
	if cfg.MultiDocThreshold <= 0 {
		cfg.MultiDocThreshold = 3
	}
	return &Router{cfg: cfg, re: re}, nil
}

// Classify scores query and picks its tier. Signals are recorded in a fixed
// order:
//
//	long_query(N words)  >= 15 words           +2
//	complex_keyword                            +2
//	multi_question_mark  two or more '?'       +1
//	comparison_words                           +1
//	negation_question    '?' and a negation    +1
//	subclause_indicator                        +1
//	multi_entity         and >= 8 words        +1
func (r *Router) Classify(query string) Decision {
	words := len(strings.Fields(query))
	score := 0
	signals := []string{}

	if words >= 15 {
		score += 2
		signals = append(signals, fmt.Sprintf("long_query(%d words)", words))
	}
	if r.re.complexKeywords.MatchString(query) {
		score += 2
		signals = append(signals, "complex_keyword")
	}
	if strings.Count(query, "?") >= 2 {
		score++
		signals = append(signals, "multi_question_mark")
	}
	if r.re.comparison.MatchString(query) {
		score++
		signals = append(signals, "comparison_words")
	}
	if strings.Contains(query, "?") && r.re.negation.MatchString(query) {
		score++
		signals = append(signals, "negation_question")
	}
	if r.re.subclause.MatchString(query) {
		score++
		signals = append(signals, "subclause_indicator")
	}
	if words >= 8 && r.re.multiEntity.MatchString(query) {
		score++
		signals = append(signals, "multi_entity")
	}

	d := Decision{Classification: Simple, Score: score, Signals: signals, Model: r.cfg.SimpleModel}
	if score >= r.cfg.ComplexityThreshold {
		d.Classification = Complex
		d.Model = r.cfg.ComplexModel
	}
	return d
}

// Upgrade promotes a simple decision to complex when results span at least
// the multi-document threshold of distinct documents. It returns a copy and
// never downgrades.
func (r *Router) Upgrade(d Decision, results []document.Result) Decision {
	out := d
	out.Signals = append([]string{}, d.Signals...)
	if d.Classification == Complex {
		return out
	}

	docs := document.DistinctDocuments(results)
	if docs >= r.cfg.MultiDocThreshold {
		out.Classification = Complex
		out.Model = r.cfg.ComplexModel
		out.Signals = append(out.Signals, fmt.Sprintf("multi_doc_upgrade(%d docs)", docs))
	}
	return out
}
