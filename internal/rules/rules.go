// Package rules enforces cross-field business rules on a merged buyer record.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/errs"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/model"
)

//go:embed rules.yaml
var defaultCatalogue []byte

// Rule is one catalogue entry. Expr must evaluate to true when the record is acceptable.
type Rule struct {
	Code    string `yaml:"code"`
	Message string `yaml:"message"`
	Expr    string `yaml:"expr"`
}

type catalogue struct {
	Version int    `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

type compiled struct {
	Rule
	program cel.Program
}

// Engine evaluates compiled rules in catalogue order.
type Engine struct {
	rules []compiled
}

// Default compiles the embedded catalogue.
func Default() (*Engine, error) {
	rs, err := Parse(defaultCatalogue)
	if err != nil {
		return nil, err
	}
	return New(rs)
}

// Parse decodes a YAML catalogue.
func Parse(b []byte) ([]Rule, error) {
	var c catalogue
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	if c.Version != 1 {
		return nil, errors.New("rules: unsupported version")
	}
	if len(c.Rules) == 0 {
		return nil, errors.New("rules: empty")
	}
	return c.Rules, nil
}

// New compiles rules. Every expression must type-check to bool.
func New(rs []Rule) (*Engine, error) {
	env, err := cel.NewEnv(cel.Variable("r", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, err
	}
	out := make([]compiled, 0, len(rs))
	for _, r := range rs {
		r.Code = strings.TrimSpace(r.Code)
		if r.Code == "" {
			return nil, errors.New("rules: code required")
		}
		ast, issues := env.Compile(r.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rules: %s: %w", r.Code, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rules: %s: expression must be boolean", r.Code)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rules: %s: %w", r.Code, err)
		}
		out = append(out, compiled{Rule: r, program: prg})
	}
	return &Engine{rules: out}, nil
}

// Check returns a *errs.DomainError for the first violated rule, or nil.
func (e *Engine) Check(b model.Buyer) error {
	act := map[string]any{"r": Attributes(b)}
	for _, r := range e.rules {
		val, _, err := r.program.Eval(act)
		if err != nil {
			return fmt.Errorf("rules: eval %s: %w", r.Code, err)
		}
		ok, isBool := val.Value().(bool)
		if !isBool {
			return fmt.Errorf("rules: %s returned %T", r.Code, val.Value())
		}
		if !ok {
			return &errs.DomainError{Code: r.Code, Message: r.Message}
		}
	}
	return nil
}

// Attributes exposes the rule-relevant view of b. Absent optional fields are omitted.
func Attributes(b model.Buyer) map[string]any {
	m := map[string]any{
		"city":     string(b.City),
		"purpose":  string(b.Purpose),
		"timeline": string(b.Timeline),
		"source":   string(b.Source),
		"status":   string(b.Status),
	}
	if b.PropertyType != "" {
		m["propertyType"] = string(b.PropertyType)
	}
	if b.BHK != nil {
		m["bhk"] = string(*b.BHK)
	}
	if b.BudgetMin != nil {
		m["budgetMin"] = *b.BudgetMin
	}
	if b.BudgetMax != nil {
		m["budgetMax"] = *b.BudgetMax
	}
	return m
}
