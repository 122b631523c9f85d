// Package rules provides CEL-based guard rules evaluated over derived
// features. Guard rules are operator-authored hard limits (velocity caps,
// amount ceilings) that force an alert regardless of the model's
// probability.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/feature"
)

// GuardRule is a single configured rule.
type GuardRule struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Reason     string `json:"reason"`
	Enabled    bool   `json:"enabled"`
}

// Engine compiles and evaluates guard rules.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledRule
}

type compiledRule struct {
	rule    GuardRule
	program cel.Program
}

// NewEngine creates a guard rule engine. The CEL environment exposes the
// derived feature set plus transaction identity fields.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("merchant_category", cel.StringType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("day_of_week", cel.IntType),
		cel.Variable("time_since_last", cel.DoubleType),
		cel.Variable("transactions_last_hour", cel.IntType),
		cel.Variable("amount_deviation", cel.DoubleType),
		cel.Variable("location_variance", cel.IntType),
		cel.Variable("user_id", cel.StringType),
		cel.Variable("merchant_id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		compiled: make(map[string]*compiledRule),
	}, nil
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule GuardRule) error {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("failed to compile rule %s: %w", rule.Name, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("rule %s: expression must return bool, got %s", rule.Name, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return fmt.Errorf("failed to create program for rule %s: %w", rule.Name, err)
	}

	e.mu.Lock()
	e.compiled[rule.Name] = &compiledRule{rule: rule, program: program}
	e.mu.Unlock()

	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(rules []GuardRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Evaluate runs all loaded rules against a transaction and its derived
// feature vector, returning the reasons of the rules that fired. A rule
// that fails to evaluate does not fire.
func (e *Engine) Evaluate(tx *domain.Transaction, vec domain.FeatureVector) []string {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiled))
	for _, r := range e.compiled {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	v := vec.Values
	activation := map[string]any{
		"amount":                 v[feature.IdxAmount],
		"merchant_category":      tx.MerchantCategory,
		"hour":                   int64(v[feature.IdxHour]),
		"day_of_week":            int64(v[feature.IdxDayOfWeek]),
		"time_since_last":        v[feature.IdxTimeSinceLast],
		"transactions_last_hour": int64(v[feature.IdxTxLastHour]),
		"amount_deviation":       v[feature.IdxAmountDeviation],
		"location_variance":      int64(v[feature.IdxLocationVariance]),
		"user_id":                tx.UserID,
		"merchant_id":            tx.MerchantID,
	}

	var reasons []string
	for _, r := range rules {
		out, _, err := r.program.Eval(activation)
		if err != nil {
			continue
		}
		if b, ok := out.(types.Bool); ok && bool(b) {
			reason := r.rule.Reason
			if reason == "" {
				reason = r.rule.Name
			}
			reasons = append(reasons, reason)
		}
	}
	return reasons
}
