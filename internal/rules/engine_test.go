package rules

import (
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/feature"
)

func ruleTx() *domain.Transaction {
	return &domain.Transaction{
		ID:               "tx-1",
		UserID:           "user-001",
		Amount:           12000,
		MerchantID:       "merchant-99",
		MerchantCategory: "jewelry",
		Timestamp:        time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC),
	}
}

// ruleVec builds a feature vector matching the canonical layout.
func ruleVec(amount, txLastHour, deviation float64) domain.FeatureVector {
	v := make([]float64, feature.Count)
	v[feature.IdxAmount] = amount
	v[feature.IdxHour] = 3
	v[feature.IdxDayOfWeek] = 6
	v[feature.IdxTxLastHour] = txLastHour
	v[feature.IdxAmountDeviation] = deviation
	v[feature.IdxLocationVariance] = 2
	return domain.FeatureVector{TxID: "tx-1", Values: v}
}

func TestEngine(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	t.Run("LoadAndCount", func(t *testing.T) {
		rules := []GuardRule{
			{Name: "high-amount", Expression: "amount > 10000.0", Reason: "amount above hard ceiling", Enabled: true},
			{Name: "velocity-cap", Expression: "transactions_last_hour > 10", Reason: "velocity cap exceeded", Enabled: true},
			{Name: "disabled-rule", Expression: "amount > 0.0", Enabled: false},
		}
		if err := engine.LoadRules(rules); err != nil {
			t.Fatalf("failed to load rules: %v", err)
		}
		if got := engine.RulesCount(); got != 2 {
			t.Errorf("expected 2 enabled rules, got %d", got)
		}
	})

	t.Run("FiresOnRawValues", func(t *testing.T) {
		reasons := engine.Evaluate(ruleTx(), ruleVec(12000, 2, 1.5))
		if len(reasons) != 1 || reasons[0] != "amount above hard ceiling" {
			t.Errorf("expected amount rule to fire, got %v", reasons)
		}
	})

	t.Run("NoFire", func(t *testing.T) {
		if reasons := engine.Evaluate(ruleTx(), ruleVec(50, 2, 0.1)); len(reasons) != 0 {
			t.Errorf("expected no rules to fire, got %v", reasons)
		}
	})

	t.Run("MultipleFire", func(t *testing.T) {
		reasons := engine.Evaluate(ruleTx(), ruleVec(20000, 15, 1))
		if len(reasons) != 2 {
			t.Errorf("expected both rules to fire, got %v", reasons)
		}
	})

	t.Run("ReasonFallsBackToName", func(t *testing.T) {
		e, err := NewEngine()
		if err != nil {
			t.Fatalf("failed to create engine: %v", err)
		}
		if err := e.LoadRule(GuardRule{Name: "nameless-reason", Expression: "hour < 6", Enabled: true}); err != nil {
			t.Fatalf("failed to load rule: %v", err)
		}
		reasons := e.Evaluate(ruleTx(), ruleVec(50, 1, 0))
		if len(reasons) != 1 || reasons[0] != "nameless-reason" {
			t.Errorf("expected rule name as reason, got %v", reasons)
		}
	})

	t.Run("RejectsInvalidExpression", func(t *testing.T) {
		if err := engine.LoadRule(GuardRule{Name: "broken", Expression: "amount >>> 5", Enabled: true}); err == nil {
			t.Error("expected compile error")
		}
	})

	t.Run("RejectsNonBool", func(t *testing.T) {
		if err := engine.LoadRule(GuardRule{Name: "numeric", Expression: "amount + 1.0", Enabled: true}); err == nil {
			t.Error("expected error for non-bool expression")
		}
	})

	t.Run("IdentityFields", func(t *testing.T) {
		e, err := NewEngine()
		if err != nil {
			t.Fatalf("failed to create engine: %v", err)
		}
		rule := GuardRule{
			Name:       "watchlisted-merchant",
			Expression: `merchant_id == "merchant-99" && merchant_category == "jewelry"`,
			Reason:     "watchlisted merchant",
			Enabled:    true,
		}
		if err := e.LoadRule(rule); err != nil {
			t.Fatalf("failed to load rule: %v", err)
		}
		reasons := e.Evaluate(ruleTx(), ruleVec(50, 1, 0))
		if len(reasons) != 1 {
			t.Errorf("expected identity rule to fire, got %v", reasons)
		}
	})
}
