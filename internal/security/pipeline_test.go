package security

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"citypay/internal/auth"
)

func amountPtr(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

func citizen() *auth.Identity {
	return &auth.Identity{ID: "user-1", DisplayName: "ana", Role: auth.RoleUser}
}

func TestPipeline_ZeroAmountStopsBeforeCustomChecks(t *testing.T) {
	calls := 0
	logger, hook := test.NewNullLogger()
	pipeline, err := NewPipeline(WithLogger(logger), WithCustomCheck(func(*auth.Identity, decimal.Decimal) bool {
		calls++
		return true
	}))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	step, ok := pipeline.Check(citizen(), amountPtr("0.00"))
	if ok {
		t.Fatalf("expected zero amount to fail")
	}
	if step != StepValidateAmount {
		t.Fatalf("expected %s, got %s", StepValidateAmount, step)
	}
	if calls != 0 {
		t.Fatalf("custom checks ran %d times", calls)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected warning log, got %+v", entry)
	}
	if entry.Data["step"] != StepValidateAmount || entry.Data["user"] != "ana" {
		t.Fatalf("unexpected log fields: %v", entry.Data)
	}
	if entry.Message != "Security check failed: Amount validation failed for user: ana" {
		t.Fatalf("unexpected message: %q", entry.Message)
	}
}

func TestPipeline_AmountBandInclusive(t *testing.T) {
	pipeline, _ := NewPipeline(WithLogger(discardLogger()))
	cases := []struct {
		amount string
		ok     bool
	}{
		{"0.01", true},
		{"10000.00", true},
		{"0.009", false},
		{"10000.01", false},
		{"15000.00", false},
	}
	for _, tc := range cases {
		if got := pipeline.PerformSecurityCheck(citizen(), amountPtr(tc.amount)); got != tc.ok {
			t.Fatalf("amount %s: expected %v, got %v", tc.amount, tc.ok, got)
		}
	}
	if pipeline.PerformSecurityCheck(citizen(), nil) {
		t.Fatalf("expected nil amount to fail")
	}
}

func TestPipeline_UserSteps(t *testing.T) {
	pipeline, _ := NewPipeline(WithLogger(discardLogger()))

	if step, ok := pipeline.Check(nil, amountPtr("5")); ok || step != StepValidateUser {
		t.Fatalf("expected nil user to fail validateUser, got %s", step)
	}
	if step, ok := pipeline.Check(&auth.Identity{ID: "u", Role: auth.RoleUser}, amountPtr("5")); ok || step != StepValidateUser {
		t.Fatalf("expected empty name to fail validateUser, got %s", step)
	}
	if step, ok := pipeline.Check(&auth.Identity{ID: "u", DisplayName: "u"}, amountPtr("5")); ok || step != StepCheckAccountStatus {
		t.Fatalf("expected missing role to fail checkAccountStatus, got %s", step)
	}
}

func TestPipeline_CustomCheckRejects(t *testing.T) {
	pipeline, _ := NewPipeline(
		WithLogger(discardLogger()),
		WithCustomCheck(func(_ *auth.Identity, amount decimal.Decimal) bool {
			return amount.LessThan(decimal.NewFromInt(500))
		}),
	)
	if step, ok := pipeline.Check(citizen(), amountPtr("750")); ok || step != StepCustomChecks {
		t.Fatalf("expected custom check failure, got %s", step)
	}
	if FailureReason(StepCustomChecks) != "Custom security checks failed" {
		t.Fatalf("unexpected reason")
	}
}

func TestNewPipeline_RejectsInvertedLimits(t *testing.T) {
	if _, err := NewPipeline(WithAmountLimits(decimal.NewFromInt(10), decimal.NewFromInt(1))); err == nil {
		t.Fatalf("expected error")
	}
}

func discardLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}
