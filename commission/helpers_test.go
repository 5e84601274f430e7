package commission_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	alice = commission.Manager{ID: "alice", Name: "Alice", Type: commission.ManagerRecruiter}
	bob   = commission.Manager{ID: "bob", Name: "Bob", Type: commission.ManagerRecruiter}
	carol = commission.Manager{ID: "carol", Name: "Carol", Type: commission.ManagerAccount}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func day(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

func window(start, end generic.TimePoint) generic.Window {
	return generic.Window{Start: &start, End: &end}
}

func q1() generic.Window {
	return window(day(2024, time.January, 1), day(2024, time.March, 31))
}

// fg builds an FG managed by m, with the source matching the manager type.
func fg(number, name, start string, m commission.Manager) commission.FG {
	source := commission.SourceRecruiter
	if m.Type == commission.ManagerAccount {
		source = commission.SourceAccount
	}
	return commission.FG{Number: number, Name: name, StartDate: start, Source: source, Manager: m.Ref()}
}

func pp(number, period, amount string) commission.Prepayment {
	return commission.Prepayment{FGNumber: number, Period: period, Amount: amount}
}

func percentRule(id string, value string, managers ...commission.ManagerID) commission.Rule {
	return commission.Rule{
		ID:           commission.RuleID(id),
		Name:         id,
		ManagerIDs:   managers,
		PaymentType:  commission.PaymentPercentage,
		PaymentValue: dec(value),
		ApplyTo:      commission.ApplyAll,
	}
}

// engineAt returns an engine whose clock is pinned to now.
func engineAt(now generic.TimePoint) *commission.Engine {
	e := commission.NewEngine()
	e.Now = func() generic.TimePoint { return now }
	return e
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msg ...string) {
	t.Helper()
	assert.Truef(t, got.Equal(dec(want)), "%s: want %s, got %s", strings.Join(msg, " "), want, got)
}

func mustManager(t *testing.T, r commission.Report, id commission.ManagerID) commission.ManagerPayout {
	t.Helper()
	m, ok := r.Manager(id)
	if !ok {
		t.Fatalf("manager %s missing from report", id)
	}
	return m
}
