package ledger

import (
	"errors"
	"testing"
)

func TestSplitDebitExhaustsFreeBeforePaid(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		balance  Balance
		amount   int64
		wantFree int64
		wantPaid int64
	}{
		{name: "free covers all", balance: Balance{FreeCents: 100, PaidCents: 50}, amount: 80, wantFree: 80, wantPaid: 0},
		{name: "free exactly consumed", balance: Balance{FreeCents: 100, PaidCents: 50}, amount: 100, wantFree: 100, wantPaid: 0},
		{name: "spills into paid", balance: Balance{FreeCents: 100, PaidCents: 50}, amount: 120, wantFree: 100, wantPaid: 20},
		{name: "no free cash", balance: Balance{FreeCents: 0, PaidCents: 50}, amount: 30, wantFree: 0, wantPaid: 30},
		{name: "batch purchase example", balance: Balance{FreeCents: 5000, PaidCents: 20000}, amount: 12000, wantFree: 5000, wantPaid: 7000},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			split, err := SplitDebit(testCase.balance, testCase.amount)
			if err != nil {
				test.Fatalf("split debit: %v", err)
			}
			if split.FreeCents != testCase.wantFree || split.PaidCents != testCase.wantPaid {
				test.Fatalf("expected split (%d,%d), got (%d,%d)", testCase.wantFree, testCase.wantPaid, split.FreeCents, split.PaidCents)
			}
			if split.FreeCents+split.PaidCents != testCase.amount {
				test.Fatalf("split does not sum to amount: %d+%d != %d", split.FreeCents, split.PaidCents, testCase.amount)
			}
			updated, err := ApplyDebit(testCase.balance, split)
			if err != nil {
				test.Fatalf("apply debit: %v", err)
			}
			if updated.FreeCents < 0 || updated.PaidCents < 0 {
				test.Fatalf("debit left a negative pool: %+v", updated)
			}
			if updated.TotalCents() != testCase.balance.TotalCents()-testCase.amount {
				test.Fatalf("money not conserved: %d != %d", updated.TotalCents(), testCase.balance.TotalCents()-testCase.amount)
			}
		})
	}
}

func TestSplitDebitInsufficientFundsReportsShortfall(test *testing.T) {
	test.Parallel()
	balance := Balance{FreeCents: 30, PaidCents: 40}

	_, err := SplitDebit(balance, 100)
	if !errors.Is(err, ErrInsufficientFunds) {
		test.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	var shortfall InsufficientFundsError
	if !errors.As(err, &shortfall) {
		test.Fatalf("expected InsufficientFundsError, got %T", err)
	}
	if shortfall.ShortfallCents() != 30 {
		test.Fatalf("expected shortfall 30, got %d", shortfall.ShortfallCents())
	}
	if shortfall.AvailableCents != 70 {
		test.Fatalf("expected available 70, got %d", shortfall.AvailableCents)
	}
}

func TestSplitDebitRejectsInvalidInput(test *testing.T) {
	test.Parallel()
	if _, err := SplitDebit(Balance{FreeCents: 10, PaidCents: 10}, 0); !errors.Is(err, ErrInvalidAmountCents) {
		test.Fatalf("expected ErrInvalidAmountCents for zero amount, got %v", err)
	}
	if _, err := SplitDebit(Balance{FreeCents: -1, PaidCents: 10}, 5); !errors.Is(err, ErrInvalidBalance) {
		test.Fatalf("expected ErrInvalidBalance for negative pool, got %v", err)
	}
}

func TestApplyDebitRejectsOverdraw(test *testing.T) {
	test.Parallel()
	_, err := ApplyDebit(Balance{FreeCents: 10, PaidCents: 10}, DebitSplit{FreeCents: 20, PaidCents: 0})
	if !errors.Is(err, ErrInvalidBalance) {
		test.Fatalf("expected ErrInvalidBalance, got %v", err)
	}
}
