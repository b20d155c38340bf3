package ledger

import "fmt"

// SplitDebit computes how a debit of amount is taken from a balance: free
// cash is exhausted first, then paid cash. The split never leaves either pool
// negative; a balance that cannot cover the amount yields an
// InsufficientFundsError and no split.
func SplitDebit(balance Balance, amountCents int64) (DebitSplit, error) {
	if balance.FreeCents < 0 || balance.PaidCents < 0 {
		return DebitSplit{}, fmt.Errorf("%w: negative pool", ErrInvalidBalance)
	}
	if amountCents <= 0 {
		return DebitSplit{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
	}
	available := balance.TotalCents()
	if available < amountCents {
		return DebitSplit{}, InsufficientFundsError{
			RequestedCents: amountCents,
			AvailableCents: available,
		}
	}
	freeUsed := balance.FreeCents
	if freeUsed > amountCents {
		freeUsed = amountCents
	}
	return DebitSplit{
		FreeCents: freeUsed,
		PaidCents: amountCents - freeUsed,
	}, nil
}

// ApplyDebit returns the balance after taking the split out of it.
func ApplyDebit(balance Balance, split DebitSplit) (Balance, error) {
	updated := Balance{
		FreeCents: balance.FreeCents - split.FreeCents,
		PaidCents: balance.PaidCents - split.PaidCents,
	}
	if updated.FreeCents < 0 || updated.PaidCents < 0 {
		return Balance{}, fmt.Errorf("%w: debit exceeds pool", ErrInvalidBalance)
	}
	return updated, nil
}
