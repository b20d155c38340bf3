package ledger

const (
	operationCharge     = "charge"
	operationGrantBonus = "grant_bonus"
	operationDebit      = "debit"
	operationCreditPaid = "credit_paid"
	operationCreditFree = "credit_free"

	operationStatusOK    = "ok"
	operationStatusError = "error"
)
