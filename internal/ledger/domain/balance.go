package domain

import "github.com/smallbiznis/taxledger/pkg/money"

// ValidateBalanced checks sum(debit) == sum(credit) exactly and that every
// line carries exactly one non-zero, non-negative side.
func ValidateBalanced(lines []PostingLine) error {
	if len(lines) == 0 {
		return ErrEmptyPosting
	}

	scale := lines[0].Debit.Scale()
	debits := money.Zero(scale)
	credits := money.Zero(scale)
	for _, line := range lines {
		if line.AccountID == 0 {
			return ErrInvalidAccount
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return ErrInvalidLineAmount
		}
		if line.Debit.IsZero() == line.Credit.IsZero() {
			return ErrInvalidLineDirection
		}
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}

	if !debits.Equal(credits) {
		return &UnbalancedPostingError{Debits: debits, Credits: credits}
	}
	return nil
}
