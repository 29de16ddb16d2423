package domain

import (
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func debit(account int64, minor int64) PostingLine {
	return PostingLine{AccountID: snowflake.ID(account), Debit: money.FromMinor(minor, 2), Credit: money.Zero(2)}
}

func credit(account int64, minor int64) PostingLine {
	return PostingLine{AccountID: snowflake.ID(account), Debit: money.Zero(2), Credit: money.FromMinor(minor, 2)}
}

func TestValidateBalanced(t *testing.T) {
	require.NoError(t, ValidateBalanced([]PostingLine{debit(1, 11800), credit(2, 10000), credit(3, 1800)}))

	err := ValidateBalanced([]PostingLine{debit(1, 11800), credit(2, 10000), credit(3, 1799)})
	var unbalanced *UnbalancedPostingError
	require.True(t, errors.As(err, &unbalanced))
	assert.Equal(t, "118.00", unbalanced.Debits.String())
	assert.Equal(t, "117.99", unbalanced.Credits.String())
	assert.ErrorIs(t, err, ErrUnbalancedPosting)
}

func TestValidateBalanced_RejectsMalformedLines(t *testing.T) {
	assert.ErrorIs(t, ValidateBalanced(nil), ErrEmptyPosting)

	both := PostingLine{AccountID: 1, Debit: money.FromMinor(1, 2), Credit: money.FromMinor(1, 2)}
	assert.ErrorIs(t, ValidateBalanced([]PostingLine{both}), ErrInvalidLineDirection)

	neither := PostingLine{AccountID: 1, Debit: money.Zero(2), Credit: money.Zero(2)}
	assert.ErrorIs(t, ValidateBalanced([]PostingLine{neither}), ErrInvalidLineDirection)

	negative := PostingLine{AccountID: 1, Debit: money.FromMinor(-5, 2), Credit: money.Zero(2)}
	assert.ErrorIs(t, ValidateBalanced([]PostingLine{negative}), ErrInvalidLineAmount)

	assert.ErrorIs(t, ValidateBalanced([]PostingLine{debit(0, 1), credit(2, 1)}), ErrInvalidAccount)
}

func TestAccountNotConfiguredError(t *testing.T) {
	err := error(&AccountNotConfiguredError{OrgID: 7, Role: RoleTaxPayable})
	assert.ErrorIs(t, err, ErrAccountNotConfigured)
	assert.Contains(t, err.Error(), "TAX_PAYABLE")
}
