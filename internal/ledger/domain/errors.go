package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxledger/pkg/money"
)

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidSourceType    = errors.New("invalid_source_type")
	ErrInvalidSourceID      = errors.New("invalid_source_id")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidOccurredAt    = errors.New("invalid_occurred_at")
	ErrInvalidEntryLines    = errors.New("invalid_entry_lines")
	ErrInvalidAccount       = errors.New("invalid_account")
	ErrInvalidLineAmount    = errors.New("invalid_line_amount")
	ErrInvalidLineDirection = errors.New("invalid_line_direction")
	ErrInvalidRole          = errors.New("invalid_account_role")
	ErrInvalidAccountType   = errors.New("invalid_account_type")
	ErrInvalidCode          = errors.New("invalid_code")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidWindow        = errors.New("invalid_effective_window")
	ErrDuplicateAccount     = errors.New("duplicate_account")
	ErrNotFound             = errors.New("not_found")
	ErrEmptyPosting         = errors.New("empty_posting")

	ErrAccountNotConfigured = errors.New("account_not_configured")
	ErrUnbalancedPosting    = errors.New("unbalanced_posting")
)

// AccountNotConfiguredError is a tenant setup fault: no active account is
// mapped to Role.
type AccountNotConfiguredError struct {
	OrgID snowflake.ID
	Role  AccountRole
}

func (e *AccountNotConfiguredError) Error() string {
	return fmt.Sprintf("account_not_configured: no active account for role %s (org %s)", e.Role, e.OrgID)
}

func (e *AccountNotConfiguredError) Is(target error) bool {
	return target == ErrAccountNotConfigured
}

// UnbalancedPostingError signals a defect: debits and credits differ.
type UnbalancedPostingError struct {
	Debits  money.Money
	Credits money.Money
}

func (e *UnbalancedPostingError) Error() string {
	return fmt.Sprintf("unbalanced_posting: debits %s != credits %s", e.Debits, e.Credits)
}

func (e *UnbalancedPostingError) Is(target error) bool {
	return target == ErrUnbalancedPosting
}
