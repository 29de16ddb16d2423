package metrics

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	documentdomain "github.com/smallbiznis/taxledger/internal/document/domain"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
)

const (
	OutcomeSuccess              = "success"
	OutcomeValidation           = "validation"
	OutcomeAccountNotConfigured = "account_not_configured"
	OutcomeUnbalanced           = "unbalanced"
	OutcomeDuplicate            = "duplicate"
	OutcomeDeadlineExceeded     = "deadline_exceeded"
	OutcomeDBLockTimeout        = "db_lock_timeout"
	OutcomeSerialization        = "serialization_failure"
	OutcomeUnknown              = "unknown"
)

// ClassifyOutcome maps an operation error to a low-cardinality outcome label.
func ClassifyOutcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeDeadlineExceeded
	case errors.Is(err, documentdomain.ErrValidation):
		return OutcomeValidation
	case errors.Is(err, ledgerdomain.ErrAccountNotConfigured):
		return OutcomeAccountNotConfigured
	case errors.Is(err, ledgerdomain.ErrUnbalancedPosting):
		return OutcomeUnbalanced
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return OutcomeDuplicate
		case "55P03":
			return OutcomeDBLockTimeout
		case "40001":
			return OutcomeSerialization
		}
	}
	return OutcomeUnknown
}
