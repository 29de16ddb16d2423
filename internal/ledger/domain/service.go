package domain

import (
	"context"
	"time"
)

// Service manages the chart of accounts and role mappings.
type Service interface {
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*AccountResponse, error)
	ListAccounts(ctx context.Context) ([]AccountResponse, error)
	ListAccountRules(ctx context.Context) ([]AccountRuleResponse, error)
	UpsertAccountRule(ctx context.Context, req UpsertAccountRuleRequest) (*AccountRuleResponse, error)
	SeedDefaultChart(ctx context.Context) error
}

type CreateAccountRequest struct {
	Code string      `json:"code"`
	Name string      `json:"name"`
	Type AccountType `json:"type"`
}

type AccountResponse struct {
	ID        string      `json:"id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
}

type UpsertAccountRuleRequest struct {
	Role          AccountRole `json:"role"`
	AccountCode   string      `json:"account_code"`
	Priority      int         `json:"priority"`
	EffectiveFrom *time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time  `json:"effective_to"`
	IsEnabled     *bool       `json:"is_enabled"`
}

type AccountRuleResponse struct {
	ID            string      `json:"id"`
	Role          AccountRole `json:"role"`
	AccountID     string      `json:"account_id"`
	AccountCode   string      `json:"account_code"`
	Priority      int         `json:"priority"`
	EffectiveFrom *time.Time  `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time  `json:"effective_to,omitempty"`
	IsEnabled     bool        `json:"is_enabled"`
	UpdatedAt     time.Time   `json:"updated_at"`
}
