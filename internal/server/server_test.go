package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxledger/internal/config"
	documentdomain "github.com/smallbiznis/taxledger/internal/document/domain"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
	"github.com/smallbiznis/taxledger/internal/orgcontext"
	"github.com/smallbiznis/taxledger/internal/ratelimit"
	taxdomain "github.com/smallbiznis/taxledger/internal/tax/domain"
	"github.com/smallbiznis/taxledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDocumentService struct {
	err        error
	lastOrg    snowflake.ID
	lastCreate documentdomain.CreateRequest
}

func (f *fakeDocumentService) capture(ctx context.Context) {
	f.lastOrg, _ = orgcontext.OrgIDFromContext(ctx)
}

func (f *fakeDocumentService) Preview(ctx context.Context, req documentdomain.ComputeRequest) (*documentdomain.PreviewResponse, error) {
	f.capture(ctx)
	if f.err != nil {
		return nil, f.err
	}
	totals := documentdomain.ZeroTotals("USD", 2)
	totals.Total = money.New(decimal.RequireFromString("110"), 2)
	return &documentdomain.PreviewResponse{Direction: documentdomain.DirectionSale, Totals: totals}, nil
}

func (f *fakeDocumentService) Create(ctx context.Context, req documentdomain.CreateRequest) (*documentdomain.DocumentResponse, error) {
	f.capture(ctx)
	f.lastCreate = req
	if f.err != nil {
		return nil, f.err
	}
	return &documentdomain.DocumentResponse{ID: "1", Direction: documentdomain.DirectionSale, Currency: "USD"}, nil
}

func (f *fakeDocumentService) GetByID(ctx context.Context, id string) (*documentdomain.DocumentResponse, error) {
	f.capture(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return &documentdomain.DocumentResponse{ID: id}, nil
}

func (f *fakeDocumentService) List(ctx context.Context, req documentdomain.ListRequest) (*documentdomain.ListResponse, error) {
	f.capture(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return &documentdomain.ListResponse{Documents: []documentdomain.DocumentResponse{{ID: "1"}}}, nil
}

type fakeTaxService struct {
	err error
}

func (f *fakeTaxService) Create(ctx context.Context, req taxdomain.CreateRequest) (*taxdomain.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &taxdomain.Response{ID: "7", Code: req.Code, Name: req.Name}, nil
}

func (f *fakeTaxService) List(ctx context.Context, req taxdomain.ListRequest) ([]taxdomain.Response, error) {
	return []taxdomain.Response{}, f.err
}

func (f *fakeTaxService) Update(ctx context.Context, req taxdomain.UpdateRequest) (*taxdomain.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &taxdomain.Response{ID: req.ID}, nil
}

func (f *fakeTaxService) Disable(ctx context.Context, id string) (*taxdomain.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &taxdomain.Response{ID: id}, nil
}

type fakeLedgerService struct{}

func (fakeLedgerService) CreateAccount(ctx context.Context, req ledgerdomain.CreateAccountRequest) (*ledgerdomain.AccountResponse, error) {
	return &ledgerdomain.AccountResponse{ID: "9", Code: req.Code}, nil
}

func (fakeLedgerService) ListAccounts(ctx context.Context) ([]ledgerdomain.AccountResponse, error) {
	return []ledgerdomain.AccountResponse{}, nil
}

func (fakeLedgerService) ListAccountRules(ctx context.Context) ([]ledgerdomain.AccountRuleResponse, error) {
	return []ledgerdomain.AccountRuleResponse{}, nil
}

func (fakeLedgerService) UpsertAccountRule(ctx context.Context, req ledgerdomain.UpsertAccountRuleRequest) (*ledgerdomain.AccountRuleResponse, error) {
	return nil, ledgerdomain.ErrNotFound
}

func (fakeLedgerService) SeedDefaultChart(ctx context.Context) error { return nil }

type fakeLedgerStore struct {
	currency string
}

func (f *fakeLedgerStore) PersistTransaction(ctx context.Context, tx ledgerdomain.LedgerTransaction) (snowflake.ID, error) {
	return 0, nil
}

func (f *fakeLedgerStore) GetEntry(ctx context.Context, orgID, entryID snowflake.ID) (*ledgerdomain.EntryResponse, error) {
	return nil, ledgerdomain.ErrNotFound
}

func (f *fakeLedgerStore) TrialBalance(ctx context.Context, orgID snowflake.ID, currency string) ([]ledgerdomain.AccountBalance, error) {
	f.currency = currency
	return []ledgerdomain.AccountBalance{}, nil
}

type testServer struct {
	engine *gin.Engine
	docs   *fakeDocumentService
	taxes  *fakeTaxService
	store  *fakeLedgerStore
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	return newLimitedTestServer(t, cfg, nil)
}

func newLimitedTestServer(t *testing.T, cfg config.Config, limiter *ratelimit.DocumentLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	docs := &fakeDocumentService{}
	taxes := &fakeTaxService{}
	store := &fakeLedgerStore{}
	srv := NewServer(ServerParams{
		Gin:         NewEngine(cfg, nil),
		Cfg:         cfg,
		Log:         zap.NewNop(),
		DocumentSvc: docs,
		TaxSvc:      taxes,
		LedgerSvc:   fakeLedgerService{},
		LedgerStore: store,
		Limiter:     limiter,
	})
	return &testServer{engine: srv.Engine(), docs: docs, taxes: taxes, store: store}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

var orgHeader = map[string]string{orgcontext.HeaderOrgID: "42"}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestOrgContext(t *testing.T) {
	t.Run("missing header without default", func(t *testing.T) {
		ts := newTestServer(t, config.Config{})
		rec := ts.do(t, http.MethodGet, "/api/documents", "", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		payload := decodeError(t, rec)
		require.Len(t, payload.Errors, 1)
		assert.Equal(t, "org_id", payload.Errors[0].Field)
	})

	t.Run("invalid header", func(t *testing.T) {
		ts := newTestServer(t, config.Config{})
		rec := ts.do(t, http.MethodGet, "/api/documents", "", map[string]string{orgcontext.HeaderOrgID: "acme"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("falls back to default org", func(t *testing.T) {
		ts := newTestServer(t, config.Config{DefaultOrgID: 7})
		rec := ts.do(t, http.MethodGet, "/api/documents", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, snowflake.ID(7), ts.docs.lastOrg)
	})

	t.Run("header wins over default", func(t *testing.T) {
		ts := newTestServer(t, config.Config{DefaultOrgID: 7})
		rec := ts.do(t, http.MethodGet, "/api/documents/5", "", orgHeader)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, snowflake.ID(42), ts.docs.lastOrg)
	})
}

func TestPreviewDocument(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	rec := ts.do(t, http.MethodPost, "/api/documents/preview",
		`{"direction":"SALE","currency":"USD","items":[{"description":"a","quantity":"1","unit_price":"100"}]}`, orgHeader)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Direction string `json:"direction"`
			Totals    struct {
				Total string `json:"total"`
			} `json:"totals"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SALE", body.Data.Direction)
	assert.Equal(t, "110.00", body.Data.Totals.Total)
}

func TestCreateDocument(t *testing.T) {
	t.Run("idempotency header", func(t *testing.T) {
		ts := newTestServer(t, config.Config{})
		rec := ts.do(t, http.MethodPost, "/api/documents", `{"direction":"SALE","currency":"USD","items":[]}`,
			map[string]string{orgcontext.HeaderOrgID: "42", "Idempotency-Key": "abc"})
		require.Equal(t, http.StatusCreated, rec.Code)
		require.NotNil(t, ts.docs.lastCreate.IdempotencyKey)
		assert.Equal(t, "abc", *ts.docs.lastCreate.IdempotencyKey)
		assert.Equal(t, documentdomain.Direction("SALE"), ts.docs.lastCreate.Direction)
	})

	t.Run("malformed body", func(t *testing.T) {
		ts := newTestServer(t, config.Config{})
		rec := ts.do(t, http.MethodPost, "/api/documents", `{"direction":`, orgHeader)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDocumentErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		errType  string
		code     string
		firstErr string
	}{
		{
			name: "validation errors keep field paths",
			err: documentdomain.ValidationErrors{
				{Field: "items[0].tax_lines[1].rate", Code: documentdomain.CodeInvalidRate, Message: "bad rate"},
				{Field: "currency", Code: documentdomain.CodeInvalidFormat, Message: "bad currency"},
			},
			status:   http.StatusBadRequest,
			errType:  "validation_error",
			firstErr: "items[0].tax_lines[1].rate",
		},
		{
			name:    "account not configured",
			err:     fmt.Errorf("post: %w", &ledgerdomain.AccountNotConfiguredError{OrgID: 42, Role: ledgerdomain.RoleTaxPayable}),
			status:  http.StatusUnprocessableEntity,
			errType: "account_not_configured",
			code:    string(ledgerdomain.RoleTaxPayable),
		},
		{
			name:    "unbalanced posting",
			err:     &ledgerdomain.UnbalancedPostingError{Debits: money.Zero(2), Credits: money.Zero(2)},
			status:  http.StatusInternalServerError,
			errType: "internal_error",
			code:    "unbalanced_posting",
		},
		{
			name:    "duplicate number",
			err:     documentdomain.ErrDuplicateNumber,
			status:  http.StatusConflict,
			errType: "conflict",
			code:    "duplicate_document_number",
		},
		{
			name:    "not found",
			err:     documentdomain.ErrNotFound,
			status:  http.StatusNotFound,
			errType: "not_found",
		},
		{
			name:    "rate limited",
			err:     ErrRateLimited,
			status:  http.StatusTooManyRequests,
			errType: "rate_limited",
		},
		{
			name:    "unexpected",
			err:     fmt.Errorf("boom"),
			status:  http.StatusInternalServerError,
			errType: "internal_error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, config.Config{})
			ts.docs.err = tc.err

			rec := ts.do(t, http.MethodPost, "/api/documents", `{"direction":"SALE","currency":"USD","items":[]}`, orgHeader)
			require.Equal(t, tc.status, rec.Code)
			payload := decodeError(t, rec)
			assert.Equal(t, tc.errType, payload.Type)
			assert.Equal(t, tc.code, payload.Code)
			if tc.firstErr != "" {
				require.NotEmpty(t, payload.Errors)
				assert.Equal(t, tc.firstErr, payload.Errors[0].Field)
			}
		})
	}
}

func TestTaxRuleRoutes(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	rec := ts.do(t, http.MethodPost, "/api/tax_rules", `{"code":" VAT10 ","name":"VAT","tax_type":"STANDARD","rate":"10"}`, orgHeader)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"VAT10"`)

	rec = ts.do(t, http.MethodGet, "/api/tax_rules?is_enabled=maybe", "", orgHeader)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.taxes.err = taxdomain.ErrDuplicateTaxCode
	rec = ts.do(t, http.MethodPost, "/api/tax_rules", `{"code":"VAT10","name":"VAT","tax_type":"STANDARD","rate":"10"}`, orgHeader)
	assert.Equal(t, http.StatusConflict, rec.Code)

	ts.taxes.err = taxdomain.ErrInvalidTaxRate
	rec = ts.do(t, http.MethodPatch, "/api/tax_rules/7", `{"rate":"-1"}`, orgHeader)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "rate", payload.Errors[0].Field)
}

func TestLedgerRoutes(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	rec := ts.do(t, http.MethodGet, "/api/ledger/trial_balance", "", orgHeader)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/ledger/trial_balance?currency=usd", "", orgHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "USD", ts.store.currency)

	rec = ts.do(t, http.MethodGet, "/api/ledger/entries/abc", "", orgHeader)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/ledger/entries/123", "", orgHeader)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/ledger/account_rules", `{"role":"REVENUE","account_code":"4000"}`, orgHeader)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/ledger/seed", "", orgHeader)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSeedInProgressMapsToConflict(t *testing.T) {
	status, payload := mapError(ErrSeedInProgress)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "seed_in_progress", payload.Code)
}

func TestNoRoute(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	rec := ts.do(t, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestLimiterOutageFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := ratelimit.New(client, config.RateLimitConfig{DocumentWriteRate: 1, DocumentWriteBurst: 1}, zap.NewNop())
	require.NoError(t, err)

	ts := newLimitedTestServer(t, config.Config{}, limiter)

	rec := ts.do(t, http.MethodPost, "/api/ledger/seed", "", orgHeader)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/documents", `{"direction":"SALE","currency":"USD","items":[]}`, orgHeader)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
