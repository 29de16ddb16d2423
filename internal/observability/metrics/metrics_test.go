package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	documentdomain "github.com/smallbiznis/taxledger/internal/document/domain"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("direction", "SALE"),
		attribute.String("org_id", "456"),
		attribute.String("outcome", "success"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("direction"), attrs[0].Key)
	assert.Equal(t, attribute.Key("outcome"), attrs[1].Key)
}

func TestClassifyOutcome(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: OutcomeSuccess},
		{name: "deadline", err: fmt.Errorf("resolve: %w", context.DeadlineExceeded), want: OutcomeDeadlineExceeded},
		{name: "validation", err: &documentdomain.ValidationError{Field: "items", Code: documentdomain.CodeRequired}, want: OutcomeValidation},
		{name: "account", err: &ledgerdomain.AccountNotConfiguredError{Role: ledgerdomain.RoleRevenue}, want: OutcomeAccountNotConfigured},
		{name: "unbalanced", err: ledgerdomain.ErrUnbalancedPosting, want: OutcomeUnbalanced},
		{name: "duplicate", err: &pgconn.PgError{Code: "23505"}, want: OutcomeDuplicate},
		{name: "lock", err: &pgconn.PgError{Code: "55P03"}, want: OutcomeDBLockTimeout},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: OutcomeSerialization},
		{name: "other", err: errors.New("boom"), want: OutcomeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyOutcome(tc.err))
		})
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordDocument(context.Background(), "preview", "SALE", OutcomeSuccess)
	m.RecordPosting(context.Background(), "SALE", OutcomeSuccess)
	m.RecordLedgerEntry(context.Background(), "invoice")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordPosting(context.Background(), "PURCHASE", OutcomeSuccess)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	httpMetrics := NewHTTPMetrics(Config{ServiceName: "taxledger", Environment: "test"}, registry)

	r := gin.New()
	r.Use(GinMiddleware(httpMetrics))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(httpMetrics.requests.WithLabelValues("GET", "/health", "200")))
}
