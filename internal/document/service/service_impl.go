package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxledger/internal/clock"
	"github.com/smallbiznis/taxledger/internal/config"
	documentdomain "github.com/smallbiznis/taxledger/internal/document/domain"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/taxledger/internal/ledger/service"
	"github.com/smallbiznis/taxledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/taxledger/internal/observability/metrics"
	"github.com/smallbiznis/taxledger/internal/observability/tracing"
	"github.com/smallbiznis/taxledger/internal/orgcontext"
	taxdomain "github.com/smallbiznis/taxledger/internal/tax/domain"
	"github.com/smallbiznis/taxledger/pkg/db"
	"github.com/smallbiznis/taxledger/pkg/db/option"
	"github.com/smallbiznis/taxledger/pkg/db/pagination"
	"github.com/smallbiznis/taxledger/pkg/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParams struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Config          config.Config
	Currencies      *config.CurrencyConfigHolder
	TaxResolver     taxdomain.TaxLineResolver
	AccountResolver ledgerdomain.AccountResolver
	Ledger          *ledgerservice.Store
	ObsMetrics      *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	timeout         time.Duration
	currencies      *config.CurrencyConfigHolder
	taxResolver     taxdomain.TaxLineResolver
	accountResolver ledgerdomain.AccountResolver
	ledger          *ledgerservice.Store
	obsMetrics      *obsmetrics.Metrics

	documents repository.Repository[documentdomain.Document]
	items     repository.Repository[documentdomain.DocumentItem]
	taxLines  repository.Repository[documentdomain.DocumentTaxLine]
}

func NewService(p ServiceParams) documentdomain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("document.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		timeout:         p.Config.RequestTimeout,
		currencies:      p.Currencies,
		taxResolver:     p.TaxResolver,
		accountResolver: p.AccountResolver,
		ledger:          p.Ledger,
		obsMetrics:      p.ObsMetrics,

		documents: repository.ProvideStore[documentdomain.Document](p.DB),
		items:     repository.ProvideStore[documentdomain.DocumentItem](p.DB),
		taxLines:  repository.ProvideStore[documentdomain.DocumentTaxLine](p.DB),
	}
}

// Preview computes totals and, when every needed account resolves, the
// posting. Nothing is persisted.
func (s *Service) Preview(ctx context.Context, req documentdomain.ComputeRequest) (*documentdomain.PreviewResponse, error) {
	orgID, err := orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	direction, totals, err := s.compute(ctx, orgID, req)
	if err != nil {
		s.obsMetrics.RecordDocument(ctx, "preview", string(direction), obsmetrics.ClassifyOutcome(err))
		return nil, err
	}

	resp := &documentdomain.PreviewResponse{Direction: direction, Totals: totals}
	txn, err := s.post(ctx, orgID, direction, totals)
	switch {
	case errors.Is(err, ledgerdomain.ErrEmptyPosting):
		// drafts and zero-value documents have totals but nothing to post
	case errors.Is(err, ledgerdomain.ErrAccountNotConfigured):
		resp.PostingError = err.Error()
	case err != nil:
		s.obsMetrics.RecordDocument(ctx, "preview", string(direction), obsmetrics.ClassifyOutcome(err))
		return nil, err
	default:
		txn.OrgID = orgID
		resp.Posting = &txn
	}

	s.obsMetrics.RecordDocument(ctx, "preview", string(direction), obsmetrics.OutcomeSuccess)
	return resp, nil
}

// Create persists the document, its items, the applied tax lines and the
// ledger entry in one transaction. A repeated idempotency key returns the
// document stored first.
func (s *Service) Create(ctx context.Context, req documentdomain.CreateRequest) (*documentdomain.DocumentResponse, error) {
	orgID, err := orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	key := trimmedPtr(req.IdempotencyKey)
	if key != nil {
		existing, err := s.findByIdempotencyKey(ctx, orgID, *key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	if req.ExchangeRate != nil && !req.ExchangeRate.IsPositive() {
		return nil, &documentdomain.ValidationError{
			Field:   "exchange_rate",
			Code:    documentdomain.CodeMustBePositive,
			Message: "exchange rate must be greater than zero",
		}
	}

	direction, totals, err := s.compute(ctx, orgID, req.ComputeRequest)
	if err != nil {
		s.obsMetrics.RecordDocument(ctx, "create", string(direction), obsmetrics.ClassifyOutcome(err))
		return nil, err
	}

	txn, err := s.post(ctx, orgID, direction, totals)
	if err != nil {
		s.obsMetrics.RecordDocument(ctx, "create", string(direction), obsmetrics.ClassifyOutcome(err))
		return nil, err
	}

	now := s.clock.Now()
	issuedAt := now
	if req.IssuedAt != nil && !req.IssuedAt.IsZero() {
		issuedAt = req.IssuedAt.UTC()
	}
	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	doc := documentdomain.Document{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		Direction:      direction,
		Number:         trimmedPtr(req.Number),
		IdempotencyKey: key,
		Status:         documentdomain.DocumentStatusPosted,
		Currency:       totals.Currency,
		ExchangeRate:   req.ExchangeRate,
		Subtotal:       totals.Subtotal.Decimal(),
		TaxAmount:      totals.TaxAmount.Decimal(),
		Withholding:    totals.Withholding.Decimal(),
		Total:          totals.Total.Decimal(),
		AmountDue:      totals.AmountDue.Decimal(),
		Memo:           trimmedPtr(req.Memo),
		Metadata:       metadata,
		IssuedAt:       issuedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	items, lines := s.snapshot(doc, req.Items, totals, now)

	txn.OrgID = orgID
	txn.SourceID = doc.ID
	txn.ExchangeRate = req.ExchangeRate
	txn.Memo = doc.Memo
	txn.OccurredAt = issuedAt

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.documents.WithTrx(tx).Create(ctx, &doc); err != nil {
			return err
		}
		if err := s.items.WithTrx(tx).BatchCreate(ctx, items); err != nil {
			return err
		}
		if err := s.taxLines.WithTrx(tx).BatchCreate(ctx, lines); err != nil {
			return err
		}

		entryID, err := s.ledger.PersistTransactionTx(ctx, tx, txn)
		if err != nil {
			return err
		}
		doc.LedgerEntryID = &entryID
		_, err = s.documents.WithTrx(tx).Updates(ctx,
			&documentdomain.Document{ID: doc.ID, OrgID: orgID},
			map[string]any{"ledger_entry_id": entryID, "updated_at": now},
		)
		return err
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			if key != nil {
				existing, findErr := s.findByIdempotencyKey(ctx, orgID, *key)
				if findErr != nil {
					return nil, findErr
				}
				if existing != nil {
					return existing, nil
				}
			}
			err = documentdomain.ErrDuplicateNumber
		}
		s.obsMetrics.RecordDocument(ctx, "create", string(direction), obsmetrics.ClassifyOutcome(err))
		return nil, err
	}

	s.obsMetrics.RecordDocument(ctx, "create", string(direction), obsmetrics.OutcomeSuccess)
	logger.WithContext(ctx, s.log).Info("document posted",
		zap.String("document_id", doc.ID.String()),
		zap.String("direction", string(direction)),
		zap.String("currency", doc.Currency),
		zap.String("total", totals.Total.String()),
		zap.String("amount_due", totals.AmountDue.String()),
		zap.Int("items", len(items)),
	)

	resp := toDocumentResponse(doc, items, lines)
	return &resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*documentdomain.DocumentResponse, error) {
	orgID, err := orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	docID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || docID <= 0 {
		return nil, documentdomain.ErrInvalidID
	}

	doc, err := s.documents.FindOne(ctx, &documentdomain.Document{ID: docID, OrgID: orgID})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, documentdomain.ErrNotFound
	}
	return s.load(ctx, doc)
}

// List returns documents newest first, one page at a time. Items are not
// included.
func (s *Service) List(ctx context.Context, req documentdomain.ListRequest) (*documentdomain.ListResponse, error) {
	orgID, err := orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	filter := &documentdomain.Document{OrgID: orgID}
	if req.Direction != "" {
		direction := documentdomain.NormalizeDirection(req.Direction)
		if !direction.Valid() {
			return nil, documentdomain.ErrInvalidDirection
		}
		filter.Direction = direction
	}
	if status := strings.ToUpper(strings.TrimSpace(string(req.Status))); status != "" {
		filter.Status = documentdomain.DocumentStatus(status)
	}

	limit := req.Limit()
	opts := []option.QueryOption{
		option.WithSortBy(option.SortBy{Column: "created_at", Desc: true}),
		option.WithLimit(limit + 1),
	}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		cursorID, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		opts = append(opts, option.WithKeysetBefore(cursor.CreatedAt, cursorID))
	}

	docs, err := s.documents.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	docs, pageInfo, err := pagination.Page(docs, limit, func(d *documentdomain.Document) pagination.Cursor {
		return pagination.Cursor{ID: d.ID.String(), CreatedAt: d.CreatedAt}
	})
	if err != nil {
		return nil, err
	}

	resp := &documentdomain.ListResponse{
		PageInfo:  pageInfo,
		Documents: make([]documentdomain.DocumentResponse, 0, len(docs)),
	}
	for _, doc := range docs {
		resp.Documents = append(resp.Documents, toDocumentResponse(*doc, nil, nil))
	}
	return resp, nil
}

// compute validates the request, resolves tax codes and aggregates totals.
func (s *Service) compute(ctx context.Context, orgID snowflake.ID, req documentdomain.ComputeRequest) (documentdomain.Direction, documentdomain.DocumentTotals, error) {
	ctx, span := tracing.StartSpan(ctx, "document.compute", attribute.Int("items", len(req.Items)))
	defer span.End()

	direction, currency, err := NormalizeRequest(req)
	if err != nil {
		return direction, documentdomain.DocumentTotals{}, err
	}
	scale := s.currencies.Table().Scale(currency)

	items, err := BuildLineItems(ctx, s.taxResolver, orgID, scale, req.Items)
	if err != nil {
		return direction, documentdomain.DocumentTotals{}, err
	}

	start := time.Now()
	totals, err := ComputeTotals(currency, scale, items)
	s.obsMetrics.ObserveCompute(ctx, string(direction), time.Since(start))
	if err != nil {
		return direction, totals, err
	}
	for _, w := range totals.Warnings {
		logger.WithContext(ctx, s.log).Warn("duplicate compound sequence",
			zap.Int("item", w.Item),
			zap.Int("sequence", w.Sequence),
			zap.Ints("tax_lines", w.Indexes),
		)
	}
	return direction, totals, nil
}

// post resolves the accounts the totals touch and builds the posting.
func (s *Service) post(ctx context.Context, orgID snowflake.ID, direction documentdomain.Direction, totals documentdomain.DocumentTotals) (ledgerdomain.LedgerTransaction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	accounts, err := ledgerservice.ResolveForDirection(ctx, s.accountResolver, orgID, direction, totals)
	if err != nil {
		s.obsMetrics.RecordPosting(ctx, string(direction), obsmetrics.ClassifyOutcome(err))
		return ledgerdomain.LedgerTransaction{}, err
	}
	if len(accounts) == 0 {
		return ledgerdomain.LedgerTransaction{}, ledgerdomain.ErrEmptyPosting
	}

	txn, err := ledgerservice.BuildPosting(totals, direction, accounts)
	if err != nil {
		var unbalanced *ledgerdomain.UnbalancedPostingError
		if errors.As(err, &unbalanced) {
			logger.WithContext(ctx, s.log).Error("unbalanced posting",
				zap.String("direction", string(direction)),
				zap.String("debits", unbalanced.Debits.String()),
				zap.String("credits", unbalanced.Credits.String()),
				zap.Error(err),
			)
		}
		s.obsMetrics.RecordPosting(ctx, string(direction), obsmetrics.ClassifyOutcome(err))
		return ledgerdomain.LedgerTransaction{}, err
	}

	s.obsMetrics.RecordPosting(ctx, string(direction), obsmetrics.OutcomeSuccess)
	return txn, nil
}

func (s *Service) snapshot(doc documentdomain.Document, inputs []documentdomain.LineItemInput, totals documentdomain.DocumentTotals, now time.Time) ([]*documentdomain.DocumentItem, []*documentdomain.DocumentTaxLine) {
	items := make([]*documentdomain.DocumentItem, 0, len(totals.Items))
	var lines []*documentdomain.DocumentTaxLine

	for _, it := range totals.Items {
		in := inputs[it.Index]
		item := &documentdomain.DocumentItem{
			ID:          s.genID.Generate(),
			OrgID:       doc.OrgID,
			DocumentID:  doc.ID,
			Position:    it.Index,
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Discount:    it.Gross.Sub(it.Net).Decimal(),
			Gross:       it.Gross.Decimal(),
			Net:         it.Net.Decimal(),
			Tax:         it.Tax.Decimal(),
			Withholding: it.Withholding.Decimal(),
			CreatedAt:   now,
		}
		items = append(items, item)

		for _, applied := range it.Applied {
			lines = append(lines, &documentdomain.DocumentTaxLine{
				ID:               s.genID.Generate(),
				OrgID:            doc.OrgID,
				DocumentID:       doc.ID,
				DocumentItemID:   item.ID,
				Code:             applied.Code,
				TaxType:          applied.TaxType,
				Rate:             applied.Rate,
				CompoundSequence: applied.CompoundSequence,
				IsCompound:       applied.IsCompound,
				IsWithholding:    applied.IsWithholding,
				Base:             applied.Base.Decimal(),
				Amount:           applied.Amount.Decimal(),
				CreatedAt:        now,
			})
		}
	}
	return items, lines
}

func (s *Service) findByIdempotencyKey(ctx context.Context, orgID snowflake.ID, key string) (*documentdomain.DocumentResponse, error) {
	doc, err := s.documents.FindOne(ctx, &documentdomain.Document{OrgID: orgID, IdempotencyKey: &key})
	if err != nil || doc == nil {
		return nil, err
	}
	return s.load(ctx, doc)
}

func (s *Service) load(ctx context.Context, doc *documentdomain.Document) (*documentdomain.DocumentResponse, error) {
	items, err := s.items.Find(ctx,
		&documentdomain.DocumentItem{OrgID: doc.OrgID, DocumentID: doc.ID},
		option.WithSortBy(option.SortBy{Column: "position"}),
	)
	if err != nil {
		return nil, err
	}
	lines, err := s.taxLines.Find(ctx,
		&documentdomain.DocumentTaxLine{OrgID: doc.OrgID, DocumentID: doc.ID},
		option.WithSortBy(option.SortBy{Column: "compound_sequence"}),
	)
	if err != nil {
		return nil, err
	}
	resp := toDocumentResponse(*doc, items, lines)
	return &resp, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func toDocumentResponse(doc documentdomain.Document, items []*documentdomain.DocumentItem, lines []*documentdomain.DocumentTaxLine) documentdomain.DocumentResponse {
	resp := documentdomain.DocumentResponse{
		ID:             doc.ID.String(),
		OrgID:          doc.OrgID.String(),
		Direction:      doc.Direction,
		Number:         doc.Number,
		IdempotencyKey: doc.IdempotencyKey,
		Status:         doc.Status,
		Currency:       doc.Currency,
		ExchangeRate:   doc.ExchangeRate,
		Subtotal:       doc.Subtotal,
		TaxAmount:      doc.TaxAmount,
		Withholding:    doc.Withholding,
		Total:          doc.Total,
		AmountDue:      doc.AmountDue,
		Memo:           doc.Memo,
		IssuedAt:       doc.IssuedAt,
		CreatedAt:      doc.CreatedAt,
	}
	if doc.LedgerEntryID != nil {
		id := doc.LedgerEntryID.String()
		resp.LedgerEntryID = &id
	}
	if len(doc.Metadata) > 0 {
		resp.Metadata = map[string]any(doc.Metadata)
	}

	byItem := make(map[snowflake.ID][]documentdomain.TaxLineResponse, len(items))
	for _, line := range lines {
		byItem[line.DocumentItemID] = append(byItem[line.DocumentItemID], documentdomain.TaxLineResponse{
			Code:             line.Code,
			TaxType:          line.TaxType,
			Rate:             line.Rate,
			CompoundSequence: line.CompoundSequence,
			IsCompound:       line.IsCompound,
			IsWithholding:    line.IsWithholding,
			Base:             line.Base,
			Amount:           line.Amount,
		})
	}
	for _, item := range items {
		taxLines := byItem[item.ID]
		if taxLines == nil {
			taxLines = []documentdomain.TaxLineResponse{}
		}
		resp.Items = append(resp.Items, documentdomain.ItemResponse{
			ID:          item.ID.String(),
			Position:    item.Position,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Discount:    item.Discount,
			Gross:       item.Gross,
			Net:         item.Net,
			Tax:         item.Tax,
			Withholding: item.Withholding,
			TaxLines:    taxLines,
		})
	}
	return resp
}

func orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, documentdomain.ErrInvalidOrganization
	}
	return orgID, nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
