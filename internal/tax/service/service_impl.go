package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxledger/internal/clock"
	"github.com/smallbiznis/taxledger/internal/orgcontext"
	taxdomain "github.com/smallbiznis/taxledger/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type serviceParams struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  taxdomain.Repository
	Clock clock.Clock
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  taxdomain.Repository
	clock clock.Clock
}

func NewService(p serviceParams) taxdomain.Service {
	return &Service{
		log:   p.Log.Named("tax.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) List(ctx context.Context, req taxdomain.ListRequest) ([]taxdomain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, taxdomain.ErrInvalidOrganization
	}

	filter := taxdomain.ListRequest{
		Name:      strings.TrimSpace(req.Name),
		Code:      normalizeCode(req.Code),
		TaxType:   normalizeCode(req.TaxType),
		IsEnabled: req.IsEnabled,
		SortBy:    strings.TrimSpace(req.SortBy),
		OrderBy:   strings.TrimSpace(req.OrderBy),
	}

	items, err := s.repo.List(ctx, orgID, filter)
	if err != nil {
		return nil, err
	}

	resp := make([]taxdomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req taxdomain.CreateRequest) (*taxdomain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, taxdomain.ErrInvalidOrganization
	}

	isEnabled := true
	if req.IsEnabled != nil {
		isEnabled = *req.IsEnabled
	}

	var base taxdomain.WithholdingBase
	if req.IsWithholding {
		base = taxdomain.NormalizeWithholdingBase(req.WithholdingBase)
	}

	taxType := normalizeCode(req.TaxType)
	if taxType == "" && req.IsWithholding {
		taxType = taxdomain.TaxTypeWithholding
	}

	now := s.clock.Now()
	record := &taxdomain.TaxRule{
		ID:               s.genID.Generate(),
		OrgID:            orgID,
		Code:             normalizeCode(req.Code),
		Name:             strings.TrimSpace(req.Name),
		TaxType:          taxType,
		Jurisdiction:     trimmedPtr(req.Jurisdiction),
		Rate:             req.Rate,
		IsCompound:       req.IsCompound,
		CompoundSequence: req.CompoundSequence,
		IsWithholding:    req.IsWithholding,
		WithholdingBase:  base,
		Description:      trimmedPtr(req.Description),
		IsEnabled:        isEnabled,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}

	s.log.Info("tax rule created",
		zap.String("org_id", orgID.String()),
		zap.String("code", record.Code),
		zap.String("rate", record.Rate.String()),
	)

	resp := toResponse(record)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req taxdomain.UpdateRequest) (*taxdomain.Response, error) {
	item, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Rate != nil {
		item.Rate = *req.Rate
	}
	if req.IsCompound != nil {
		item.IsCompound = *req.IsCompound
	}
	if req.CompoundSequence != nil {
		item.CompoundSequence = *req.CompoundSequence
	}
	if req.WithholdingBase != nil && item.IsWithholding {
		item.WithholdingBase = taxdomain.NormalizeWithholdingBase(*req.WithholdingBase)
	}
	if req.Description != nil {
		item.Description = trimmedPtr(req.Description)
	}

	item.UpdatedAt = s.clock.Now()
	if err := item.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}

	resp := toResponse(item)
	return &resp, nil
}

func (s *Service) Disable(ctx context.Context, id string) (*taxdomain.Response, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	item.IsEnabled = false
	item.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}

	resp := toResponse(item)
	return &resp, nil
}

func (s *Service) load(ctx context.Context, id string) (*taxdomain.TaxRule, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, taxdomain.ErrInvalidOrganization
	}

	ruleID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, taxdomain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, orgID, ruleID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, taxdomain.ErrNotFound
	}
	return item, nil
}

func toResponse(rule *taxdomain.TaxRule) taxdomain.Response {
	return taxdomain.Response{
		ID:               rule.ID.String(),
		OrganizationID:   rule.OrgID.String(),
		Code:             rule.Code,
		Name:             rule.Name,
		TaxType:          rule.TaxType,
		Jurisdiction:     rule.Jurisdiction,
		Rate:             rule.Rate,
		IsCompound:       rule.IsCompound,
		CompoundSequence: rule.CompoundSequence,
		IsWithholding:    rule.IsWithholding,
		WithholdingBase:  rule.WithholdingBase,
		Description:      rule.Description,
		IsEnabled:        rule.IsEnabled,
		CreatedAt:        rule.CreatedAt,
		UpdatedAt:        rule.UpdatedAt,
	}
}

func normalizeCode(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
