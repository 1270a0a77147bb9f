package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Strob0t/SiteForge/internal/domain"
	"github.com/Strob0t/SiteForge/internal/domain/content"
	"github.com/Strob0t/SiteForge/internal/domain/site"
	"github.com/Strob0t/SiteForge/internal/domain/tenant"
	"github.com/Strob0t/SiteForge/internal/port/database"
	mq "github.com/Strob0t/SiteForge/internal/port/messagequeue"
	"github.com/Strob0t/SiteForge/internal/validation"
)

// AuthoringService writes tenants and content and announces each change
// so resolvers drop stale state.
type AuthoringService struct {
	store     database.Writer
	validator *validation.Validator
	changes   *ChangePublisher
}

// NewAuthoringService creates an AuthoringService. changes may be nil.
func NewAuthoringService(store database.Writer, v *validation.Validator, changes *ChangePublisher) *AuthoringService {
	return &AuthoringService{store: store, validator: v, changes: changes}
}

// CreateTenant validates and creates a tenant. Status defaults to draft.
func (s *AuthoringService) CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	req.Subdomain = strings.ToLower(strings.TrimSpace(req.Subdomain))
	req.CustomDomain = strings.ToLower(strings.TrimSpace(req.CustomDomain))
	if req.Status == "" {
		req.Status = tenant.StatusDraft
	}
	if err := s.validator.Validate(&req); err != nil {
		return nil, err
	}
	if err := checkBlocks(req.Blocks); err != nil {
		return nil, err
	}
	t, err := s.store.CreateTenant(ctx, &req)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, mq.SiteChangedPayload{TenantID: t.ID, Subdomain: t.Subdomain, Reason: "tenant_created"})
	return t, nil
}

// SaveEntity validates and upserts a content entity.
func (s *AuthoringService) SaveEntity(ctx context.Context, req content.SaveRequest) (*content.Entity, error) {
	if req.TenantID == "" {
		return nil, fmt.Errorf("tenant_id is required: %w", domain.ErrValidation)
	}
	if err := s.validator.Validate(&req); err != nil {
		return nil, err
	}
	for seg := range strings.SplitSeq(req.Slug, "/") {
		if err := site.CheckSegment(seg); err != nil {
			return nil, fmt.Errorf("slug %q is not addressable: %w", req.Slug, domain.ErrValidation)
		}
	}
	if err := checkBlocks(req.Blocks); err != nil {
		return nil, err
	}
	e, err := s.store.SaveEntity(ctx, &req)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, mq.SiteChangedPayload{
		TenantID: e.TenantID,
		Kind:     string(e.Kind),
		Slug:     e.Slug,
		Reason:   "entity_saved",
	})
	return e, nil
}

func (s *AuthoringService) announce(ctx context.Context, ev mq.SiteChangedPayload) {
	if s.changes != nil {
		s.changes.Publish(ctx, ev)
	}
}

// checkBlocks rejects a block collection that is not JSON. Shape problems
// inside valid JSON are absorbed at read time.
func checkBlocks(raw json.RawMessage) error {
	if len(raw) == 0 || json.Valid(raw) {
		return nil
	}
	return fmt.Errorf("blocks is not valid JSON: %w", domain.ErrValidation)
}
