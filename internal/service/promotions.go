package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/and161185/cybergames/internal/authz"
	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/events"
	"github.com/and161185/cybergames/internal/model"
	"github.com/and161185/cybergames/internal/repository"
)

// MaxReasonLen bounds the free-text reason of a promotion request.
const MaxReasonLen = 500

// PromotionService defines the USER to MODERATOR promotion workflow.
type PromotionService interface {
	// Request opens a PENDING request for the caller.
	Request(ctx context.Context, sub model.Subject, reason string) (*model.PromotionRequest, error)
	// Review approves or rejects a PENDING request; approval promotes the requester.
	Review(ctx context.Context, sub model.Subject, id int64, decision string) (*model.PromotionRequest, error)
	// Delete removes the caller's PENDING request.
	Delete(ctx context.Context, sub model.Subject, id int64) error
	// ListAll returns every request, most recent first.
	ListAll(ctx context.Context, sub model.Subject) ([]model.PromotionRequest, error)
	// ListPending returns PENDING requests, oldest first.
	ListPending(ctx context.Context, sub model.Subject) ([]model.PromotionRequest, error)
	// Mine returns the caller's most recent request, or nil.
	Mine(ctx context.Context, sub model.Subject) (*model.PromotionRequest, error)
}

type PromotionServiceImpl struct {
	requests repository.PromotionRepository
	users    repository.UserRepository
	policy   authz.Policy
	pub      events.Publisher
	log      *zap.Logger
	now      func() time.Time
}

// NewPromotionService constructs PromotionService.
func NewPromotionService(requests repository.PromotionRepository, users repository.UserRepository,
	policy authz.Policy, pub events.Publisher, log *zap.Logger) *PromotionServiceImpl {
	return &PromotionServiceImpl{requests: requests, users: users, policy: policy, pub: pub, log: log, now: time.Now}
}

// Request checks the stored role, not the token's, before opening a request.
func (s *PromotionServiceImpl) Request(ctx context.Context, sub model.Subject, reason string) (*model.PromotionRequest, error) {
	if !s.policy.CanAct(sub, authz.Resource{Object: authz.ObjPromotion, OwnerID: sub.UserID}, authz.ActCreate) {
		return nil, forbidden(authz.ActCreate, authz.ObjPromotion)
	}
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > MaxReasonLen {
		return nil, invalid("reason longer than %d characters", MaxReasonLen)
	}

	u, err := s.users.GetByID(ctx, sub.UserID)
	if err != nil {
		return nil, err
	}
	if u.Role.Elevated() {
		return nil, fmt.Errorf("user %d is already %s: %w", u.ID, u.Role, errs.ErrConflict)
	}
	pending, err := s.requests.HasPending(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, fmt.Errorf("user %d already has a pending request: %w", u.ID, errs.ErrConflict)
	}
	return s.requests.Create(ctx, u.ID, reason)
}

// Review stamps the decision; the repository promotes the requester in the same transaction.
func (s *PromotionServiceImpl) Review(ctx context.Context, sub model.Subject, id int64, decision string) (*model.PromotionRequest, error) {
	if !s.policy.Permits(sub.Role, authz.ObjPromotion, authz.ActReview) {
		return nil, forbidden(authz.ActReview, authz.ObjPromotion)
	}
	st, ok := model.ParseDecision(decision)
	if !ok {
		return nil, invalid("decision %q must be APPROVED or REJECTED", decision)
	}
	pr, err := s.requests.Review(ctx, id, st, sub.UserID, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.log.Info("moderator request reviewed",
		zap.Int64("request_id", id), zap.Int64("user_id", pr.UserID), zap.String("decision", string(st)), zap.Int64("by", sub.UserID))
	ev := events.PromotionReviewed{
		RequestID:  pr.ID,
		UserID:     pr.UserID,
		Decision:   string(st),
		ReviewerID: sub.UserID,
		ReviewedAt: *pr.ReviewedAt,
	}
	if err := s.pub.Publish(ctx, events.TopicPromotionReviewed, ev); err != nil {
		s.log.Warn("promotion review event", zap.Int64("request_id", id), zap.Error(err))
	}
	return pr, nil
}

// Delete removes a request; only its author may, and only while PENDING.
func (s *PromotionServiceImpl) Delete(ctx context.Context, sub model.Subject, id int64) error {
	if !s.policy.Permits(sub.Role, authz.ObjPromotion, authz.ActDelete) {
		return forbidden(authz.ActDelete, authz.ObjPromotion)
	}
	pr, err := s.requests.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.policy.CanAct(sub, authz.Resource{Object: authz.ObjPromotion, OwnerID: pr.UserID}, authz.ActDelete) {
		return fmt.Errorf("moderator request %d belongs to another user: %w", id, errs.ErrConflict)
	}
	if pr.Status != model.StatusPending {
		return fmt.Errorf("moderator request %d already %s: %w", id, pr.Status, errs.ErrConflict)
	}
	return s.requests.DeletePending(ctx, id, sub.UserID)
}

// ListAll returns every request.
func (s *PromotionServiceImpl) ListAll(ctx context.Context, sub model.Subject) ([]model.PromotionRequest, error) {
	if !s.policy.Permits(sub.Role, authz.ObjPromotion, authz.ActList) {
		return nil, forbidden(authz.ActList, authz.ObjPromotion)
	}
	return s.requests.List(ctx, "")
}

// ListPending returns PENDING requests.
func (s *PromotionServiceImpl) ListPending(ctx context.Context, sub model.Subject) ([]model.PromotionRequest, error) {
	if !s.policy.Permits(sub.Role, authz.ObjPromotion, authz.ActList) {
		return nil, forbidden(authz.ActList, authz.ObjPromotion)
	}
	return s.requests.List(ctx, model.StatusPending)
}

// Mine returns the caller's latest request, nil when there is none.
func (s *PromotionServiceImpl) Mine(ctx context.Context, sub model.Subject) (*model.PromotionRequest, error) {
	if !s.policy.CanAct(sub, authz.Resource{Object: authz.ObjPromotion, OwnerID: sub.UserID}, authz.ActRead) {
		return nil, forbidden(authz.ActRead, authz.ObjPromotion)
	}
	pr, err := s.requests.Latest(ctx, sub.UserID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	return pr, err
}
