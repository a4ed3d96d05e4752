package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/cybergames/internal/authz"
	"github.com/and161185/cybergames/internal/errs"
	"github.com/and161185/cybergames/internal/events"
	"github.com/and161185/cybergames/internal/model"
	"github.com/and161185/cybergames/internal/repository"
)

// ChangeDraft is a submitted catalog change. For UPDATE the patch is merged
// into the target's current fields; for CREATE into an empty, enabled game.
type ChangeDraft struct {
	Kind   model.ChangeKind
	Target int64
	Patch  model.GamePatch
}

// SubmitResult holds exactly one of Game (applied immediately) or Request (queued).
type SubmitResult struct {
	Game    *model.Game
	Request *model.ChangeRequest
}

// ReviewResult is the outcome of a review. Game is nil on rejection.
type ReviewResult struct {
	Request *model.ChangeRequest
	Game    *model.Game
	Message string
}

// ChangeService defines the catalog change workflow.
type ChangeService interface {
	// Submit applies the change directly for roles allowed to write the catalog
	// and queues a PENDING request otherwise.
	Submit(ctx context.Context, sub model.Subject, d ChangeDraft) (SubmitResult, error)
	// ListPending returns PENDING requests, most recent first.
	ListPending(ctx context.Context, sub model.Subject) ([]model.ChangeRequest, error)
	// ListAll returns every request, most recent first.
	ListAll(ctx context.Context, sub model.Subject) ([]model.ChangeRequest, error)
	// ListMine returns the caller's requests.
	ListMine(ctx context.Context, sub model.Subject) ([]model.ChangeRequest, error)
	// Get returns a request visible to the caller.
	Get(ctx context.Context, sub model.Subject, id int64) (*model.ChangeRequest, error)
	// Review approves or rejects a PENDING request; approval applies its snapshot atomically.
	Review(ctx context.Context, sub model.Subject, id int64, decision string) (ReviewResult, error)
	// EditMine merges patch into a PENDING request owned by the caller.
	EditMine(ctx context.Context, sub model.Subject, id int64, patch model.GamePatch) (*model.ChangeRequest, error)
	// DeleteMine removes a PENDING request owned by the caller.
	DeleteMine(ctx context.Context, sub model.Subject, id int64) error
}

type ChangeServiceImpl struct {
	changes repository.ChangeRequestRepository
	games   repository.GameRepository
	policy  authz.Policy
	pub     events.Publisher
	log     *zap.Logger
	now     func() time.Time
}

// NewChangeService constructs ChangeService.
func NewChangeService(changes repository.ChangeRequestRepository, games repository.GameRepository,
	policy authz.Policy, pub events.Publisher, log *zap.Logger) *ChangeServiceImpl {
	return &ChangeServiceImpl{changes: changes, games: games, policy: policy, pub: pub, log: log, now: time.Now}
}

// proposal builds the full snapshot a draft stands for.
func (s *ChangeServiceImpl) proposal(ctx context.Context, d ChangeDraft) (model.Proposal, error) {
	base := model.GameFields{Enabled: true}
	switch d.Kind {
	case model.ChangeCreate:
		if d.Target != 0 {
			return nil, invalid("CREATE must not carry a target game")
		}
	case model.ChangeUpdate:
		if d.Target <= 0 {
			return nil, invalid("UPDATE requires a target game")
		}
		g, err := s.games.Get(ctx, d.Target)
		if errors.Is(err, errs.ErrNotFound) {
			return nil, invalid("target game %d does not exist", d.Target)
		}
		if err != nil {
			return nil, err
		}
		base = g.GameFields
	default:
		return nil, invalid("change type %q", d.Kind)
	}

	f, err := NormalizeFields(d.Patch.Apply(base))
	if err != nil {
		return nil, err
	}
	p, ok := model.NewProposal(d.Kind, d.Target, f)
	if !ok {
		return nil, invalid("change type %q", d.Kind)
	}
	return p, nil
}

// Submit queues or applies a change.
func (s *ChangeServiceImpl) Submit(ctx context.Context, sub model.Subject, d ChangeDraft) (SubmitResult, error) {
	if !s.policy.Permits(sub.Role, authz.ObjChange, authz.ActCreate) {
		return SubmitResult{}, forbidden(authz.ActCreate, authz.ObjChange)
	}
	p, err := s.proposal(ctx, d)
	if err != nil {
		return SubmitResult{}, err
	}

	direct := authz.ActCreate
	if p.Kind() == model.ChangeUpdate {
		direct = authz.ActUpdate
	}
	if s.policy.Permits(sub.Role, authz.ObjGame, direct) {
		g, err := s.apply(ctx, p)
		if err != nil {
			return SubmitResult{}, err
		}
		s.log.Info("catalog change applied directly",
			zap.String("type", string(p.Kind())), zap.Int64("game_id", g.ID), zap.Int64("by", sub.UserID))
		return SubmitResult{Game: g}, nil
	}

	cr, err := s.changes.Create(ctx, sub.UserID, p)
	if err != nil {
		return SubmitResult{}, err
	}
	s.log.Info("catalog change queued", zap.Int64("request_id", cr.ID), zap.Int64("by", sub.UserID))
	return SubmitResult{Request: cr}, nil
}

func (s *ChangeServiceImpl) apply(ctx context.Context, p model.Proposal) (*model.Game, error) {
	switch p := p.(type) {
	case model.CreateProposal:
		return s.games.Create(ctx, p.F)
	case model.UpdateProposal:
		return s.games.Update(ctx, p.Target, p.F)
	default:
		return nil, fmt.Errorf("unknown proposal %T", p)
	}
}

// ListPending returns PENDING requests.
func (s *ChangeServiceImpl) ListPending(ctx context.Context, sub model.Subject) ([]model.ChangeRequest, error) {
	if !s.policy.Permits(sub.Role, authz.ObjChange, authz.ActList) {
		return nil, forbidden(authz.ActList, authz.ObjChange)
	}
	return s.changes.List(ctx, model.StatusPending)
}

// ListAll returns every request.
func (s *ChangeServiceImpl) ListAll(ctx context.Context, sub model.Subject) ([]model.ChangeRequest, error) {
	if !s.policy.Permits(sub.Role, authz.ObjChange, authz.ActList) {
		return nil, forbidden(authz.ActList, authz.ObjChange)
	}
	return s.changes.List(ctx, "")
}

// ListMine returns the caller's requests.
func (s *ChangeServiceImpl) ListMine(ctx context.Context, sub model.Subject) ([]model.ChangeRequest, error) {
	if !s.policy.CanAct(sub, authz.Resource{Object: authz.ObjChange, OwnerID: sub.UserID}, authz.ActRead) {
		return nil, forbidden(authz.ActRead, authz.ObjChange)
	}
	return s.changes.ListByAuthor(ctx, sub.UserID)
}

// Get returns a request if the caller may read it.
func (s *ChangeServiceImpl) Get(ctx context.Context, sub model.Subject, id int64) (*model.ChangeRequest, error) {
	if !s.policy.Permits(sub.Role, authz.ObjChange, authz.ActRead) {
		return nil, forbidden(authz.ActRead, authz.ObjChange)
	}
	cr, err := s.changes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanAct(sub, authz.Resource{Object: authz.ObjChange, OwnerID: cr.AuthorID}, authz.ActRead) {
		return nil, errs.ErrNotFound
	}
	return cr, nil
}

// Review moves a PENDING request to decision; the repository applies approved
// snapshots in the same transaction as the status change.
func (s *ChangeServiceImpl) Review(ctx context.Context, sub model.Subject, id int64, decision string) (ReviewResult, error) {
	if !s.policy.Permits(sub.Role, authz.ObjChange, authz.ActReview) {
		return ReviewResult{}, forbidden(authz.ActReview, authz.ObjChange)
	}
	st, ok := model.ParseDecision(decision)
	if !ok {
		return ReviewResult{}, invalid("decision %q must be APPROVED or REJECTED", decision)
	}

	cr, g, err := s.changes.Review(ctx, id, st, sub.UserID, s.now().UTC())
	if err != nil {
		return ReviewResult{}, err
	}

	res := ReviewResult{Request: cr, Game: g, Message: "change request rejected"}
	ev := events.ChangeReviewed{
		RequestID:  cr.ID,
		ChangeType: string(cr.Proposal.Kind()),
		Decision:   string(st),
		AuthorID:   cr.AuthorID,
		ReviewerID: sub.UserID,
		ReviewedAt: *cr.ReviewedAt,
	}
	if g != nil {
		ev.GameID = g.ID
		res.Message = "game created"
		if cr.Proposal.Kind() == model.ChangeUpdate {
			res.Message = "game updated"
		}
	}
	s.log.Info("catalog change reviewed",
		zap.Int64("request_id", id), zap.String("decision", string(st)), zap.Int64("by", sub.UserID))
	if err := s.pub.Publish(ctx, events.TopicChangeReviewed, ev); err != nil {
		s.log.Warn("change review event", zap.Int64("request_id", id), zap.Error(err))
	}
	return res, nil
}

// editable loads a request and checks it may still be changed by the caller.
// Reviewed requests and requests of other authors are conflicts.
func (s *ChangeServiceImpl) editable(ctx context.Context, sub model.Subject, id int64, act string) (*model.ChangeRequest, error) {
	if !s.policy.Permits(sub.Role, authz.ObjChange, act) {
		return nil, forbidden(act, authz.ObjChange)
	}
	cr, err := s.changes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cr.Status != model.StatusPending {
		return nil, fmt.Errorf("change request %d already %s: %w", id, cr.Status, errs.ErrConflict)
	}
	if !s.policy.CanAct(sub, authz.Resource{Object: authz.ObjChange, OwnerID: cr.AuthorID}, act) {
		return nil, fmt.Errorf("change request %d belongs to another user: %w", id, errs.ErrConflict)
	}
	return cr, nil
}

// EditMine merges patch into the request's snapshot.
func (s *ChangeServiceImpl) EditMine(ctx context.Context, sub model.Subject, id int64, patch model.GamePatch) (*model.ChangeRequest, error) {
	cr, err := s.editable(ctx, sub, id, authz.ActUpdate)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return cr, nil
	}
	p := model.PatchProposal(cr.Proposal, patch)
	f, err := NormalizeFields(p.Fields())
	if err != nil {
		return nil, err
	}
	p, _ = model.NewProposal(p.Kind(), p.TargetID(), f)
	return s.changes.UpdatePending(ctx, id, p)
}

// DeleteMine removes the request.
func (s *ChangeServiceImpl) DeleteMine(ctx context.Context, sub model.Subject, id int64) error {
	if _, err := s.editable(ctx, sub, id, authz.ActDelete); err != nil {
		return err
	}
	return s.changes.DeletePending(ctx, id)
}
