// ==============================================================================
// WITHDRAWAL LEDGER - internal/withdrawal/service.go
// ==============================================================================
package withdrawal

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payoutdesk/internal/approval"
	"payoutdesk/internal/domain"
	"payoutdesk/internal/events"
	"payoutdesk/pkg/errors"
	"payoutdesk/pkg/logger"
)

// Repository persists withdrawals. Create fails with ErrInvalidWorkState when
// the owning work is no longer active at insert time; UpdateStatus fails with
// ErrConflict when the stored status is not from.
type Repository interface {
	Create(ctx context.Context, w *domain.Withdrawal) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error)
	FindByStatus(ctx context.Context, status domain.WithdrawalStatus) ([]*domain.Withdrawal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.WithdrawalStatus, comment string, at time.Time) error
}

// CommentRepository stores the audit trail of status changes.
type CommentRepository interface {
	Create(ctx context.Context, c *domain.WithdrawalComment) error
	FindByWithdrawalID(ctx context.Context, withdrawalID uuid.UUID) ([]*domain.WithdrawalComment, error)
}

// WorkReader resolves the owning work of a withdrawal.
type WorkReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Work, error)
}

// TeamDirectory resolves an operator's team lead.
type TeamDirectory interface {
	TeamLeadOf(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

type Service struct {
	repo      Repository
	comments  CommentRepository
	works     WorkReader
	team      TeamDirectory
	publisher events.Publisher
	sla       time.Duration
	logger    logger.Logger
	now       func() time.Time
}

func NewService(repo Repository, comments CommentRepository, works WorkReader, team TeamDirectory, publisher events.Publisher, sla time.Duration, log logger.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if sla <= 0 {
		sla = domain.DefaultSLA
	}
	return &Service{
		repo:      repo,
		comments:  comments,
		works:     works,
		team:      team,
		publisher: publisher,
		sla:       sla,
		logger:    log,
		now:       time.Now,
	}
}

type CreateWithdrawalRequest struct {
	WorkID uuid.UUID       `json:"work_id" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// AdvanceRequest moves a withdrawal to Status. ExpectedStatus, when set, pins
// the source state the caller last observed.
type AdvanceRequest struct {
	Status         domain.WithdrawalStatus `json:"status" validate:"required,withdrawal_status"`
	ExpectedStatus domain.WithdrawalStatus `json:"expected_status,omitempty" validate:"omitempty,withdrawal_status"`
	Comment        string                  `json:"comment,omitempty" validate:"max=1000"`
}

// Details is a withdrawal with its audit trail and the moves open to the reader.
type Details struct {
	domain.WithdrawalView
	Comments       []*domain.WithdrawalComment `json:"comments"`
	AllowedTargets []domain.WithdrawalStatus   `json:"allowed_targets"`
}

// SLA returns the waiting threshold after which a withdrawal is overdue.
func (s *Service) SLA() time.Duration {
	return s.sla
}

// CreateWithdrawal raises a new withdrawal against an active work owned by
// the actor.
func (s *Service) CreateWithdrawal(ctx context.Context, actor domain.Principal, req *CreateWithdrawalRequest) (*domain.Withdrawal, error) {
	if !actor.Active() {
		return nil, errors.ErrUnauthorized
	}
	if !req.Amount.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}

	work, err := s.works.FindByID(ctx, req.WorkID)
	if err != nil {
		return nil, err
	}
	if work.OwnerID != actor.ID {
		return nil, errors.New(errors.CodeForbidden, "only the owner may request withdrawals on work %s", work.ID)
	}
	if work.Status != domain.WorkStatusActive {
		return nil, errors.New(errors.CodeInvalidWorkState, "work %s is %s", work.ID, work.Status)
	}

	now := s.now().UTC()
	w := &domain.Withdrawal{
		ID:               uuid.New(),
		WorkID:           work.ID,
		WithdrawalAmount: req.Amount,
		Status:           domain.WithdrawalStatusNew,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Create(ctx, w); err != nil {
		return nil, err
	}

	s.logger.Info("Withdrawal created", map[string]interface{}{
		"withdrawal_id": w.ID,
		"work_id":       work.ID,
		"actor_id":      actor.ID,
		"amount":        w.WithdrawalAmount.String(),
		"currency":      work.CounterpartyCurrency,
	})

	return w, nil
}

// Advance applies one review step. The update is a compare-and-swap on the
// status read here; losing a race yields ErrConflict and the caller must
// re-read. The audit comment and the event are written after the swap and
// their failures are only logged.
func (s *Service) Advance(ctx context.Context, actor domain.Principal, id uuid.UUID, req *AdvanceRequest) (*domain.Withdrawal, error) {
	if !actor.Active() {
		return nil, errors.ErrUnauthorized
	}

	w, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := w.Status
	if req.ExpectedStatus != "" && req.ExpectedStatus != from {
		return nil, errors.New(errors.CodeConflict, "withdrawal %s is %s, not %s", id, from, req.ExpectedStatus)
	}

	comment := strings.TrimSpace(req.Comment)
	if err := approval.CheckWithdrawalTransition(actor, from, req.Status, comment); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, from, req.Status, comment, at); err != nil {
		return nil, err
	}
	w.Status = req.Status
	w.UpdatedAt = at
	if comment != "" {
		w.ReviewerComment = comment
	}

	s.logger.Info("Withdrawal status changed", map[string]interface{}{
		"withdrawal_id": id,
		"actor_id":      actor.ID,
		"role":          actor.Role,
		"from":          from,
		"to":            req.Status,
	})

	audit := &domain.WithdrawalComment{
		ID:           uuid.New(),
		WithdrawalID: id,
		ActorID:      actor.ID,
		FromStatus:   from,
		ToStatus:     req.Status,
		Comment:      comment,
		CreatedAt:    at,
	}
	if err := s.comments.Create(ctx, audit); err != nil {
		s.logger.Error("Failed to write withdrawal audit comment", map[string]interface{}{
			"withdrawal_id": id,
			"from":          from,
			"to":            req.Status,
			"error":         err.Error(),
		})
	}

	s.publish(ctx, events.WithdrawalStatusChanged, events.WithdrawalStatusEvent{
		WithdrawalID: id,
		WorkID:       w.WorkID,
		ActorID:      actor.ID,
		FromStatus:   from,
		ToStatus:     req.Status,
		Comment:      comment,
		OccurredAt:   at,
	})

	return w, nil
}

// GetWithdrawal returns a withdrawal with its overdue flag and audit trail.
func (s *Service) GetWithdrawal(ctx context.Context, actor domain.Principal, id uuid.UUID) (*Details, error) {
	if !actor.Active() {
		return nil, errors.ErrUnauthorized
	}

	w, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	work, err := s.works.FindByID(ctx, w.WorkID)
	if err != nil {
		return nil, err
	}

	visible, err := s.canSee(ctx, actor, work)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, errors.ErrWithdrawalNotFound
	}

	comments, err := s.comments.FindByWithdrawalID(ctx, id)
	if err != nil {
		s.logger.Warn("Failed to load withdrawal comments", map[string]interface{}{
			"withdrawal_id": id,
			"error":         err.Error(),
		})
		comments = nil
	}
	if comments == nil {
		comments = []*domain.WithdrawalComment{}
	}

	allowed := approval.AllowedWithdrawalTargets(actor, w.Status)
	if allowed == nil {
		allowed = []domain.WithdrawalStatus{}
	}

	return &Details{
		WithdrawalView: domain.NewWithdrawalView(w, work.CounterpartyCurrency, s.now(), s.sla),
		Comments:       comments,
		AllowedTargets: allowed,
	}, nil
}

// ReviewQueue lists withdrawals in status for reviewers, oldest first.
// Team leads only see their own team's requests.
func (s *Service) ReviewQueue(ctx context.Context, actor domain.Principal, status domain.WithdrawalStatus, overdueOnly bool) ([]domain.WithdrawalView, error) {
	if !actor.Active() {
		return nil, errors.ErrUnauthorized
	}
	if !approval.CanReview(actor.Role) {
		return nil, errors.New(errors.CodeForbidden, "role %s does not review withdrawals", actor.Role)
	}
	if status == "" {
		status = domain.WithdrawalStatusWaiting
	}

	items, err := s.repo.FindByStatus(ctx, status)
	if err != nil {
		return nil, err
	}

	now := s.now()
	works := make(map[uuid.UUID]*domain.Work)
	queue := make([]domain.WithdrawalView, 0, len(items))
	for _, w := range items {
		if overdueOnly && !w.IsOverdue(now, s.sla) {
			continue
		}

		work, ok := works[w.WorkID]
		if !ok {
			work, err = s.works.FindByID(ctx, w.WorkID)
			if errors.Is(err, errors.ErrNotFound) {
				s.logger.Warn("Withdrawal references missing work", map[string]interface{}{
					"withdrawal_id": w.ID,
					"work_id":       w.WorkID,
				})
				continue
			}
			if err != nil {
				return nil, err
			}
			works[w.WorkID] = work
		}

		visible, err := s.canSee(ctx, actor, work)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		queue = append(queue, domain.NewWithdrawalView(w, work.CounterpartyCurrency, now, s.sla))
	}

	return queue, nil
}

// SweepOverdue publishes an overdue event for every waiting withdrawal past
// the SLA and returns how many were found.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	waiting, err := s.repo.FindByStatus(ctx, domain.WithdrawalStatusWaiting)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	overdue := 0
	for _, w := range waiting {
		if !w.IsOverdue(now, s.sla) {
			continue
		}
		overdue++
		s.publish(ctx, events.WithdrawalOverdue, events.WithdrawalOverdueEvent{
			WithdrawalID: w.ID,
			WorkID:       w.WorkID,
			WaitingSince: w.CreatedAt,
			DetectedAt:   now,
		})
	}

	if overdue > 0 {
		s.logger.Warn("Overdue withdrawals detected", map[string]interface{}{
			"count": overdue,
			"sla":   s.sla.String(),
		})
	}
	return overdue, nil
}

// SweepJob runs SweepOverdue under its own timeout for the scheduler.
func (s *Service) SweepJob() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.SweepOverdue(ctx); err != nil {
		s.logger.Error("Overdue sweep failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) canSee(ctx context.Context, actor domain.Principal, work *domain.Work) (bool, error) {
	if approval.CanViewAll(actor.Role) || actor.ID == work.OwnerID {
		return true, nil
	}
	if !actor.HasRole(domain.RoleTeamLead) {
		return false, nil
	}
	lead, err := s.team.TeamLeadOf(ctx, work.OwnerID)
	if err != nil {
		return false, err
	}
	return lead == actor.ID, nil
}

func (s *Service) publish(ctx context.Context, key string, payload interface{}) {
	if err := s.publisher.Publish(ctx, key, payload); err != nil {
		s.logger.Warn("Failed to publish event", map[string]interface{}{
			"routing_key": key,
			"error":       err.Error(),
		})
	}
}
