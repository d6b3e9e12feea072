// ==============================================================================
// WORK REGISTRY - internal/work/service.go
// ==============================================================================
package work

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

// Repository persists works. UpdateStatus and Delete are conditional writes:
// they report ErrConflict when the stored row no longer matches.
type Repository interface {
	Create(ctx context.Context, work *domain.Work) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Work, error)
	FindAll(ctx context.Context) ([]*domain.Work, error)
	FindByOwners(ctx context.Context, owners []uuid.UUID) ([]*domain.Work, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.WorkStatus, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// WithdrawalReader lists the withdrawals attached to a work.
type WithdrawalReader interface {
	FindByWorkID(ctx context.Context, workID uuid.UUID) ([]*domain.Withdrawal, error)
}

// TeamDirectory resolves the team lead relation between principals.
type TeamDirectory interface {
	// TeamLeadOf returns uuid.Nil when the user has no team lead.
	TeamLeadOf(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	MembersOf(ctx context.Context, leadID uuid.UUID) ([]uuid.UUID, error)
}

type Service struct {
	repo        Repository
	withdrawals WithdrawalReader
	team        TeamDirectory
	publisher   events.Publisher
	sla         time.Duration
	logger      logger.Logger
	now         func() time.Time
}

func NewService(repo Repository, withdrawals WithdrawalReader, team TeamDirectory, publisher events.Publisher, sla time.Duration, log logger.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if sla <= 0 {
		sla = domain.DefaultSLA
	}
	return &Service{
		repo:        repo,
		withdrawals: withdrawals,
		team:        team,
		publisher:   publisher,
		sla:         sla,
		logger:      log,
		now:         time.Now,
	}
}

type CreateWorkRequest struct {
	OwnerID        *uuid.UUID      `json:"owner_id,omitempty"`
	CounterpartyID string          `json:"counterparty_id" validate:"required,max=128"`
	Currency       domain.Currency `json:"currency" validate:"required,currency"`
	DepositAmount  decimal.Decimal `json:"deposit_amount" validate:"required"`
}

type TransitionWorkRequest struct {
	Status domain.WorkStatus `json:"status" validate:"required,work_status"`
}

// WorkDetails is a work together with its withdrawals as of the read.
type WorkDetails struct {
	Work        *domain.Work            `json:"work"`
	Withdrawals []domain.WithdrawalView `json:"withdrawals"`
}

// CreateWork registers a new active work. The owner defaults to the actor;
// only coordinators and admins may register a work on behalf of someone else.
func (s *Service) CreateWork(ctx context.Context, actor domain.Principal, req *CreateWorkRequest) (*domain.Work, error) {
	if !actor.Active() {
		return nil, errors.ErrUnauthorized
	}
	if !req.DepositAmount.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}
	counterparty := strings.TrimSpace(req.CounterpartyID)
	if counterparty == "" {
		return nil, errors.New(errors.CodeValidation, "counterparty_id is required")
	}

	owner := actor.ID
	if req.OwnerID != nil && *req.OwnerID != uuid.Nil && *req.OwnerID != actor.ID {
		if !actor.HasRole(domain.RoleCoordinator, domain.RoleAdmin) {
			return nil, errors.New(errors.CodeForbidden, "cannot create work for another operator")
		}
		owner = *req.OwnerID
	}

	now := s.now().UTC()
	work := &domain.Work{
		ID:                   uuid.New(),
		OwnerID:              owner,
		CounterpartyID:       counterparty,
		CounterpartyCurrency: domain.Currency(strings.ToUpper(string(req.Currency))),
		DepositAmount:        req.DepositAmount,
		Status:               domain.WorkStatusActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.Create(ctx, work); err != nil {
		return nil, err
	}

	s.logger.Info("Work created", map[string]interface{}{
		"work_id":      work.ID,
		"owner_id":     owner,
		"counterparty": counterparty,
		"currency":     work.CounterpartyCurrency,
		"deposit":      work.DepositAmount.String(),
	})

	return work, nil
}

// TransitionWork moves a work to newStatus. The write is conditioned on the
// status read here, so a concurrent transition surfaces as ErrConflict.
func (s *Service) TransitionWork(ctx context.Context, actor domain.Principal, id uuid.UUID, newStatus domain.WorkStatus) (*domain.Work, error) {
	if !actor.Active() {
		return nil, errors.ErrUnauthorized
	}

	work, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed, err := s.canMutate(ctx, actor, work)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errors.New(errors.CodeForbidden, "not allowed to change work %s", id)
	}
	if err := approval.CheckWorkTransition(work.Status, newStatus); err != nil {
		return nil, err
	}

	from := work.Status
	at := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, from, newStatus, at); err != nil {
		return nil, err
	}
	work.Status = newStatus
	work.UpdatedAt = at

	s.logger.Info("Work status changed", map[string]interface{}{
		"work_id":  id,
		"actor_id": actor.ID,
		"from":     from,
		"to":       newStatus,
	})

	s.publish(ctx, events.WorkStatusChanged, events.WorkStatusEvent{
		WorkID:     id,
		ActorID:    actor.ID,
		FromStatus: from,
		ToStatus:   newStatus,
		OccurredAt: at,
	})

	return work, nil
}

// DeleteWork removes a work and its withdrawals. Completed works and works
// with a waiting or received withdrawal are immutable.
func (s *Service) DeleteWork(ctx context.Context, actor domain.Principal, id uuid.UUID) error {
	if !actor.Active() {
		return errors.ErrUnauthorized
	}

	work, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !approval.CanDeleteWork(actor, work) {
		return errors.New(errors.CodeForbidden, "only the owner or an admin may delete work %s", id)
	}
	if work.Status == domain.WorkStatusCompleted {
		return errors.New(errors.CodeConflict, "work %s is completed", id)
	}

	withdrawals, err := s.withdrawals.FindByWorkID(ctx, id)
	if err != nil {
		return err
	}
	for _, w := range withdrawals {
		if w.Status == domain.WithdrawalStatusWaiting || w.Status == domain.WithdrawalStatusReceived {
			return errors.New(errors.CodeConflict, "work %s has a %s withdrawal", id, w.Status)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Work deleted", map[string]interface{}{
		"work_id":     id,
		"actor_id":    actor.ID,
		"withdrawals": len(withdrawals),
	})
	return nil
}

// GetWork returns a work with its withdrawals, each carrying the overdue flag.
func (s *Service) GetWork(ctx context.Context, actor domain.Principal, id uuid.UUID) (*WorkDetails, error) {
	if !actor.Active() {
		return nil, errors.ErrUnauthorized
	}

	work, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	visible, err := s.canView(ctx, actor, work)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, errors.ErrWorkNotFound
	}

	withdrawals, err := s.withdrawals.FindByWorkID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]domain.WithdrawalView, 0, len(withdrawals))
	for _, w := range withdrawals {
		views = append(views, domain.NewWithdrawalView(w, work.CounterpartyCurrency, now, s.sla))
	}

	return &WorkDetails{Work: work, Withdrawals: views}, nil
}

// ListWorks returns the works visible to actor: everything for supervisors,
// the team's works for a team lead, otherwise the actor's own.
func (s *Service) ListWorks(ctx context.Context, actor domain.Principal) ([]*domain.Work, error) {
	if !actor.Active() {
		return nil, errors.ErrUnauthorized
	}
	if approval.CanViewAll(actor.Role) {
		return s.repo.FindAll(ctx)
	}

	owners := []uuid.UUID{actor.ID}
	if actor.HasRole(domain.RoleTeamLead) {
		members, err := s.team.MembersOf(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		owners = append(owners, members...)
	}
	return s.repo.FindByOwners(ctx, owners)
}

func (s *Service) canMutate(ctx context.Context, actor domain.Principal, work *domain.Work) (bool, error) {
	if approval.CanMutateWork(actor, work, uuid.Nil) {
		return true, nil
	}
	if !actor.HasRole(domain.RoleTeamLead) {
		return false, nil
	}
	lead, err := s.team.TeamLeadOf(ctx, work.OwnerID)
	if err != nil {
		return false, err
	}
	return approval.CanMutateWork(actor, work, lead), nil
}

func (s *Service) canView(ctx context.Context, actor domain.Principal, work *domain.Work) (bool, error) {
	if approval.CanViewAll(actor.Role) || actor.ID == work.OwnerID {
		return true, nil
	}
	return s.canMutate(ctx, actor, work)
}

func (s *Service) publish(ctx context.Context, key string, payload interface{}) {
	if err := s.publisher.Publish(ctx, key, payload); err != nil {
		s.logger.Warn("Failed to publish event", map[string]interface{}{
			"routing_key": key,
			"error":       err.Error(),
		})
	}
}
