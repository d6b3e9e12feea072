package withdrawal

import (
	"context"
	"sync"
	"testing"
	"time"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/errors"
	"payoutdesk/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, w *domain.Withdrawal) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Withdrawal), args.Error(1)
}

func (m *MockRepository) FindByStatus(ctx context.Context, status domain.WithdrawalStatus) ([]*domain.Withdrawal, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Withdrawal), args.Error(1)
}

func (m *MockRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.WithdrawalStatus, comment string, at time.Time) error {
	args := m.Called(ctx, id, from, to, comment, at)
	return args.Error(0)
}

type MockCommentRepository struct {
	mock.Mock
}

func (m *MockCommentRepository) Create(ctx context.Context, c *domain.WithdrawalComment) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCommentRepository) FindByWithdrawalID(ctx context.Context, withdrawalID uuid.UUID) ([]*domain.WithdrawalComment, error) {
	args := m.Called(ctx, withdrawalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.WithdrawalComment), args.Error(1)
}

type MockWorkReader struct {
	mock.Mock
}

func (m *MockWorkReader) FindByID(ctx context.Context, id uuid.UUID) (*domain.Work, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Work), args.Error(1)
}

type MockTeamDirectory struct {
	mock.Mock
}

func (m *MockTeamDirectory) TeamLeadOf(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	args := m.Called(ctx, routingKey, payload)
	return args.Error(0)
}

// casRepository is an in-memory store whose UpdateStatus is a real
// compare-and-swap. FindByID blocks until every expected reader has read, so
// racing callers all observe the same source status.
type casRepository struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]domain.Withdrawal
	readers sync.WaitGroup
}

func (r *casRepository) Create(ctx context.Context, w *domain.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[w.ID] = *w
	return nil
}

func (r *casRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	r.mu.Lock()
	row, ok := r.rows[id]
	r.mu.Unlock()
	r.readers.Done()
	r.readers.Wait()
	if !ok {
		return nil, errors.ErrWithdrawalNotFound
	}
	return &row, nil
}

func (r *casRepository) FindByStatus(ctx context.Context, status domain.WithdrawalStatus) ([]*domain.Withdrawal, error) {
	return nil, nil
}

func (r *casRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.WithdrawalStatus, comment string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return errors.ErrWithdrawalNotFound
	}
	if row.Status != from {
		return errors.ErrConflict
	}
	row.Status = to
	row.UpdatedAt = at
	r.rows[id] = row
	return nil
}

// --- Helpers ---

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	repo      *MockRepository
	comments  *MockCommentRepository
	works     *MockWorkReader
	team      *MockTeamDirectory
	publisher *MockPublisher
}

func newFixture() *fixture {
	f := &fixture{
		repo:      new(MockRepository),
		comments:  new(MockCommentRepository),
		works:     new(MockWorkReader),
		team:      new(MockTeamDirectory),
		publisher: new(MockPublisher),
	}
	f.svc = NewService(f.repo, f.comments, f.works, f.team, f.publisher, 4*time.Hour, logger.NewNop())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func principal(role domain.Role) domain.Principal {
	return domain.Principal{ID: uuid.New(), Role: role, Status: domain.PrincipalStatusActive}
}

func newWork(owner uuid.UUID, status domain.WorkStatus) *domain.Work {
	return &domain.Work{
		ID:                   uuid.New(),
		OwnerID:              owner,
		CounterpartyID:       "site-1",
		CounterpartyCurrency: domain.EUR,
		DepositAmount:        decimal.NewFromInt(100),
		Status:               status,
		CreatedAt:            fixedNow.Add(-48 * time.Hour),
	}
}

func newWithdrawal(workID uuid.UUID, status domain.WithdrawalStatus, createdAt time.Time) *domain.Withdrawal {
	return &domain.Withdrawal{
		ID:               uuid.New(),
		WorkID:           workID,
		WithdrawalAmount: decimal.NewFromInt(130),
		Status:           status,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

// --- Tests ---

func TestCreateWithdrawal(t *testing.T) {
	ctx := context.Background()

	t.Run("owner creates new withdrawal", func(t *testing.T) {
		f := newFixture()
		op := principal(domain.RoleOperator)
		work := newWork(op.ID, domain.WorkStatusActive)
		f.works.On("FindByID", ctx, work.ID).Return(work, nil)
		f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Withdrawal")).Return(nil)

		w, err := f.svc.CreateWithdrawal(ctx, op, &CreateWithdrawalRequest{WorkID: work.ID, Amount: decimal.NewFromInt(130)})

		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalStatusNew, w.Status)
		assert.Equal(t, work.ID, w.WorkID)
		assert.True(t, w.WithdrawalAmount.Equal(decimal.NewFromInt(130)))
		f.repo.AssertExpectations(t)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.CreateWithdrawal(ctx, principal(domain.RoleOperator), &CreateWithdrawalRequest{WorkID: uuid.New(), Amount: decimal.Zero})
		assert.ErrorIs(t, err, errors.ErrInvalidAmount)
	})

	t.Run("work not active", func(t *testing.T) {
		f := newFixture()
		op := principal(domain.RoleOperator)
		work := newWork(op.ID, domain.WorkStatusBlocked)
		f.works.On("FindByID", ctx, work.ID).Return(work, nil)

		_, err := f.svc.CreateWithdrawal(ctx, op, &CreateWithdrawalRequest{WorkID: work.ID, Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, errors.ErrInvalidWorkState)
		f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("not the owner", func(t *testing.T) {
		f := newFixture()
		work := newWork(uuid.New(), domain.WorkStatusActive)
		f.works.On("FindByID", ctx, work.ID).Return(work, nil)

		_, err := f.svc.CreateWithdrawal(ctx, principal(domain.RoleAdmin), &CreateWithdrawalRequest{WorkID: work.ID, Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, errors.ErrForbidden)
	})

	t.Run("missing work", func(t *testing.T) {
		f := newFixture()
		id := uuid.New()
		f.works.On("FindByID", ctx, id).Return(nil, errors.ErrWorkNotFound)

		_, err := f.svc.CreateWithdrawal(ctx, principal(domain.RoleOperator), &CreateWithdrawalRequest{WorkID: id, Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})
}

func TestAdvance(t *testing.T) {
	ctx := context.Background()

	t.Run("team lead starts review and audit plus event follow", func(t *testing.T) {
		f := newFixture()
		w := newWithdrawal(uuid.New(), domain.WithdrawalStatusNew, fixedNow.Add(-time.Hour))
		lead := principal(domain.RoleTeamLead)
		f.repo.On("FindByID", ctx, w.ID).Return(w, nil)
		f.repo.On("UpdateStatus", ctx, w.ID, domain.WithdrawalStatusNew, domain.WithdrawalStatusWaiting, "", fixedNow).Return(nil)
		f.comments.On("Create", ctx, mock.MatchedBy(func(c *domain.WithdrawalComment) bool {
			return c.WithdrawalID == w.ID && c.ActorID == lead.ID &&
				c.FromStatus == domain.WithdrawalStatusNew && c.ToStatus == domain.WithdrawalStatusWaiting
		})).Return(nil)
		f.publisher.On("Publish", ctx, "withdrawal.status_changed", mock.Anything).Return(nil)

		got, err := f.svc.Advance(ctx, lead, w.ID, &AdvanceRequest{Status: domain.WithdrawalStatusWaiting})

		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalStatusWaiting, got.Status)
		f.repo.AssertExpectations(t)
		f.comments.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
	})

	t.Run("team lead cannot confirm", func(t *testing.T) {
		f := newFixture()
		w := newWithdrawal(uuid.New(), domain.WithdrawalStatusWaiting, fixedNow)
		f.repo.On("FindByID", ctx, w.ID).Return(w, nil)

		_, err := f.svc.Advance(ctx, principal(domain.RoleTeamLead), w.ID, &AdvanceRequest{Status: domain.WithdrawalStatusReceived})
		assert.ErrorIs(t, err, errors.ErrForbidden)
	})

	t.Run("operator cannot review", func(t *testing.T) {
		f := newFixture()
		w := newWithdrawal(uuid.New(), domain.WithdrawalStatusNew, fixedNow)
		f.repo.On("FindByID", ctx, w.ID).Return(w, nil)

		_, err := f.svc.Advance(ctx, principal(domain.RoleOperator), w.ID, &AdvanceRequest{Status: domain.WithdrawalStatusWaiting})
		assert.ErrorIs(t, err, errors.ErrForbidden)
	})

	t.Run("reverse edge is invalid", func(t *testing.T) {
		f := newFixture()
		w := newWithdrawal(uuid.New(), domain.WithdrawalStatusReceived, fixedNow)
		f.repo.On("FindByID", ctx, w.ID).Return(w, nil)

		_, err := f.svc.Advance(ctx, principal(domain.RoleAdmin), w.ID, &AdvanceRequest{Status: domain.WithdrawalStatusNew})
		assert.ErrorIs(t, err, errors.ErrInvalidTransition)
	})

	t.Run("reject needs a comment", func(t *testing.T) {
		f := newFixture()
		w := newWithdrawal(uuid.New(), domain.WithdrawalStatusWaiting, fixedNow)
		f.repo.On("FindByID", ctx, w.ID).Return(w, nil)

		_, err := f.svc.Advance(ctx, principal(domain.RoleFinance), w.ID, &AdvanceRequest{Status: domain.WithdrawalStatusBlock, Comment: "   "})
		assert.ErrorIs(t, err, errors.ErrValidation)
		f.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("reject stores reviewer comment", func(t *testing.T) {
		f := newFixture()
		w := newWithdrawal(uuid.New(), domain.WithdrawalStatusWaiting, fixedNow)
		f.repo.On("FindByID", ctx, w.ID).Return(w, nil)
		f.repo.On("UpdateStatus", ctx, w.ID, domain.WithdrawalStatusWaiting, domain.WithdrawalStatusBlock, "card declined", fixedNow).Return(nil)
		f.comments.On("Create", ctx, mock.Anything).Return(nil)
		f.publisher.On("Publish", ctx, mock.Anything, mock.Anything).Return(nil)

		got, err := f.svc.Advance(ctx, principal(domain.RoleFinance), w.ID, &AdvanceRequest{Status: domain.WithdrawalStatusBlock, Comment: " card declined "})
		require.NoError(t, err)
		assert.Equal(t, "card declined", got.ReviewerComment)
	})

	t.Run("audit and publish failures are swallowed", func(t *testing.T) {
		f := newFixture()
		w := newWithdrawal(uuid.New(), domain.WithdrawalStatusWaiting, fixedNow)
		f.repo.On("FindByID", ctx, w.ID).Return(w, nil)
		f.repo.On("UpdateStatus", ctx, w.ID, domain.WithdrawalStatusWaiting, domain.WithdrawalStatusReceived, "", fixedNow).Return(nil)
		f.comments.On("Create", ctx, mock.Anything).Return(assert.AnError)
		f.publisher.On("Publish", ctx, mock.Anything, mock.Anything).Return(assert.AnError)

		got, err := f.svc.Advance(ctx, principal(domain.RoleCoordinator), w.ID, &AdvanceRequest{Status: domain.WithdrawalStatusReceived})
		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalStatusReceived, got.Status)
	})

	t.Run("stale expected status is a conflict", func(t *testing.T) {
		f := newFixture()
		w := newWithdrawal(uuid.New(), domain.WithdrawalStatusWaiting, fixedNow)
		f.repo.On("FindByID", ctx, w.ID).Return(w, nil)

		_, err := f.svc.Advance(ctx, principal(domain.RoleAdmin), w.ID, &AdvanceRequest{
			Status:         domain.WithdrawalStatusWaiting,
			ExpectedStatus: domain.WithdrawalStatusNew,
		})
		assert.ErrorIs(t, err, errors.ErrConflict)
	})

	t.Run("inactive reviewer", func(t *testing.T) {
		f := newFixture()
		p := principal(domain.RoleAdmin)
		p.Status = domain.PrincipalStatusInactive
		_, err := f.svc.Advance(ctx, p, uuid.New(), &AdvanceRequest{Status: domain.WithdrawalStatusWaiting})
		assert.ErrorIs(t, err, errors.ErrUnauthorized)
	})
}

func TestAdvance_ConcurrentReviewersExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	w := newWithdrawal(uuid.New(), domain.WithdrawalStatusWaiting, fixedNow)

	repo := &casRepository{rows: map[uuid.UUID]domain.Withdrawal{w.ID: *w}}
	repo.readers.Add(2)

	comments := new(MockCommentRepository)
	comments.On("Create", mock.Anything, mock.Anything).Return(nil)
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewService(repo, comments, new(MockWorkReader), new(MockTeamDirectory), publisher, 4*time.Hour, logger.NewNop())

	requests := []*AdvanceRequest{
		{Status: domain.WithdrawalStatusReceived},
		{Status: domain.WithdrawalStatusBlock, Comment: "duplicate"},
	}

	errs := make([]error, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req *AdvanceRequest) {
			defer wg.Done()
			_, errs[i] = svc.Advance(ctx, principal(domain.RoleFinance), w.ID, req)
		}(i, req)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, errors.ErrConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
	comments.AssertNumberOfCalls(t, "Create", 1)

	final := repo.rows[w.ID]
	assert.True(t, final.Status.Terminal())
}

func TestOverdueBoundaries(t *testing.T) {
	created := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	w := newWithdrawal(uuid.New(), domain.WithdrawalStatusWaiting, created)

	cases := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"five hours", 5 * time.Hour, true},
		{"three hours fifty-nine", 3*time.Hour + 59*time.Minute, false},
		{"exactly four hours", 4 * time.Hour, false},
		{"four hours and a nanosecond", 4*time.Hour + time.Nanosecond, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, w.IsOverdue(created.Add(tc.elapsed), domain.DefaultSLA))
		})
	}

	received := newWithdrawal(uuid.New(), domain.WithdrawalStatusReceived, created)
	assert.False(t, received.IsOverdue(created.Add(10*time.Hour), domain.DefaultSLA))
}

func TestGetWithdrawal_OverdueAfterReview(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	op := principal(domain.RoleOperator)
	work := newWork(op.ID, domain.WorkStatusActive)
	w := newWithdrawal(work.ID, domain.WithdrawalStatusWaiting, fixedNow.Add(-5*time.Hour))

	f.repo.On("FindByID", ctx, w.ID).Return(w, nil)
	f.works.On("FindByID", ctx, work.ID).Return(work, nil)
	f.comments.On("FindByWithdrawalID", ctx, w.ID).Return(nil, assert.AnError)

	details, err := f.svc.GetWithdrawal(ctx, op, w.ID)

	require.NoError(t, err)
	assert.True(t, details.Overdue)
	assert.Equal(t, domain.EUR, details.Currency)
	assert.NotNil(t, details.Comments)
	assert.Empty(t, details.AllowedTargets)
}

func TestGetWithdrawal_HiddenFromOtherOperators(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	work := newWork(uuid.New(), domain.WorkStatusActive)
	w := newWithdrawal(work.ID, domain.WithdrawalStatusNew, fixedNow)
	f.repo.On("FindByID", ctx, w.ID).Return(w, nil)
	f.works.On("FindByID", ctx, work.ID).Return(work, nil)

	_, err := f.svc.GetWithdrawal(ctx, principal(domain.RoleOperator), w.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestReviewQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("overdue filter for finance", func(t *testing.T) {
		f := newFixture()
		work := newWork(uuid.New(), domain.WorkStatusActive)
		late := newWithdrawal(work.ID, domain.WithdrawalStatusWaiting, fixedNow.Add(-6*time.Hour))
		fresh := newWithdrawal(work.ID, domain.WithdrawalStatusWaiting, fixedNow.Add(-time.Hour))
		f.repo.On("FindByStatus", ctx, domain.WithdrawalStatusWaiting).Return([]*domain.Withdrawal{late, fresh}, nil)
		f.works.On("FindByID", ctx, work.ID).Return(work, nil).Once()

		queue, err := f.svc.ReviewQueue(ctx, principal(domain.RoleFinance), "", true)

		require.NoError(t, err)
		require.Len(t, queue, 1)
		assert.Equal(t, late.ID, queue[0].ID)
		assert.True(t, queue[0].Overdue)
	})

	t.Run("team lead sees only own team", func(t *testing.T) {
		f := newFixture()
		lead := principal(domain.RoleTeamLead)
		mine := newWork(uuid.New(), domain.WorkStatusActive)
		theirs := newWork(uuid.New(), domain.WorkStatusActive)
		a := newWithdrawal(mine.ID, domain.WithdrawalStatusNew, fixedNow)
		b := newWithdrawal(theirs.ID, domain.WithdrawalStatusNew, fixedNow)
		f.repo.On("FindByStatus", ctx, domain.WithdrawalStatusNew).Return([]*domain.Withdrawal{a, b}, nil)
		f.works.On("FindByID", ctx, mine.ID).Return(mine, nil)
		f.works.On("FindByID", ctx, theirs.ID).Return(theirs, nil)
		f.team.On("TeamLeadOf", ctx, mine.OwnerID).Return(lead.ID, nil)
		f.team.On("TeamLeadOf", ctx, theirs.OwnerID).Return(uuid.Nil, nil)

		queue, err := f.svc.ReviewQueue(ctx, lead, domain.WithdrawalStatusNew, false)

		require.NoError(t, err)
		require.Len(t, queue, 1)
		assert.Equal(t, a.ID, queue[0].ID)
	})

	t.Run("operators have no queue", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ReviewQueue(ctx, principal(domain.RoleOperator), "", false)
		assert.ErrorIs(t, err, errors.ErrForbidden)
	})
}

func TestSweepOverdue(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	workID := uuid.New()
	late := newWithdrawal(workID, domain.WithdrawalStatusWaiting, fixedNow.Add(-4*time.Hour-time.Second))
	edge := newWithdrawal(workID, domain.WithdrawalStatusWaiting, fixedNow.Add(-4*time.Hour))
	f.repo.On("FindByStatus", ctx, domain.WithdrawalStatusWaiting).Return([]*domain.Withdrawal{late, edge}, nil)
	f.publisher.On("Publish", ctx, "withdrawal.overdue", mock.Anything).Return(nil).Once()

	n, err := f.svc.SweepOverdue(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.publisher.AssertExpectations(t)
}
