package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/ada-judge-api/internal/models"
	"github.com/noah-isme/ada-judge-api/internal/observability"
	"github.com/noah-isme/ada-judge-api/internal/repository"
	"github.com/noah-isme/ada-judge-api/internal/utils"
)

var (
	// ErrNoSuchProblem indicates the referenced problem does not exist.
	ErrNoSuchProblem = errors.New("problem not found")
	// ErrQuotaExceeded indicates the daily submission quota for the problem is used up.
	ErrQuotaExceeded = errors.New("daily submission quota exceeded")
)

// QuotaUsage is the counter state after an admission.
type QuotaUsage struct {
	ProblemID uint
	Used      int
	Limit     int
	Date      string
}

// Remaining returns how many submissions are still admitted today.
func (u QuotaUsage) Remaining() int {
	if u.Used >= u.Limit {
		return 0
	}
	return u.Limit - u.Used
}

// QuotaLedger admits or denies submissions against the per-problem daily quota.
type QuotaLedger interface {
	TryConsume(ctx context.Context, userID, problemID uint) (QuotaUsage, error)
	Release(ctx context.Context, userID, problemID uint) error
	Remaining(ctx context.Context, userID uint, problems []models.Problem) (map[uint]int, error)
	Today() string
}

// QuotaLedgerOption customises the ledger.
type QuotaLedgerOption func(*quotaLedger)

// WithClock overrides the time source used to determine the current day.
func WithClock(now func() time.Time) QuotaLedgerOption {
	return func(l *quotaLedger) {
		if now != nil {
			l.now = now
		}
	}
}

type quotaLedger struct {
	quotas   repository.QuotaRepository
	problems repository.ProblemRepository
	location *time.Location
	now      func() time.Time
	locks    *utils.KeyedMutex
	logger   zerolog.Logger
}

// NewQuotaLedger constructs a ledger that counts days in the given location.
func NewQuotaLedger(quotas repository.QuotaRepository, problems repository.ProblemRepository, location *time.Location, logger zerolog.Logger, opts ...QuotaLedgerOption) QuotaLedger {
	if location == nil {
		location = time.UTC
	}
	ledger := &quotaLedger{
		quotas:   quotas,
		problems: problems,
		location: location,
		now:      time.Now,
		locks:    utils.NewKeyedMutex(),
		logger:   logger.With().Str("component", "quota_ledger").Logger(),
	}
	for _, opt := range opts {
		opt(ledger)
	}
	return ledger
}

func (l *quotaLedger) Today() string {
	return l.now().In(l.location).Format(models.DateLayout)
}

func (l *quotaLedger) TryConsume(ctx context.Context, userID, problemID uint) (QuotaUsage, error) {
	problem, err := l.problems.GetByID(ctx, problemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.QuotaDecisions().WithLabelValues("no_problem").Inc()
			return QuotaUsage{}, ErrNoSuchProblem
		}
		return QuotaUsage{}, fmt.Errorf("load problem %d: %w", problemID, err)
	}

	unlock := l.locks.Lock(quotaKey(userID, problemID))
	defer unlock()

	today := l.Today()
	record, admitted, err := l.quotas.Consume(ctx, userID, problemID, problem.Quota, today)
	if err != nil {
		observability.QuotaDecisions().WithLabelValues("error").Inc()
		return QuotaUsage{}, fmt.Errorf("consume quota: %w", err)
	}

	usage := QuotaUsage{
		ProblemID: problemID,
		Used:      record.QuotaUsed,
		Limit:     problem.Quota,
		Date:      record.LastSubmissionDate,
	}
	if !admitted {
		observability.QuotaDecisions().WithLabelValues("denied").Inc()
		l.logger.Info().Uint("user_id", userID).Uint("problem_id", problemID).Int("used", usage.Used).Msg("quota denied")
		return usage, ErrQuotaExceeded
	}

	observability.QuotaDecisions().WithLabelValues("admitted").Inc()
	return usage, nil
}

func (l *quotaLedger) Release(ctx context.Context, userID, problemID uint) error {
	unlock := l.locks.Lock(quotaKey(userID, problemID))
	defer unlock()

	if err := l.quotas.Release(ctx, userID, problemID, l.Today()); err != nil {
		return fmt.Errorf("release quota: %w", err)
	}
	observability.QuotaDecisions().WithLabelValues("released").Inc()
	return nil
}

func (l *quotaLedger) Remaining(ctx context.Context, userID uint, problems []models.Problem) (map[uint]int, error) {
	records, err := l.quotas.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list quota records: %w", err)
	}

	today := l.Today()
	used := make(map[uint]int, len(records))
	for _, record := range records {
		if record.SameDay(today) {
			used[record.ProblemID] = record.QuotaUsed
		}
	}

	remaining := make(map[uint]int, len(problems))
	for _, problem := range problems {
		usage := QuotaUsage{Used: used[problem.ID], Limit: problem.Quota}
		remaining[problem.ID] = usage.Remaining()
	}
	return remaining, nil
}

func quotaKey(userID, problemID uint) string {
	return fmt.Sprintf("%d:%d", userID, problemID)
}
