package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/ada-judge-api/internal/dto"
	"github.com/noah-isme/ada-judge-api/internal/models"
	"github.com/noah-isme/ada-judge-api/internal/repository"
)

// ProblemCatalog lists problems together with the caller's remaining daily quota.
type ProblemCatalog interface {
	List(ctx context.Context, userID uint, includeHidden bool) ([]dto.ProblemResponse, error)
}

type problemCatalog struct {
	repo   repository.ProblemRepository
	ledger QuotaLedger
	cache  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewProblemCatalog constructs a catalog. The problem list is cached in redis when a client is given.
func NewProblemCatalog(repo repository.ProblemRepository, ledger QuotaLedger, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ProblemCatalog {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &problemCatalog{
		repo:   repo,
		ledger: ledger,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "problem_catalog").Logger(),
	}
}

func (s *problemCatalog) List(ctx context.Context, userID uint, includeHidden bool) ([]dto.ProblemResponse, error) {
	problems, ok := s.fetchCache(ctx, includeHidden)
	if !ok {
		var err error
		problems, err = s.repo.List(ctx, includeHidden)
		if err != nil {
			return nil, fmt.Errorf("list problems: %w", err)
		}
		s.writeCache(ctx, includeHidden, problems)
	}

	remaining, err := s.ledger.Remaining(ctx, userID, problems)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ProblemResponse, 0, len(problems))
	for _, problem := range problems {
		problem.Name = displayPolicy.Sanitize(problem.Name)
		items = append(items, dto.NewProblemResponse(problem, remaining[problem.ID]))
	}
	return items, nil
}

func (s *problemCatalog) fetchCache(ctx context.Context, includeHidden bool) ([]models.Problem, bool) {
	if s.cache == nil {
		return nil, false
	}
	payload, err := s.cache.Get(ctx, s.cacheKey(includeHidden)).Bytes()
	if err != nil {
		return nil, false
	}

	var problems []models.Problem
	if err := json.Unmarshal(payload, &problems); err != nil {
		s.logger.Warn().Err(err).Msg("failed to decode problem cache")
		return nil, false
	}
	return problems, true
}

func (s *problemCatalog) writeCache(ctx context.Context, includeHidden bool, problems []models.Problem) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(problems)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode problem cache")
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(includeHidden), payload, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store problem cache")
	}
}

func (s *problemCatalog) cacheKey(includeHidden bool) string {
	if includeHidden {
		return "problems:v1:all"
	}
	return "problems:v1:visible"
}
