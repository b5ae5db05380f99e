package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/ada-judge-api/internal/dto"
	"github.com/noah-isme/ada-judge-api/internal/models"
	"github.com/noah-isme/ada-judge-api/internal/observability"
	"github.com/noah-isme/ada-judge-api/internal/repository"
)

var (
	// ErrSubmissionNotFound indicates the submission does not exist.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrUnknownStatus indicates the judge reported a status outside pending, judging and done.
	ErrUnknownStatus = errors.New("unknown submission status")
	// ErrStatusRegression indicates an update would move a submission backwards.
	ErrStatusRegression = errors.New("submission status cannot move backwards")
	// ErrSubmissionFinalized indicates the submission is already done.
	ErrSubmissionFinalized = errors.New("submission already finalized")
	// ErrMissingVerdict indicates a done update without a verdict.
	ErrMissingVerdict = errors.New("finished submission requires a verdict")
)

var displayPolicy = bluemonday.StrictPolicy()

// CreateSubmissionInput describes a freshly pushed revision.
type CreateSubmissionInput struct {
	UserID    uint
	ProblemID uint
	GitHash   string
	Source    string
}

// SubmissionSource is the stored source together with its owner.
type SubmissionSource struct {
	OwnerID uint
	Code    string
}

// SubmissionRegistry owns submission records and their judge driven lifecycle.
type SubmissionRegistry interface {
	Create(ctx context.Context, input CreateSubmissionInput) (models.Submission, error)
	FindByPush(ctx context.Context, userID, problemID uint, gitHash string) (models.Submission, bool, error)
	Get(ctx context.Context, id uint) (dto.SubmissionView, error)
	SourceCode(ctx context.Context, id uint) (SubmissionSource, error)
	UpdateFromJudge(ctx context.Context, id uint, update dto.JudgeUpdateRequest) (dto.SubmissionView, error)
	Latest(ctx context.Context, userID uint) (dto.SubmissionView, error)
	ListByGitHash(ctx context.Context, userID uint, gitHash string) ([]dto.SubmissionView, error)
}

type submissionRegistry struct {
	repo   repository.SubmissionRepository
	logger zerolog.Logger
}

// NewSubmissionRegistry constructs a registry backed by the submission repository.
func NewSubmissionRegistry(repo repository.SubmissionRepository, logger zerolog.Logger) SubmissionRegistry {
	return &submissionRegistry{
		repo:   repo,
		logger: logger.With().Str("component", "submission_registry").Logger(),
	}
}

func (r *submissionRegistry) Create(ctx context.Context, input CreateSubmissionInput) (models.Submission, error) {
	submission := models.Submission{
		UserID:     input.UserID,
		ProblemID:  input.ProblemID,
		SourceCode: input.Source,
		Status:     models.SubmissionStatusPending,
	}
	if input.GitHash != "" {
		hash := input.GitHash
		submission.GitHash = &hash
	}

	if err := r.repo.Create(ctx, &submission); err != nil {
		return models.Submission{}, fmt.Errorf("create submission: %w", err)
	}
	return submission, nil
}

func (r *submissionRegistry) FindByPush(ctx context.Context, userID, problemID uint, gitHash string) (models.Submission, bool, error) {
	submission, err := r.repo.FindByPush(ctx, userID, problemID, gitHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, false, nil
		}
		return models.Submission{}, false, err
	}
	return submission, true, nil
}

func (r *submissionRegistry) Get(ctx context.Context, id uint) (dto.SubmissionView, error) {
	submission, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return dto.SubmissionView{}, translateSubmissionErr(err)
	}
	return NewSubmissionView(submission), nil
}

func (r *submissionRegistry) SourceCode(ctx context.Context, id uint) (SubmissionSource, error) {
	submission, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return SubmissionSource{}, translateSubmissionErr(err)
	}
	return SubmissionSource{OwnerID: submission.UserID, Code: submission.SourceCode}, nil
}

func (r *submissionRegistry) UpdateFromJudge(ctx context.Context, id uint, update dto.JudgeUpdateRequest) (dto.SubmissionView, error) {
	if models.StatusRank(update.Status) < 0 {
		observability.JudgeTransitions().WithLabelValues("unknown", "rejected").Inc()
		return dto.SubmissionView{}, ErrUnknownStatus
	}
	if update.Status == models.SubmissionStatusDone && update.Result == nil {
		observability.JudgeTransitions().WithLabelValues(update.Status, "rejected").Inc()
		return dto.SubmissionView{}, ErrMissingVerdict
	}

	var previous string
	submission, err := r.repo.Mutate(ctx, id, func(s *models.Submission) error {
		previous = s.Status
		if s.IsTerminal() {
			return ErrSubmissionFinalized
		}
		if models.StatusRank(update.Status) < models.StatusRank(s.Status) {
			return ErrStatusRegression
		}
		applyJudgeUpdate(s, update)
		return nil
	})
	if err != nil {
		err = translateSubmissionErr(err)
		if errors.Is(err, ErrSubmissionFinalized) || errors.Is(err, ErrStatusRegression) {
			observability.JudgeTransitions().WithLabelValues(update.Status, "rejected").Inc()
			r.logger.Warn().Uint("submission_id", id).Str("from", previous).Str("to", update.Status).Msg("judge update rejected")
		}
		return dto.SubmissionView{}, err
	}

	observability.JudgeTransitions().WithLabelValues(update.Status, "applied").Inc()
	r.logger.Info().Uint("submission_id", id).Str("from", previous).Str("to", update.Status).Msg("submission updated by judge")

	full, err := r.repo.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionView{}, translateSubmissionErr(err)
	}
	return NewSubmissionView(full), nil
}

func (r *submissionRegistry) Latest(ctx context.Context, userID uint) (dto.SubmissionView, error) {
	submission, err := r.repo.LatestByUser(ctx, userID)
	if err != nil {
		return dto.SubmissionView{}, translateSubmissionErr(err)
	}
	return NewSubmissionView(submission), nil
}

func (r *submissionRegistry) ListByGitHash(ctx context.Context, userID uint, gitHash string) ([]dto.SubmissionView, error) {
	submissions, err := r.repo.ListByGitHash(ctx, userID, gitHash)
	if err != nil {
		return nil, err
	}
	if len(submissions) == 0 {
		return nil, ErrSubmissionNotFound
	}

	views := make([]dto.SubmissionView, 0, len(submissions))
	for _, submission := range submissions {
		views = append(views, NewSubmissionView(submission))
	}
	return views, nil
}

func applyJudgeUpdate(s *models.Submission, update dto.JudgeUpdateRequest) {
	s.Status = update.Status
	if update.Result != nil {
		s.Result = update.Result
	}
	if update.Points != nil {
		s.Points = update.Points
	}
	if update.Runtime != nil {
		s.Runtime = update.Runtime
	}
	if update.Message != "" {
		s.Message = update.Message
	}
	if update.SubResults != nil {
		s.SubResults = toModelSubResults(update.SubResults)
	}
}

func toModelSubResults(results []dto.JudgeSubResult) []models.SubResult {
	if len(results) == 0 {
		return nil
	}
	out := make([]models.SubResult, 0, len(results))
	for _, result := range results {
		out = append(out, models.SubResult{
			Result:     result.Result,
			Points:     result.Points,
			Runtime:    result.Runtime,
			SubResults: toModelSubResults(result.SubResults),
		})
	}
	return out
}

// NewSubmissionView builds the client read model. The stored record is never modified.
func NewSubmissionView(s models.Submission) dto.SubmissionView {
	view := dto.SubmissionView{
		ID: s.ID,
		Problem: dto.ProblemLite{
			ID:   s.ProblemID,
			Name: displayPolicy.Sanitize(s.Problem.Name),
		},
		SubmittedBy: s.UserID,
		Status:      s.Status,
		Result:      s.Result,
		Points:      s.Points,
		Runtime:     DisplayRuntime(s.Runtime),
		Message:     s.Message,
		ShowResult:  s.ShowResult(),
		Terminal:    s.IsTerminal(),
		SubResults:  newSubResultViews(s.SubResults),
		CreatedAt:   s.CreatedAt,
	}
	if s.GitHash != nil {
		view.GitHash = *s.GitHash
	}
	if s.Result != nil {
		view.ResultText = VerdictText(*s.Result)
	}
	return view
}

func newSubResultViews(results []models.SubResult) []dto.SubResultView {
	views := make([]dto.SubResultView, 0, len(results))
	for _, result := range results {
		view := dto.SubResultView{
			Result:     judgingLabel,
			Points:     unknownCellValue,
			Runtime:    unknownCellValue,
			SubResults: newSubResultViews(result.SubResults),
		}
		if result.Result != nil {
			view.Result = VerdictText(*result.Result)
			view.Points = displayPoints(result.Points)
			view.Runtime = DisplayRuntime(result.Runtime)
		}
		views = append(views, view)
	}
	return views
}

func translateSubmissionErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSubmissionNotFound
	}
	return err
}
