package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/ada-judge-api/internal/dto"
	"github.com/noah-isme/ada-judge-api/internal/models"
	"github.com/noah-isme/ada-judge-api/internal/observability"
	"github.com/noah-isme/ada-judge-api/internal/repository"
	"github.com/noah-isme/ada-judge-api/internal/utils"
)

var (
	// ErrUploadKeyInvalid indicates no account owns the presented repository upload key.
	ErrUploadKeyInvalid = errors.New("upload key is not valid")
	// ErrSourceNotText indicates the pushed source is binary.
	ErrSourceNotText = errors.New("source must be plain text")
)

// IntakeGateway is the entry point for account key changes and pushed submissions.
type IntakeGateway interface {
	Profile(ctx context.Context, userID uint) (dto.UserResponse, error)
	ChangeCredentials(ctx context.Context, userID uint, req dto.ChangeCredentialsRequest) (dto.ChangeCredentialsResult, error)
	Intake(ctx context.Context, req dto.IntakeRequest) (dto.IntakeResponse, error)
	HookLatest(ctx context.Context, uploadKey string) (dto.SubmissionView, error)
	HookByGitHash(ctx context.Context, uploadKey, gitHash string) ([]dto.SubmissionView, error)
}

// IntakeDeps groups the collaborators of the gateway.
type IntakeDeps struct {
	Users       repository.UserRepository
	Problems    repository.ProblemRepository
	Keys        KeyStore
	Provisioner RepoProvisioner
	Ledger      QuotaLedger
	Registry    SubmissionRegistry
	Dispatcher  JudgeDispatcher
	Validator   *validator.Validate
}

type intakeGateway struct {
	users       repository.UserRepository
	problems    repository.ProblemRepository
	keys        KeyStore
	provisioner RepoProvisioner
	ledger      QuotaLedger
	registry    SubmissionRegistry
	dispatcher  JudgeDispatcher
	validator   *validator.Validate
	pushes      *utils.KeyedMutex
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewIntakeGateway wires the gateway. A nil dispatcher disables judge hand-off.
func NewIntakeGateway(deps IntakeDeps, logger zerolog.Logger) IntakeGateway {
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = noopDispatcher{logger: logger}
	}
	validate := deps.Validator
	if validate == nil {
		validate = utils.NewValidator()
	}

	return &intakeGateway{
		users:       deps.Users,
		problems:    deps.Problems,
		keys:        deps.Keys,
		provisioner: deps.Provisioner,
		ledger:      deps.Ledger,
		registry:    deps.Registry,
		dispatcher:  dispatcher,
		validator:   validate,
		pushes:      utils.NewKeyedMutex(),
		logger:      logger.With().Str("component", "intake_gateway").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/ada-judge-api/internal/service/intake"),
	}
}

func (g *intakeGateway) Intake(ctx context.Context, req dto.IntakeRequest) (dto.IntakeResponse, error) {
	ctx, span := g.tracer.Start(ctx, "intake.push")
	defer span.End()

	if err := g.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.IntakeResponse{}, err
	}

	user, err := g.userByUploadKey(ctx, req.Key)
	if err != nil {
		span.RecordError(err)
		return dto.IntakeResponse{}, err
	}
	span.SetAttributes(
		attribute.Int64("user.id", int64(user.ID)),
		attribute.Int64("problem.id", int64(req.ProblemID)),
		attribute.String("git.hash", req.GitHash),
	)

	if !isText([]byte(req.Source)) {
		observability.Submissions().WithLabelValues("rejected").Inc()
		return dto.IntakeResponse{}, ErrSourceNotText
	}

	unlock := g.pushes.Lock(fmt.Sprintf("%d:%d:%s", user.ID, req.ProblemID, req.GitHash))
	defer unlock()

	if existing, found, err := g.registry.FindByPush(ctx, user.ID, req.ProblemID, req.GitHash); err != nil {
		return dto.IntakeResponse{}, err
	} else if found {
		return g.duplicate(ctx, user, existing)
	}

	usage, err := g.ledger.TryConsume(ctx, user.ID, req.ProblemID)
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			observability.Submissions().WithLabelValues("denied").Inc()
		}
		span.RecordError(err)
		return dto.IntakeResponse{}, err
	}

	submission, err := g.registry.Create(ctx, CreateSubmissionInput{
		UserID:    user.ID,
		ProblemID: req.ProblemID,
		GitHash:   req.GitHash,
		Source:    req.Source,
	})
	if err != nil {
		if releaseErr := g.ledger.Release(ctx, user.ID, req.ProblemID); releaseErr != nil {
			g.logger.Error().Err(releaseErr).Uint("user_id", user.ID).Uint("problem_id", req.ProblemID).Msg("failed to refund quota")
		}
		if existing, found, findErr := g.registry.FindByPush(ctx, user.ID, req.ProblemID, req.GitHash); findErr == nil && found {
			return g.duplicate(ctx, user, existing)
		}
		observability.Submissions().WithLabelValues("error").Inc()
		span.SetStatus(codes.Error, "persistence failed")
		return dto.IntakeResponse{}, &PersistenceError{Field: "submission", Err: err}
	}

	job := NewJudgeJob(submission.ID, submission.ProblemID, user.Meta.ID, req.GitHash)
	job.CorrelationID = observability.CorrelationID(ctx)
	if err := g.dispatcher.Dispatch(ctx, job); err != nil {
		observability.JudgeDispatch().WithLabelValues(g.dispatcher.Transport(), "error").Inc()
		g.logger.Error().Err(err).Uint("submission_id", submission.ID).Str("transport", g.dispatcher.Transport()).Msg("judge dispatch failed")
	} else {
		observability.JudgeDispatch().WithLabelValues(g.dispatcher.Transport(), "ok").Inc()
	}

	observability.Submissions().WithLabelValues("accepted").Inc()
	g.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("user_id", user.ID).
		Uint("problem_id", req.ProblemID).
		Int("quota_used", usage.Used).
		Msg("submission accepted")

	view, err := g.registry.Get(ctx, submission.ID)
	if err != nil {
		view = NewSubmissionView(submission)
	}
	return dto.IntakeResponse{Submission: view, RemainingQuota: usage.Remaining()}, nil
}

func (g *intakeGateway) HookLatest(ctx context.Context, uploadKey string) (dto.SubmissionView, error) {
	user, err := g.userByUploadKey(ctx, uploadKey)
	if err != nil {
		return dto.SubmissionView{}, err
	}
	return g.registry.Latest(ctx, user.ID)
}

func (g *intakeGateway) HookByGitHash(ctx context.Context, uploadKey, gitHash string) ([]dto.SubmissionView, error) {
	user, err := g.userByUploadKey(ctx, uploadKey)
	if err != nil {
		return nil, err
	}
	return g.registry.ListByGitHash(ctx, user.ID, gitHash)
}

func (g *intakeGateway) duplicate(ctx context.Context, user models.User, existing models.Submission) (dto.IntakeResponse, error) {
	observability.Submissions().WithLabelValues("duplicate").Inc()

	view, err := g.registry.Get(ctx, existing.ID)
	if err != nil {
		return dto.IntakeResponse{}, err
	}

	remaining := 0
	problem, err := g.problems.GetByID(ctx, existing.ProblemID)
	if err == nil {
		left, err := g.ledger.Remaining(ctx, user.ID, []models.Problem{problem})
		if err == nil {
			remaining = left[problem.ID]
		}
	}
	return dto.IntakeResponse{Submission: view, RemainingQuota: remaining, Duplicate: true}, nil
}

func (g *intakeGateway) userByUploadKey(ctx context.Context, uploadKey string) (models.User, error) {
	if uploadKey == "" {
		return models.User{}, ErrUploadKeyInvalid
	}
	user, err := g.users.GetByUploadKey(ctx, uploadKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUploadKeyInvalid
		}
		return models.User{}, err
	}
	return user, nil
}

func (g *intakeGateway) persistFailure(span trace.Span, field string, changed []string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "persist "+field)
	g.logger.Error().Err(err).Str("field", field).Strs("already_changed", changed).Msg("failed to persist account change")
	return &PersistenceError{Field: field, Changed: changed, Err: err}
}

func isText(content []byte) bool {
	for mtype := mimetype.Detect(content); mtype != nil; mtype = mtype.Parent() {
		if mtype.Is("text/plain") {
			return true
		}
	}
	return false
}
