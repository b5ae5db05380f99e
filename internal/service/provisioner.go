package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/ada-judge-api/internal/config"
	"github.com/noah-isme/ada-judge-api/internal/observability"
	"github.com/noah-isme/ada-judge-api/internal/utils"
	"github.com/noah-isme/ada-judge-api/pkg/githost"
)

var (
	// ErrKeyInstallFailed indicates the key or upload token could not be installed into the git host.
	ErrKeyInstallFailed = errors.New("failed to install key into git host")
	// ErrInvalidRepoOwner indicates the account has no meta id to name its repository after.
	ErrInvalidRepoOwner = errors.New("account has no repository identifier")
)

// RotationResult describes the external state after a successful key rotation.
type RotationResult struct {
	Key         string
	UploadKey   string
	RepoPath    string
	RepoCreated bool
}

// RepoProvisioner makes sure an account owns a repository that accepts its current key.
type RepoProvisioner interface {
	RotateKey(ctx context.Context, ownerID, key string) (RotationResult, error)
}

type repoProvisioner struct {
	cfg    config.GitConfig
	helper githost.Helper
	locks  *utils.KeyedMutex
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewRepoProvisioner constructs a provisioner operating on the configured git layout.
func NewRepoProvisioner(cfg config.GitConfig, helper githost.Helper, logger zerolog.Logger) RepoProvisioner {
	if cfg.TokenLength < 20 {
		cfg.TokenLength = 20
	}
	return &repoProvisioner{
		cfg:    cfg,
		helper: helper,
		locks:  utils.NewKeyedMutex(),
		logger: logger.With().Str("component", "repo_provisioner").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/ada-judge-api/internal/service/provisioner"),
	}
}

func (p *repoProvisioner) RotateKey(ctx context.Context, ownerID, key string) (RotationResult, error) {
	ctx, span := p.tracer.Start(ctx, "provisioner.rotate_key", trace.WithAttributes(attribute.String("repo.owner", ownerID)))
	defer span.End()

	if ownerID == "" || ownerID == "." || ownerID == ".." || filepath.Base(ownerID) != ownerID {
		span.SetStatus(codes.Error, "invalid owner")
		return RotationResult{}, ErrInvalidRepoOwner
	}

	unlock := p.locks.Lock(ownerID)
	defer unlock()

	stagedKey := filepath.Join(p.cfg.StagingDir, ownerID+".pub")
	if err := p.stage(stagedKey, key+"\n"); err != nil {
		return RotationResult{}, p.fail(span, "stage_key", err)
	}
	if err := p.helper.InstallFile(ctx, stagedKey, filepath.Join(p.cfg.KeyDir(), ownerID+".pub")); err != nil {
		return RotationResult{}, p.fail(span, "install_key", err)
	}
	observability.ProvisionSteps().WithLabelValues("install_key", "ok").Inc()

	repoPath := filepath.Join(p.cfg.RepoRoot, ownerID+".git")
	created, err := p.ensureRepo(ctx, repoPath)
	if err != nil {
		return RotationResult{}, p.fail(span, "create_repo", err)
	}

	secret, err := utils.RandomAlphanumeric(p.cfg.TokenLength)
	if err != nil {
		return RotationResult{}, p.fail(span, "generate_token", err)
	}
	uploadKey := secret + ownerID

	stagedToken := filepath.Join(p.cfg.StagingDir, ownerID+".key")
	if err := p.stage(stagedToken, uploadKey); err != nil {
		return RotationResult{}, p.fail(span, "stage_token", err)
	}
	if err := p.helper.InstallFile(ctx, stagedToken, filepath.Join(repoPath, "hooks", "key")); err != nil {
		return RotationResult{}, p.fail(span, "install_token", err)
	}
	observability.ProvisionSteps().WithLabelValues("install_token", "ok").Inc()

	span.SetAttributes(attribute.Bool("repo.created", created))
	p.logger.Info().Str("owner", ownerID).Bool("repo_created", created).Msg("ssh key rotated")

	return RotationResult{
		Key:         key,
		UploadKey:   uploadKey,
		RepoPath:    repoPath,
		RepoCreated: created,
	}, nil
}

// ensureRepo creates the repository from the template when missing. A failed
// creation still succeeds if a concurrent creator produced the repository.
func (p *repoProvisioner) ensureRepo(ctx context.Context, repoPath string) (bool, error) {
	if exists(repoPath) {
		return false, nil
	}

	err := p.helper.CreateRepo(ctx, p.cfg.TemplateRepo, repoPath)
	if err == nil {
		observability.ProvisionSteps().WithLabelValues("create_repo", "ok").Inc()
		return true, nil
	}
	if exists(repoPath) {
		p.logger.Warn().Err(err).Str("repo", repoPath).Msg("repository appeared while creating it")
		observability.ProvisionSteps().WithLabelValues("create_repo", "raced").Inc()
		return false, nil
	}
	return false, err
}

func (p *repoProvisioner) stage(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write staging file: %w", err)
	}
	return nil
}

func (p *repoProvisioner) fail(span trace.Span, step string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, step)
	observability.ProvisionSteps().WithLabelValues(step, "error").Inc()
	p.logger.Error().Err(err).Str("step", step).Msg("key rotation failed")
	return fmt.Errorf("%w: %s: %w", ErrKeyInstallFailed, step, err)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
