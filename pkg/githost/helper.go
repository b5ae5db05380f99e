package githost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	opCreateRepo  = "create-repo"
	opInstallFile = "install-file"

	defaultTimeout = 10 * time.Second
	maxStderrBytes = 512
)

var (
	helperDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ada",
		Subsystem: "githost",
		Name:      "helper_duration_seconds",
		Help:      "Duration of git hosting helper invocations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	helperFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ada",
		Subsystem: "githost",
		Name:      "helper_failures_total",
		Help:      "Number of git hosting helper invocations that failed",
	}, []string{"op", "reason"})
)

// ErrExternalToolFailed is matched by every error returned from a helper invocation.
var ErrExternalToolFailed = errors.New("external tool failed")

// ToolError describes a failed helper invocation.
type ToolError struct {
	Op       string
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *ToolError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("githost %s: timed out", e.Op)
	case e.ExitCode > 0:
		if e.Stderr != "" {
			return fmt.Sprintf("githost %s: exit status %d: %s", e.Op, e.ExitCode, e.Stderr)
		}
		return fmt.Sprintf("githost %s: exit status %d", e.Op, e.ExitCode)
	case e.Err != nil:
		return fmt.Sprintf("githost %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("githost %s: failed", e.Op)
	}
}

// Is lets callers match any ToolError with errors.Is(err, ErrExternalToolFailed).
func (e *ToolError) Is(target error) bool {
	return target == ErrExternalToolFailed
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Helper is the privileged command the API uses to touch the git hosting filesystem.
type Helper interface {
	CreateRepo(ctx context.Context, templatePath, destPath string) error
	InstallFile(ctx context.Context, srcPath, destPath string) error
}

// Config groups helper configuration values.
type Config struct {
	Path    string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// CommandHelper runs the helper binary with copy semantics: "-r src dst" clones a repository,
// "src dst" installs a single file.
type CommandHelper struct {
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewCommandHelper constructs a helper bound to the configured executable.
func NewCommandHelper(cfg Config) (*CommandHelper, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("helper path is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &CommandHelper{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/ada-judge-api/pkg/githost"),
		logger: cfg.Logger.With().Str("component", "githost").Logger(),
	}, nil
}

// CreateRepo clones the template repository into destPath.
func (h *CommandHelper) CreateRepo(ctx context.Context, templatePath, destPath string) error {
	return h.run(ctx, opCreateRepo, "-r", templatePath, destPath)
}

// InstallFile copies srcPath over destPath.
func (h *CommandHelper) InstallFile(ctx context.Context, srcPath, destPath string) error {
	return h.run(ctx, opInstallFile, srcPath, destPath)
}

func (h *CommandHelper) run(parent context.Context, op string, args ...string) error {
	ctx, span := h.tracer.Start(parent, "githost."+op, trace.WithAttributes(
		attribute.String("githost.op", op),
		attribute.StringSlice("githost.args", args),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, h.cfg.Path, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	helperDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}

	toolErr := &ToolError{Op: op, Stderr: truncate(strings.TrimSpace(stderr.String()), maxStderrBytes), Err: err}
	reason := "error"

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		toolErr.TimedOut = true
		reason = "timeout"
	case errors.As(err, &exitErr):
		toolErr.ExitCode = exitErr.ExitCode()
		reason = "exit"
	}

	helperFailures.WithLabelValues(op, reason).Inc()
	span.RecordError(toolErr)
	span.SetStatus(codes.Error, toolErr.Error())
	h.logger.Error().Err(err).Str("op", op).Strs("args", args).Int("exit_code", toolErr.ExitCode).Bool("timed_out", toolErr.TimedOut).Msg("git helper failed")

	return toolErr
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
