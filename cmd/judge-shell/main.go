package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/ada-judge-api/internal/config"
	"github.com/noah-isme/ada-judge-api/pkg/gitshell"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "judge_shell").Logger()

	if len(os.Args) != 2 {
		logger.Fatal().Msg("usage: judge-shell USER")
	}
	user := os.Args[1]

	cfg, err := config.LoadShell()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	command, hasCommand := os.LookupEnv("SSH_ORIGINAL_COMMAND")
	request := gitshell.Request{Lookup: true}
	if hasCommand {
		request, err = gitshell.Parse(command)
		if err != nil {
			logger.Error().Err(err).Str("user", user).Msg("rejected command")
			os.Exit(1)
		}
	}

	if request.Lookup {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		session := gitshell.Session{
			User:     user,
			RepoRoot: cfg.RepoRoot,
			Client:   gitshell.NewStatusClient(cfg.APIURL, &http.Client{Timeout: 10 * time.Second}),
			Interval: cfg.PollInterval,
			Out:      os.Stdout,
		}
		if err := session.Lookup(ctx, request.GitHash); err != nil && !errors.Is(err, context.Canceled) {
			logger.Debug().Err(err).Str("user", user).Msg("status lookup ended")
		}
		return
	}

	rewritten, err := gitshell.Rewrite(request, user, cfg.RepoRoot)
	if err != nil {
		logger.Error().Err(err).Str("user", user).Msg("rejected command")
		os.Exit(1)
	}

	git, err := exec.LookPath("git")
	if err != nil {
		logger.Fatal().Err(err).Msg("git not found")
	}
	env := append(os.Environ(), "ADA_GIT_USER="+user)
	if err := syscall.Exec(git, []string{"git", "shell", "-c", rewritten}, env); err != nil {
		logger.Fatal().Err(err).Msg("cannot execute git shell")
	}
}
