package gitshell

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/noah-isme/ada-judge-api/internal/dto"
)

// Session serves one SSH login on the git host.
type Session struct {
	User     string
	RepoRoot string
	Client   *StatusClient
	Interval time.Duration
	Out      io.Writer
}

// ReadUploadKey loads the upload key installed in the user's repository hooks.
func ReadUploadKey(repoRoot, user string) (string, error) {
	data, err := os.ReadFile(filepath.Join(repoRoot, user+".git", "hooks", "key"))
	if err != nil {
		return "", fmt.Errorf("read upload key: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Lookup prints the judge results for gitHash, or for the latest submission
// when gitHash is empty, until they are final.
func (s *Session) Lookup(ctx context.Context, gitHash string) error {
	fmt.Fprintln(s.Out, separator)
	fmt.Fprintf(s.Out, "Hi, %s!\n", s.User)

	key, err := ReadUploadKey(s.RepoRoot, s.User)
	if err != nil {
		return err
	}

	fetch := func(ctx context.Context) ([]dto.SubmissionView, error) {
		if gitHash != "" {
			return s.Client.ByGitHash(ctx, key, gitHash)
		}
		return s.Client.Latest(ctx, key)
	}

	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return Watch(ctx, s.Out, fetch, interval)
}
