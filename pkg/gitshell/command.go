// Package gitshell restricts SSH sessions on the git host to the caller's own
// repository and reports judge results for pushed revisions.
package gitshell

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrNewline indicates the requested command spans several lines.
	ErrNewline = errors.New("command may not contain newline")
	// ErrUnknownCommand indicates the verb is not a git transport command.
	ErrUnknownCommand = errors.New("unknown command denied")
	// ErrUnsafeArguments indicates the repository argument looks dangerous.
	ErrUnsafeArguments = errors.New("arguments to command look dangerous")
	// ErrAccessDenied indicates the caller asked for a repository they do not own.
	ErrAccessDenied = errors.New("access denied to repository")
)

var repoArgPattern = regexp.MustCompile(`^'/*(?P<path>[a-zA-Z0-9][a-zA-Z0-9@._-]*(/[a-zA-Z0-9][a-zA-Z0-9@._-]*)*)'$`)

var readVerbs = map[string]struct{}{
	"git-upload-pack":    {},
	"git upload-pack":    {},
	"git-upload-archive": {},
	"git upload-archive": {},
}

var writeVerbs = map[string]struct{}{
	"git-receive-pack": {},
	"git receive-pack": {},
}

// Request is a parsed SSH_ORIGINAL_COMMAND.
type Request struct {
	// Lookup is set when the session asks for judge results instead of a git transport.
	Lookup bool
	// GitHash optionally narrows a lookup to one pushed revision.
	GitHash string

	Verb  string
	Path  string
	Write bool
}

// Parse classifies command. An empty command or a single word is a status lookup.
func Parse(command string) (Request, error) {
	if strings.Contains(command, "\n") {
		return Request{}, ErrNewline
	}

	verb, args, found := strings.Cut(strings.TrimSpace(command), " ")
	if !found {
		return Request{Lookup: true, GitHash: verb}, nil
	}
	args = strings.TrimSpace(args)

	if verb == "git" {
		sub, rest, ok := strings.Cut(args, " ")
		if !ok {
			return Request{}, ErrUnknownCommand
		}
		verb = verb + " " + sub
		args = strings.TrimSpace(rest)
	}

	_, isRead := readVerbs[verb]
	_, isWrite := writeVerbs[verb]
	if !isRead && !isWrite {
		return Request{}, ErrUnknownCommand
	}

	match := repoArgPattern.FindStringSubmatch(args)
	if match == nil {
		return Request{}, ErrUnsafeArguments
	}

	return Request{
		Verb:  verb,
		Path:  match[repoArgPattern.SubexpIndex("path")],
		Write: isWrite,
	}, nil
}

// Rewrite checks that req targets the user's own repository and returns the
// command with the repository replaced by its absolute path under repoRoot.
func Rewrite(req Request, user, repoRoot string) (string, error) {
	if req.Lookup {
		return "", ErrUnknownCommand
	}
	if strings.TrimSuffix(req.Path, ".git") != user {
		return "", fmt.Errorf("%w: %s", ErrAccessDenied, req.Path)
	}

	full := filepath.Join(repoRoot, user+".git")
	return fmt.Sprintf("%s '%s'", req.Verb, full), nil
}
