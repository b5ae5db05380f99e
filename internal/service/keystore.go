package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/ada-judge-api/internal/models"
	"github.com/noah-isme/ada-judge-api/internal/repository"
)

var (
	// ErrMalformedKey indicates the key has fewer than two whitespace separated fields.
	ErrMalformedKey = errors.New("ssh key is malformed or too short")
	// ErrUnsupportedAlgorithm indicates the key type is not on the allow-list.
	ErrUnsupportedAlgorithm = errors.New("unsupported ssh key algorithm")
	// ErrInvalidPayload indicates the base64 body of the key is not well formed.
	ErrInvalidPayload = errors.New("invalid ssh key payload")
	// ErrKeyAlreadyInUse indicates another account already registered the key.
	ErrKeyAlreadyInUse = errors.New("ssh key already in use by another account")
)

var supportedKeyAlgorithms = map[string]struct{}{
	"ssh-rsa":             {},
	"ssh-ed25519":         {},
	"ecdsa-sha2-nistp256": {},
	"ecdsa-sha2-nistp384": {},
	"ecdsa-sha2-nistp521": {},
}

var keyPayloadPattern = regexp.MustCompile(`(?i)^AAAA[A-Za-z0-9/+]+={0,3}$`)

// KeyChange is the outcome of validating a requested key against the account.
type KeyChange struct {
	Key     string
	Changed bool
}

// KeyStore validates SSH public keys and enforces that each key belongs to one account.
// It never persists anything.
type KeyStore interface {
	SetKey(ctx context.Context, user models.User, raw string) (KeyChange, error)
}

type keyStore struct {
	users  repository.UserRepository
	logger zerolog.Logger
}

// NewKeyStore constructs a key store backed by the user repository.
func NewKeyStore(users repository.UserRepository, logger zerolog.Logger) KeyStore {
	return &keyStore{
		users:  users,
		logger: logger.With().Str("component", "keystore").Logger(),
	}
}

// NormalizeSSHKey reduces raw to "<algorithm> <payload>", dropping newlines and any comment.
func NormalizeSSHKey(raw string) (string, error) {
	fields := strings.Fields(strings.ReplaceAll(strings.TrimSpace(raw), "\n", ""))
	if len(fields) < 2 {
		return "", ErrMalformedKey
	}

	algorithm, payload := fields[0], fields[1]
	if _, ok := supportedKeyAlgorithms[algorithm]; !ok {
		return "", ErrUnsupportedAlgorithm
	}
	if !keyPayloadPattern.MatchString(payload) {
		return "", ErrInvalidPayload
	}

	return algorithm + " " + payload, nil
}

func (s *keyStore) SetKey(ctx context.Context, user models.User, raw string) (KeyChange, error) {
	key, err := NormalizeSSHKey(raw)
	if err != nil {
		return KeyChange{}, err
	}

	if key == user.CurrentSSHKey() {
		return KeyChange{Key: key}, nil
	}

	inUse, err := s.users.SSHKeyInUse(ctx, key, user.ID)
	if err != nil {
		return KeyChange{}, fmt.Errorf("check ssh key ownership: %w", err)
	}
	if inUse {
		s.logger.Warn().Uint("user_id", user.ID).Msg("rejected ssh key registered to another account")
		return KeyChange{}, ErrKeyAlreadyInUse
	}

	return KeyChange{Key: key, Changed: true}, nil
}
