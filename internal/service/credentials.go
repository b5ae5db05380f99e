package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/ada-judge-api/internal/dto"
	"github.com/noah-isme/ada-judge-api/internal/utils"
)

const (
	minPasswordLength = 9
	maxPasswordLength = 30
	maxNameLength     = 16

	// Field labels used in change summaries and persistence errors.
	FieldPassword = "password"
	FieldSSHKey   = "SSH key"
	FieldName     = "name"
)

var (
	// ErrBadCredentials indicates the current password did not match.
	ErrBadCredentials = errors.New("current password is not correct")
	// ErrPasswordMismatch indicates the confirmation differs from the new password.
	ErrPasswordMismatch = errors.New("passwords are not equal")
	// ErrPasswordTooShort indicates the new password has eight characters or fewer.
	ErrPasswordTooShort = errors.New("new password too short")
	// ErrPasswordTooLong indicates the new password exceeds thirty characters.
	ErrPasswordTooLong = errors.New("new password too long")
	// ErrNameTooLong indicates the new display name exceeds sixteen characters.
	ErrNameTooLong = errors.New("new name too long")
	// ErrNameIllegal indicates the new display name is not alphanumeric.
	ErrNameIllegal = errors.New("new name contains illegal characters")
	// ErrPersistenceFailed indicates a validated change could not be stored.
	ErrPersistenceFailed = errors.New("change could not be persisted")
	// ErrUserNotFound indicates the account does not exist.
	ErrUserNotFound = errors.New("user not found")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// PersistenceError reports which field failed to save. Fields applied before it stay applied.
type PersistenceError struct {
	Field   string
	Changed []string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Field, e.Err)
}

// Is reports whether target is ErrPersistenceFailed.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistenceFailed
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (g *intakeGateway) Profile(ctx context.Context, userID uint) (dto.UserResponse, error) {
	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (g *intakeGateway) ChangeCredentials(ctx context.Context, userID uint, req dto.ChangeCredentialsRequest) (dto.ChangeCredentialsResult, error) {
	ctx, span := g.tracer.Start(ctx, "intake.change_credentials")
	defer span.End()

	var result dto.ChangeCredentialsResult

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return result, ErrUserNotFound
		}
		return result, err
	}

	if !utils.CheckPassword(user.Password, req.CurrentPassword) {
		span.SetStatus(codes.Error, "bad credentials")
		return result, ErrBadCredentials
	}

	if req.NewPassword != "" {
		if err := validateNewPassword(req.NewPassword, req.ConfirmPassword); err != nil {
			return result, err
		}
	}

	var keyChange KeyChange
	if strings.TrimSpace(req.NewSSHKey) != "" {
		keyChange, err = g.keys.SetKey(ctx, user, req.NewSSHKey)
		if err != nil {
			span.RecordError(err)
			return result, err
		}
	}

	renaming := req.NewName != "" && req.NewName != user.Meta.Name
	if renaming {
		if utf8.RuneCountInString(req.NewName) > maxNameLength {
			return result, ErrNameTooLong
		}
		if !namePattern.MatchString(req.NewName) {
			return result, ErrNameIllegal
		}
	}

	if req.NewPassword != "" {
		hash, err := utils.HashPassword(req.NewPassword)
		if err == nil {
			err = g.users.UpdatePassword(ctx, user.ID, hash)
		}
		if err != nil {
			return result, g.persistFailure(span, FieldPassword, result.Changed, err)
		}
		result.Changed = append(result.Changed, FieldPassword)
	}

	if keyChange.Changed {
		rotation, err := g.provisioner.RotateKey(ctx, user.Meta.ID, keyChange.Key)
		if err == nil {
			err = g.users.UpdateCredentials(ctx, user.ID, rotation.Key, rotation.UploadKey)
		}
		if err != nil {
			return result, g.persistFailure(span, FieldSSHKey, result.Changed, err)
		}
		result.Changed = append(result.Changed, FieldSSHKey)
	}

	if renaming {
		if err := g.users.UpdateName(ctx, user.ID, req.NewName); err != nil {
			return result, g.persistFailure(span, FieldName, result.Changed, err)
		}
		result.Changed = append(result.Changed, FieldName)
	}

	span.SetAttributes(attribute.StringSlice("credentials.changed", result.Changed))
	if len(result.Changed) > 0 {
		g.logger.Info().Uint("user_id", user.ID).Strs("changed", result.Changed).Msg("account settings changed")
	}
	return result, nil
}

func validateNewPassword(password, confirmation string) error {
	if password != confirmation {
		return ErrPasswordMismatch
	}
	length := utf8.RuneCountInString(password)
	if length < minPasswordLength {
		return ErrPasswordTooShort
	}
	if length > maxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}
