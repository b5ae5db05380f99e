package dto

import "github.com/noah-isme/ada-judge-api/internal/models"

// ChangeCredentialsRequest carries the account settings form. Empty optional fields are left untouched.
type ChangeCredentialsRequest struct {
	CurrentPassword string `json:"current-password" form:"current-password"`
	NewPassword     string `json:"new-password" form:"new-password"`
	ConfirmPassword string `json:"confirm-password" form:"confirm-password"`
	NewSSHKey       string `json:"new-sshkey" form:"new-sshkey"`
	NewName         string `json:"new-name" form:"new-name"`
}

// ChangeCredentialsResult lists the fields that were persisted, in the order they were applied.
type ChangeCredentialsResult struct {
	Changed []string
}

// QuotaUsage reports the counter stored for a single problem.
type QuotaUsage struct {
	ProblemID      uint   `json:"problem_id"`
	LastSubmission string `json:"last_submission"`
	Quota          int    `json:"quota"`
}

// UserMetaResponse exposes the public identity of a user.
type UserMetaResponse struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// HomeworkResponse mirrors an uploaded homework entry.
type HomeworkResponse struct {
	HomeworkID uint   `json:"homework_id"`
	FileName   string `json:"file_name"`
	FileSize   string `json:"file_size"`
	FileSHA1   string `json:"file_sha1"`
}

// UserResponse is the profile returned by /user/me. Secrets are never included.
type UserResponse struct {
	Meta            UserMetaResponse   `json:"meta"`
	Email           string             `json:"email"`
	SSHKey          *string            `json:"ssh_key"`
	AccountType     string             `json:"accountType"`
	SubmissionLimit []QuotaUsage       `json:"submission_limit"`
	Roles           []string           `json:"roles"`
	Groups          []string           `json:"groups"`
	Homeworks       []HomeworkResponse `json:"homeworks"`
	IsAdmin         bool               `json:"isAdmin"`
	IsTA            bool               `json:"isTA"`
}

// MeResponse wraps the profile with the login flag.
type MeResponse struct {
	Login bool          `json:"login"`
	User  *UserResponse `json:"user,omitempty"`
}

// NewUserResponse converts a user model into its public profile.
func NewUserResponse(user models.User) UserResponse {
	limits := make([]QuotaUsage, 0, len(user.SubmissionLimits))
	for _, record := range user.SubmissionLimits {
		limits = append(limits, QuotaUsage{
			ProblemID:      record.ProblemID,
			LastSubmission: record.LastSubmissionDate,
			Quota:          record.QuotaUsed,
		})
	}

	homeworks := make([]HomeworkResponse, 0, len(user.Homeworks))
	for _, hw := range user.Homeworks {
		homeworks = append(homeworks, HomeworkResponse{
			HomeworkID: hw.HomeworkID,
			FileName:   hw.FileName,
			FileSize:   hw.FileSize,
			FileSHA1:   hw.FileSHA1,
		})
	}

	return UserResponse{
		Meta:            UserMetaResponse{Name: user.Meta.Name, ID: user.Meta.ID},
		Email:           user.Email,
		SSHKey:          user.SSHKey,
		AccountType:     user.AccountType,
		SubmissionLimit: limits,
		Roles:           nonNilStrings(user.Roles),
		Groups:          nonNilStrings(user.Groups),
		Homeworks:       homeworks,
		IsAdmin:         user.IsAdmin(),
		IsTA:            user.IsTA(),
	}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
