package dto

import "github.com/noah-isme/ada-judge-api/internal/models"

// ProblemResponse summarises a problem together with the caller's remaining daily quota.
type ProblemResponse struct {
	ID             uint    `json:"_id"`
	Name           string  `json:"name"`
	Visible        bool    `json:"visible"`
	TimeLimit      float64 `json:"timeLimit"`
	MemLimit       int64   `json:"memLimit"`
	Quota          int     `json:"quota"`
	RemainingQuota int     `json:"remainingQuota"`
	NotGitOnly     bool    `json:"notGitOnly"`
	ShowStatistic  bool    `json:"showStatistic"`
}

// NewProblemResponse converts a problem model and its remaining quota into a DTO.
func NewProblemResponse(problem models.Problem, remaining int) ProblemResponse {
	return ProblemResponse{
		ID:             problem.ID,
		Name:           problem.Name,
		Visible:        problem.Visible,
		TimeLimit:      problem.TimeLimit,
		MemLimit:       problem.MemLimit,
		Quota:          problem.Quota,
		RemainingQuota: remaining,
		NotGitOnly:     problem.NotGitOnly,
		ShowStatistic:  problem.ShowStatistic,
	}
}
