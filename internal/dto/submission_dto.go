package dto

import "time"

// SubResultView is a judged group or test case prepared for display.
// Leaves the judge has not reached yet read "Judging" with "?" points and runtime.
type SubResultView struct {
	Result     string          `json:"result"`
	Points     string          `json:"points"`
	Runtime    string          `json:"runtime"`
	SubResults []SubResultView `json:"subresults"`
}

// ProblemLite identifies the problem a submission belongs to.
type ProblemLite struct {
	ID   uint   `json:"_id"`
	Name string `json:"name"`
}

// SubmissionView is the read model polled by clients.
type SubmissionView struct {
	ID          uint            `json:"_id"`
	Problem     ProblemLite     `json:"problem"`
	SubmittedBy uint            `json:"submittedBy"`
	GitHash     string          `json:"gitHash,omitempty"`
	Status      string          `json:"status"`
	Result      *string         `json:"result"`
	ResultText  string          `json:"resultText,omitempty"`
	Points      *float64        `json:"points"`
	Runtime     string          `json:"runtime"`
	Message     string          `json:"message,omitempty"`
	ShowResult  bool            `json:"showResult"`
	Terminal    bool            `json:"terminal"`
	SubResults  []SubResultView `json:"subresults"`
	CreatedAt   time.Time       `json:"ts"`
}

// JudgeSubResult is a sub result reported by the judge.
type JudgeSubResult struct {
	Result     *string          `json:"result" validate:"omitempty,min=1,max=16"`
	Points     *float64         `json:"points" validate:"omitempty,gte=0"`
	Runtime    *float64         `json:"runtime" validate:"omitempty,gte=0"`
	SubResults []JudgeSubResult `json:"subresults" validate:"omitempty,dive"`
}

// JudgeUpdateRequest is sent by the external judge to advance a submission.
type JudgeUpdateRequest struct {
	Status     string           `json:"status" validate:"required,oneof=pending judging done"`
	Result     *string          `json:"result" validate:"omitempty,min=1,max=16"`
	Points     *float64         `json:"points" validate:"omitempty,gte=0"`
	Runtime    *float64         `json:"runtime" validate:"omitempty,gte=0"`
	Message    string           `json:"message" validate:"omitempty,max=65536"`
	SubResults []JudgeSubResult `json:"subresults" validate:"omitempty,dive"`
}

// IntakeRequest is posted by the repository push hook after a revision is received.
type IntakeRequest struct {
	Key       string `json:"key" form:"key" validate:"required,min=20,max=128"`
	ProblemID uint   `json:"problem_id" form:"problem_id" validate:"required,gt=0"`
	GitHash   string `json:"git_hash" form:"git_hash" validate:"required,hexadecimal,min=7,max=64"`
	Source    string `json:"source" form:"source" validate:"required"`
}

// IntakeResponse acknowledges an accepted push.
type IntakeResponse struct {
	Submission     SubmissionView `json:"submission"`
	RemainingQuota int            `json:"remainingQuota"`
	Duplicate      bool           `json:"duplicate"`
}

// HookLookupRequest authenticates status lookups coming from the git shell.
type HookLookupRequest struct {
	Key     string `json:"key" form:"key" validate:"required,min=20,max=128"`
	GitHash string `json:"gitHash" form:"gitHash" validate:"omitempty,hexadecimal,min=7,max=64"`
}
