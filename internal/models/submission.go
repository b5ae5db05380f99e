package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// SubmissionStatusPending indicates the submission is waiting for a judge.
	SubmissionStatusPending = "pending"
	// SubmissionStatusJudging indicates a judge picked up the submission.
	SubmissionStatusJudging = "judging"
	// SubmissionStatusDone is terminal.
	SubmissionStatusDone = "done"
)

// VerdictCompileError is the verdict code for a submission that failed to compile.
const VerdictCompileError = "CE"

// SubResult is a judged group or test case. A nil Result means the judge has not reached it yet.
type SubResult struct {
	Result     *string     `json:"result,omitempty"`
	Points     *float64    `json:"points,omitempty"`
	Runtime    *float64    `json:"runtime,omitempty"`
	SubResults []SubResult `json:"subresults,omitempty"`
}

// Submission is a single pushed solution to a problem.
type Submission struct {
	ID         uint                           `gorm:"primaryKey" json:"_id"`
	UserID     uint                           `gorm:"not null;index;uniqueIndex:idx_submission_push,priority:1" json:"submittedBy"`
	ProblemID  uint                           `gorm:"not null;index;uniqueIndex:idx_submission_push,priority:2" json:"problem_id"`
	GitHash    *string                        `gorm:"size:64;uniqueIndex:idx_submission_push,priority:3" json:"gitHash,omitempty"`
	Source     []byte                         `gorm:"column:source" json:"-"`
	SourceCode string                         `gorm:"-" json:"-"`
	Status     string                         `gorm:"size:16;not null;index" json:"status"`
	Result     *string                        `gorm:"size:16" json:"result"`
	Points     *float64                       `json:"points"`
	Runtime    *float64                       `json:"runtime"`
	Message    string                         `gorm:"type:text" json:"message,omitempty"`
	SubResults datatypes.JSONSlice[SubResult] `json:"subresults"`
	CreatedAt  time.Time                      `json:"ts"`
	UpdatedAt  time.Time                      `json:"updated_at"`
	Problem    Problem                        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"problem"`
}

// IsTerminal reports whether no further status transition can occur.
func (s Submission) IsTerminal() bool {
	return s.Status == SubmissionStatusDone
}

// ShowResult reports whether clients should render the verdict breakdown.
func (s Submission) ShowResult() bool {
	if s.Status == SubmissionStatusPending {
		return false
	}
	return s.Result == nil || *s.Result != VerdictCompileError
}

// StatusRank orders statuses along pending -> judging -> done. Unknown statuses rank -1.
func StatusRank(status string) int {
	switch status {
	case SubmissionStatusPending:
		return 0
	case SubmissionStatusJudging:
		return 1
	case SubmissionStatusDone:
		return 2
	default:
		return -1
	}
}
