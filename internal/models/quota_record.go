package models

import "time"

// DateLayout is the calendar-day layout used for quota bookkeeping.
const DateLayout = "2006-01-02"

// QuotaRecord counts the submissions a user made to one problem on LastSubmissionDate.
type QuotaRecord struct {
	ID                 uint      `gorm:"primaryKey" json:"-"`
	UserID             uint      `gorm:"not null;uniqueIndex:idx_quota_user_problem" json:"-"`
	ProblemID          uint      `gorm:"not null;uniqueIndex:idx_quota_user_problem" json:"problem_id"`
	LastSubmissionDate string    `gorm:"size:10;not null" json:"last_submission"`
	QuotaUsed          int       `gorm:"not null;default:0" json:"quota"`
	UpdatedAt          time.Time `json:"-"`
}

// SameDay reports whether the record was last touched on the calendar day of today.
func (r QuotaRecord) SameDay(today string) bool {
	return r.LastSubmissionDate == today
}
