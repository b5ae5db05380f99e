package models

import (
	"time"

	"gorm.io/datatypes"
)

// DefaultProblemQuota is the daily submission cap a new problem starts with.
const DefaultProblemQuota = 5

// TestGroup describes a scored group of test files.
type TestGroup struct {
	Count  int      `json:"count"`
	Points int      `json:"points"`
	Tests  []string `json:"tests"`
}

// TestData describes the test layout consumed by the judge.
type TestData struct {
	Count  int         `json:"count"`
	Points int         `json:"points"`
	Groups []TestGroup `json:"groups"`
}

// Problem is read-only to the intake subsystem; Quota caps daily submissions per user.
type Problem struct {
	ID                uint                         `gorm:"primaryKey" json:"_id"`
	Name              string                       `gorm:"size:255;not null;default:'A Brand New Problem'" json:"name"`
	Visible           bool                         `gorm:"not null;default:false" json:"visible"`
	TimeLimit         float64                      `gorm:"default:1" json:"timeLimit"`
	MemLimit          int64                        `gorm:"default:1048576" json:"memLimit"`
	Quota             int                          `gorm:"not null;default:5" json:"quota"`
	HasSpecialJudge   bool                         `gorm:"default:false" json:"hasSpecialJudge"`
	NotGitOnly        bool                         `gorm:"default:false" json:"notGitOnly"`
	ShowStatistic     bool                         `gorm:"default:false" json:"showStatistic"`
	ShowDetailSubtask bool                         `gorm:"default:true" json:"showDetailSubtask"`
	TestData          datatypes.JSONType[TestData] `json:"testdata"`
	CreatedAt         time.Time                    `json:"-"`
	UpdatedAt         time.Time                    `json:"-"`
}
