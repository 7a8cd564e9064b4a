package model

import "time"

type SessionStatus string

const (
	SessionArmed     SessionStatus = "armed"
	SessionRecording SessionStatus = "recording"
	SessionSubmitted SessionStatus = "submitted"
	SessionExpired   SessionStatus = "expired"
)

// Open reports whether the session still accepts answers and triggers.
func (s SessionStatus) Open() bool {
	return s == SessionArmed || s == SessionRecording
}

const (
	TriggerManual          = "manual"
	TriggerTimer           = "timer"
	TriggerTabSwitch       = "tab_switch"
	TriggerScreenShareEnds = "screen_share_ended"
)

// AssessmentScreenSession is one proctored attempt of a trainee.
type AssessmentScreenSession struct {
	UUIDBase
	UserID         uint          `gorm:"index;not null" json:"userId"`
	AssessmentID   uint          `gorm:"index;not null" json:"assessmentId"`
	Status         SessionStatus `gorm:"size:20;not null;default:'armed';index" json:"status"`
	StartedAt      time.Time     `json:"startedAt"`
	DeadlineAt     *time.Time    `gorm:"index" json:"deadlineAt,omitempty"`
	EndedAt        *time.Time    `json:"endedAt,omitempty"`
	RecordingFile  string        `gorm:"size:255" json:"recordingFile"`
	RecordingSecs  float64       `json:"recordingSeconds"`
	ViolationCount int           `gorm:"default:0" json:"violationCount"`
	SubmitTrigger  string        `gorm:"size:30" json:"submitTrigger"`
}

func (AssessmentScreenSession) TableName() string {
	return "assessment_screen_sessions"
}
