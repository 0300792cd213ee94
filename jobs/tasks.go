package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/collabhub/collabhub/internal/sessions"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionsSweep removes device sessions whose inactivity window elapsed.
	TaskSessionsSweep = "sessions:sweep"
	// TaskSignInNotice mails the account owner about a new device sign-in.
	TaskSignInNotice = "session:signin_notice"
)

// SweepPayload parameterises a sweep run. A zero window uses the worker's
// configured inactivity window.
type SweepPayload struct {
	Window time.Duration `json:"window,omitempty"`
}

// SignInNoticePayload describes a new device session for the notice mail.
type SignInNoticePayload struct {
	UserID    string              `json:"user_id"`
	Email     string              `json:"email"`
	SessionID string              `json:"session_id"`
	Device    sessions.DeviceInfo `json:"device_info"`
	Country   string              `json:"country,omitempty"`
	At        time.Time           `json:"at"`
}

// NewSweepTask constructs a sessions:sweep task.
func NewSweepTask(payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionsSweep, data), nil
}

// NewSignInNoticeTask constructs a session:signin_notice task.
func NewSignInNoticeTask(payload SignInNoticePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSignInNotice, data), nil
}
