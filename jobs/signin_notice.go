package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/collabhub/collabhub/internal/jobs"
)

// SignInNoticeJob mails the account owner when a new device signs in.
type SignInNoticeJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSignInNoticeJob initialises the notice handler.
func NewSignInNoticeJob(mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SignInNoticeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignInNoticeJob{Mailer: mailer, Logger: logger, Metrics: metrics}
}

// Handle processes one session:signin_notice task.
func (j *SignInNoticeJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Mailer == nil {
		return errors.New("signin notice: handler not configured")
	}
	var payload SignInNoticePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("signin notice: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.Email) == "" {
		return fmt.Errorf("signin notice: missing email: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskSignInNotice)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if err := j.Mailer.Send(ctx, noticeMessage(payload)); err != nil {
		j.Logger.Warn("signin notice failed", slog.String("session_id", payload.SessionID), slog.Any("error", err))
		return err
	}
	j.Metrics.NoticeSent()
	j.Logger.Info("signin notice sent", slog.String("user_id", payload.UserID), slog.String("session_id", payload.SessionID))
	return nil
}

func noticeMessage(p SignInNoticePayload) Message {
	device := string(p.Device.Type)
	if p.Device.Browser != "" {
		device = p.Device.Browser + " on " + p.Device.OS
	}
	var body strings.Builder
	fmt.Fprintf(&body, "A new device signed in to your CollabHub account.\n\n")
	fmt.Fprintf(&body, "Device: %s (%s)\n", device, p.Device.Type)
	if p.Country != "" {
		fmt.Fprintf(&body, "Country: %s\n", p.Country)
	}
	fmt.Fprintf(&body, "Time: %s\n\n", p.At.UTC().Format(time.RFC1123))
	body.WriteString("If this was not you, end the session from your account's session list.\n")
	return Message{
		To:      p.Email,
		Subject: "New sign-in to CollabHub",
		Body:    body.String(),
	}
}
