// Package estimate predicts how long a treatment will take once it starts.
package estimate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-queue-scheduling/internal/appointment"
	"github.com/hackgods/clinic-queue-scheduling/internal/remote"
)

const FunctionName = "estimate-treatment-duration"

type request struct {
	AppointmentID   string `json:"appointment_id"`
	PractitionerID  string `json:"practitioner_id,omitempty"`
	Channel         string `json:"channel"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes,omitempty"`
}

type response struct {
	EstimatedMinutes int `json:"estimated_minutes"`
}

// RemoteEstimator asks the remote function for an estimate and falls back to
// the booked duration when the function is unavailable or answers nonsense.
type RemoteEstimator struct {
	invoker remote.Invoker
	timeout time.Duration
	logger  zerolog.Logger
}

func NewRemoteEstimator(invoker remote.Invoker, timeout time.Duration, logger zerolog.Logger) *RemoteEstimator {
	return &RemoteEstimator{invoker: invoker, timeout: timeout, logger: logger}
}

func (e *RemoteEstimator) Estimate(ctx context.Context, a appointment.Appointment) time.Duration {
	if e.invoker == nil {
		return a.Duration()
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	req := request{
		AppointmentID:   a.ID.String(),
		Channel:         string(a.Channel),
		DurationMinutes: a.DurationMinutes,
		Notes:           a.Notes,
	}
	if a.PractitionerID != nil {
		req.PractitionerID = a.PractitionerID.String()
	}

	raw, err := e.invoker.Invoke(ctx, FunctionName, req)
	if err != nil {
		e.logger.Warn().Err(err).Str("appointment_id", req.AppointmentID).Msg("duration estimate failed, using booked duration")
		return a.Duration()
	}

	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil || resp.EstimatedMinutes <= 0 {
		e.logger.Warn().Str("appointment_id", req.AppointmentID).Str("response", string(raw)).Msg("unusable duration estimate, using booked duration")
		return a.Duration()
	}

	return time.Duration(resp.EstimatedMinutes) * time.Minute
}

// Fixed always answers with the booked duration.
type Fixed struct{}

func (Fixed) Estimate(_ context.Context, a appointment.Appointment) time.Duration {
	return a.Duration()
}
