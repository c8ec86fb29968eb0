package estimate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/hackgods/clinic-queue-scheduling/internal/apperr"
	"github.com/hackgods/clinic-queue-scheduling/internal/appointment"
)

type stubInvoker struct {
	name    string
	payload any
	out     string
	err     error
}

func (s *stubInvoker) Invoke(_ context.Context, name string, payload any) (json.RawMessage, error) {
	s.name = name
	s.payload = payload
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.out), nil
}

func testAppointment() appointment.Appointment {
	return appointment.Appointment{
		ID:              uuid.New(),
		DurationMinutes: 30,
		Channel:         appointment.ChannelOnline,
		Notes:           "crown fitting",
	}
}

func TestRemoteEstimatorUsesFunctionResult(t *testing.T) {
	inv := &stubInvoker{out: `{"estimated_minutes": 55}`}
	e := NewRemoteEstimator(inv, time.Second, zerolog.Nop())

	got := e.Estimate(context.Background(), testAppointment())

	assert.Equal(t, 55*time.Minute, got)
	assert.Equal(t, FunctionName, inv.name)
	req, ok := inv.payload.(request)
	if assert.True(t, ok) {
		assert.Equal(t, 30, req.DurationMinutes)
		assert.Equal(t, "crown fitting", req.Notes)
		assert.Empty(t, req.PractitionerID)
	}
}

func TestRemoteEstimatorFallsBack(t *testing.T) {
	tests := []struct {
		name string
		inv  *stubInvoker
	}{
		{"network error", &stubInvoker{err: fmt.Errorf("%w: down", apperr.ErrNetwork)}},
		{"authorization", &stubInvoker{err: errors.New("forbidden")}},
		{"zero estimate", &stubInvoker{out: `{"estimated_minutes": 0}`}},
		{"garbage", &stubInvoker{out: `"soon"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewRemoteEstimator(tt.inv, time.Second, zerolog.Nop())
			assert.Equal(t, 30*time.Minute, e.Estimate(context.Background(), testAppointment()))
		})
	}
}

func TestFixed(t *testing.T) {
	assert.Equal(t, 30*time.Minute, Fixed{}.Estimate(context.Background(), testAppointment()))
}
