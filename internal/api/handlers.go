package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue-scheduling/internal/appointment"
)

func availabilityHandler(svc AppointmentService, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := parseDateParam(w, r, loc)
		if !ok {
			return
		}
		practitionerID, ok := parseOptionalUUIDParam(w, r, "practitioner_id")
		if !ok {
			return
		}

		slots, err := svc.Availability(r.Context(), date, practitionerID)
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			Date:           date.Format(time.DateOnly),
			PractitionerID: practitionerID,
			Slots:          slots,
		})
	}
}

func bookAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		var practitionerID *uuid.UUID
		if req.PractitionerID != nil && *req.PractitionerID != "" {
			id, err := uuid.Parse(*req.PractitionerID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
				return
			}
			practitionerID = &id
		}

		book := appointment.BookRequest{
			PatientID:       patientID,
			PractitionerID:  practitionerID,
			DurationMinutes: req.DurationMinutes,
			Channel:         appointment.Channel(req.Channel),
			Notes:           req.Notes,
		}
		if book.Channel == "" {
			book.Channel = appointment.ChannelOnline
		}
		if req.StartTime != nil {
			book.StartTime = *req.StartTime
		}

		appt, err := svc.Book(r.Context(), book)
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc AppointmentService, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := parseDateParam(w, r, loc)
		if !ok {
			return
		}
		practitionerID, ok := parseOptionalUUIDParam(w, r, "practitioner_id")
		if !ok {
			return
		}

		appts, err := svc.ListForDay(r.Context(), date, practitionerID)
		if err != nil {
			handleError(w, err)
			return
		}

		resp := make([]AppointmentResponse, len(appts))
		for i := range appts {
			resp[i] = toAppointmentResponse(&appts[i])
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func appointmentStatusHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		var req StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		to, err := appointment.ParseStatus(req.Status)
		if err != nil {
			handleError(w, err)
			return
		}

		appt, err := svc.AdvanceStatus(r.Context(), id, to)
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseDateParam(w http.ResponseWriter, r *http.Request, loc *time.Location) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "invalid_date", "date is required (YYYY-MM-DD)")
		return time.Time{}, false
	}
	date, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func parseOptionalUUIDParam(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return nil, false
	}
	return &id, true
}
