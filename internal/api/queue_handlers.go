package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue-scheduling/internal/queue"
)

// getQueueHandler serves the board's last snapshot, refreshing first if the
// board has never been loaded.
func getQueueHandler(board Board) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := board.Snapshot()
		if snap.Version == 0 {
			if err := board.Refresh(r.Context()); err != nil {
				handleError(w, err)
				return
			}
			snap = board.Snapshot()
		}

		resp := QueueResponse{
			Version: snap.Version,
			Entries: toQueueEntries(snap.Entries),
		}
		if !snap.Date.IsZero() {
			resp.Date = snap.Date.Format(time.DateOnly)
		}
		if !snap.RefreshedAt.IsZero() {
			at := snap.RefreshedAt
			resp.RefreshedAt = &at
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func promoteHandler(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_queue_entry_id")
		if !ok {
			return
		}
		var req PromoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		ranked, err := svc.PromoteToEmergency(r.Context(), id, req.Reason)
		writeQueue(w, ranked, err)
	}
}

func reorderHandler(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_queue_entry_id")
		if !ok {
			return
		}
		var req ReorderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "position is required")
			return
		}

		ranked, err := svc.Reorder(r.Context(), id, *req.Position)
		writeQueue(w, ranked, err)
	}
}

func swapHandler(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SwapRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		a, errA := uuid.Parse(req.A)
		b, errB := uuid.Parse(req.B)
		if errA != nil || errB != nil {
			writeError(w, http.StatusBadRequest, "invalid_queue_entry_id", "a and b must be valid UUIDs")
			return
		}

		ranked, err := svc.Swap(r.Context(), a, b)
		writeQueue(w, ranked, err)
	}
}

func queueStatusHandler(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_queue_entry_id")
		if !ok {
			return
		}
		var req StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		to, err := queue.ParseStatus(req.Status)
		if err != nil {
			handleError(w, err)
			return
		}

		ranked, err := svc.AdvanceStatus(r.Context(), id, to)
		writeQueue(w, ranked, err)
	}
}

func writeQueue(w http.ResponseWriter, ranked []queue.Ranked, err error) {
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QueueResponse{Entries: toQueueEntries(ranked)})
}
