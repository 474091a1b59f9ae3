package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-pjlink/internal/state"
)

// SlotResponse is a slot definition with its current value, if any.
type SlotResponse struct {
	state.Definition
	Value *state.Value `json:"value,omitempty"`
}

// setSlotRequest is the PUT body. Val is required.
type setSlotRequest struct {
	Val *json.RawMessage `json:"val"`
}

func (s *Server) slotResponse(def state.Definition) SlotResponse {
	resp := SlotResponse{Definition: def}
	if v, ok := s.store.Get(def.ID); ok {
		resp.Value = &v
	}
	return resp
}

func (s *Server) handleListSlots(w http.ResponseWriter, _ *http.Request) {
	defs := s.store.Definitions()
	slots := make([]SlotResponse, 0, len(defs))
	for _, def := range defs {
		slots = append(slots, s.slotResponse(def))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slots": slots,
		"count": len(slots),
	})
}

func (s *Server) handleGetSlot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	def, ok := s.store.Definition(id)
	if !ok {
		writeNotFound(w, "slot not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, s.slotResponse(def))
}

// handleSetSlot records a user write. The projector session acts on it
// asynchronously, so success is 202 rather than the confirmed value.
func (s *Server) handleSetSlot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Val == nil {
		writeBadRequest(w, `body must contain "val"`)
		return
	}

	var val any
	if err := json.Unmarshal(*req.Val, &val); err != nil {
		writeBadRequest(w, "invalid value")
		return
	}

	err := s.store.Set(id, val, false)
	switch {
	case errors.Is(err, state.ErrUnknownSlot):
		writeNotFound(w, "slot not found: "+id)
		return
	case errors.Is(err, state.ErrReadOnly):
		writeForbidden(w, "slot is read-only: "+id)
		return
	case err != nil:
		s.logger.Error("slot write failed", "slot", id, "error", err)
		writeInternalError(w, "slot write failed")
		return
	}

	s.logger.Info("slot write accepted", "slot", id, "val", val)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":     id,
		"status": "accepted",
	})
}
