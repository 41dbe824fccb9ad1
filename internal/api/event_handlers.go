package api

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"staffsync/internal/apperrors"
	"staffsync/internal/relay"
	"staffsync/internal/usecase"
)

const maxEventBody = 1 << 20

type EventHandlers struct {
	applyUC *usecase.ApplyEmployeeEvent
	log     *zap.Logger
}

func NewEventHandlers(applyUC *usecase.ApplyEmployeeEvent, log *zap.Logger) *EventHandlers {
	return &EventHandlers{applyUC: applyUC, log: log}
}

type eventAck struct {
	EventID string `json:"eventId"`
	Applied bool   `json:"applied"`
}

// ReceiveEmployeeEvent acknowledges duplicates with 200 so the relay stops retrying them.
func (h *EventHandlers) ReceiveEmployeeEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		writeProblem(w, h.log, apperrors.Invalid("read body: %v", err))
		return
	}

	evt := usecase.IncomingEvent{
		ID:      r.Header.Get(relay.HeaderEventID),
		Type:    r.Header.Get(relay.HeaderEventType),
		Payload: body,
	}
	applied, err := h.applyUC.Execute(r.Context(), evt)
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, eventAck{EventID: evt.ID, Applied: applied})
}
