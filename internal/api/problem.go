package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"staffsync/internal/apperrors"
)

// Problem is an RFC 7807 body.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func problemFor(err error) Problem {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return Problem{Type: "urn:problem:validation", Status: http.StatusBadRequest, Detail: err.Error()}
	case errors.Is(err, apperrors.ErrReferenceNotFound), errors.Is(err, apperrors.ErrNotFound):
		return Problem{Type: "urn:problem:not-found", Status: http.StatusNotFound, Detail: err.Error()}
	case errors.Is(err, apperrors.ErrReferentialConflict), errors.Is(err, apperrors.ErrDuplicateResource):
		return Problem{Type: "urn:problem:conflict", Status: http.StatusConflict, Detail: err.Error()}
	case errors.Is(err, apperrors.ErrRemoteCheckUnavailable):
		return Problem{Type: "urn:problem:internal", Status: http.StatusServiceUnavailable, Detail: "a dependent service is unavailable"}
	default:
		return Problem{Type: "urn:problem:internal", Status: http.StatusInternalServerError, Detail: "internal error"}
	}
}

func writeProblem(w http.ResponseWriter, log *zap.Logger, err error) {
	p := problemFor(err)
	p.Title = http.StatusText(p.Status)
	if p.Status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
