package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/errs"
)

type errorBody struct {
	Error  string           `json:"error"`
	Code   string           `json:"code"`
	Fields []errs.Violation `json:"fields,omitempty"`
}

var statusByKind = map[errs.Kind]int{
	errs.KindValidation:      http.StatusBadRequest,
	errs.KindDomain:          http.StatusBadRequest,
	errs.KindUnauthenticated: http.StatusUnauthorized,
	errs.KindForbidden:       http.StatusForbidden,
	errs.KindNotFound:        http.StatusNotFound,
	errs.KindConflict:        http.StatusConflict,
	errs.KindAlreadyExists:   http.StatusConflict,
	errs.KindRateLimited:     http.StatusTooManyRequests,
	errs.KindStorage:         http.StatusInternalServerError,
}

// writeError maps err onto a status and JSON body. Storage failures are logged and
// answered with an opaque message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := statusByKind[kind]
	body := errorBody{Error: err.Error(), Code: string(kind)}

	var ve *errs.ValidationError
	var de *errs.DomainError
	switch {
	case errors.As(err, &ve):
		body.Error = "validation failed"
		body.Fields = ve.Violations
	case errors.As(err, &de):
		body.Error = de.Message
		body.Code = de.Code
	case kind == errs.KindConflict:
		body.Error = errs.ErrConflict.Error()
	case kind == errs.KindStorage:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
