package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	applog "saldo/internal/log"
	"saldo/internal/middleware/trace"
	"saldo/internal/services"
)

// APIError is the body of every error response.
type APIError struct {
	// Kind is one of bad_request, no_data, source, schema or internal.
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// errorStatus maps an error to its HTTP status and kind.
func errorStatus(err error) (int, string) {
	var paramErr *ParamError
	if errors.As(err, &paramErr) {
		return http.StatusBadRequest, "bad_request"
	}
	switch kind := services.ErrorKind(err); kind {
	case "no_data":
		return http.StatusServiceUnavailable, kind
	case "source":
		return http.StatusBadGateway, kind
	case "schema":
		return http.StatusUnprocessableEntity, kind
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"kind":"internal","message":"encoding failed"}`, http.StatusInternalServerError)
		return
	}
	writeBody(w, status, body)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError renders err as an APIError. Internal details are logged, not
// returned.
func writeError(w http.ResponseWriter, r *http.Request, err error, retryAfter time.Duration) {
	status, kind := errorStatus(err)
	msg := err.Error()

	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentHTTP)
	switch {
	case status >= 500 && kind == "internal":
		logger.ErrorContext(r.Context(), "Request failed", applog.FieldError, err, applog.FieldErrorType, kind)
		msg = "internal error"
	case status >= 500:
		logger.WarnContext(r.Context(), "Ledger unavailable", applog.FieldError, err, applog.FieldErrorType, kind)
	}

	if kind == "no_data" && retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}
	writeJSON(w, status, APIError{
		Kind:      kind,
		Message:   msg,
		RequestID: trace.GetRequestID(r.Context()),
	})
}
