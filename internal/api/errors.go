package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/fhz2mqtt/internal/bridge"
)

// API error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeInternal       = "internal_error"
	ErrCodeInvalidInput   = "invalid_input"
	ErrCodeOutOfRange     = "out_of_range"
	ErrCodeUnknownCommand = "unknown_command"
	ErrCodeNotConnected   = "not_connected"
	ErrCodeTransport      = "transport_error"
	ErrCodeUnavailable    = "unavailable"
)

// Error describes why a request failed.
type Error struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse is the body of every non-2xx answer. Failed set requests
// also carry the SetResult that was published to MQTT.
type ErrorResponse struct {
	Error  Error             `json:"error"`
	Result *bridge.SetResult `json:"result,omitempty"`
}

type setFailure struct {
	status int
	code   string
}

// setFailures maps SetResult error codes to an HTTP answer. Anything not
// listed is a transport failure.
var setFailures = map[string]setFailure{
	bridge.ErrCodeInvalidInput:   {http.StatusBadRequest, ErrCodeInvalidInput},
	bridge.ErrCodeOutOfRange:     {http.StatusBadRequest, ErrCodeOutOfRange},
	bridge.ErrCodeUnknownCommand: {http.StatusBadRequest, ErrCodeUnknownCommand},
	bridge.ErrCodeNotConnected:   {http.StatusServiceUnavailable, ErrCodeNotConnected},
}

func failureFor(err error) setFailure {
	if f, ok := setFailures[bridge.ErrorCode(err)]; ok {
		return f
	}
	return setFailure{http.StatusBadGateway, ErrCodeTransport}
}

// respond encodes v as the JSON body. A nil v sends headers only.
func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	//nolint:errcheck // The client may already be gone
	json.NewEncoder(w).Encode(v)
}

// fail answers r with an ErrorResponse.
func fail(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respond(w, status, ErrorResponse{Error: Error{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: requestIDFrom(r.Context()),
	}})
}

// failSet answers a set request the bridge rejected.
func failSet(w http.ResponseWriter, r *http.Request, err error, result bridge.SetResult) {
	f := failureFor(err)
	respond(w, f.status, ErrorResponse{
		Error: Error{
			Status:    f.status,
			Code:      f.code,
			Message:   err.Error(),
			RequestID: requestIDFrom(r.Context()),
		},
		Result: &result,
	})
}
