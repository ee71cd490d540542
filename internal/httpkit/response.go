package httpkit

import (
	"encoding/json"
	"fmt"
	"net/http"

	"wanworker/internal/pkg/errors"
)

// MaxBodyBytes bounds request bodies. Inline source images make job
// payloads large, so the limit is generous.
const MaxBodyBytes = 64 << 20

type ErrorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.UseNumber()
	return dec.Decode(v)
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteErr(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	var env ErrorEnvelope
	env.Error.Code = code
	env.Error.Message = msg
	env.Error.Details = details

	WriteJSON(w, status, env)
}

// WriteError renders err as an error envelope, taking status and code
// from the coded error when there is one.
func WriteError(w http.ResponseWriter, err error) {
	var details map[string]any
	if fields := errors.GetFields(err); len(fields) > 0 {
		details = make(map[string]any, len(fields))
		for k, v := range fields {
			details[k] = fmt.Sprint(v)
		}
	}
	WriteErr(w, errors.GetHTTPStatus(err), string(errors.GetCode(err)), errors.PublicMessage(err), details)
}
