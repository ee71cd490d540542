package processor

import (
	"fmt"
	"regexp"
	"strings"

	"wanworker/internal/config"
	"wanworker/internal/pkg/errors"
)

const maxJobIDLen = 128

// Job IDs name per-job output directories and object-store rows, so they
// are limited to a single path-safe element.
var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateJobID rejects IDs that are not a short run of letters, digits,
// '_' and '-'.
func ValidateJobID(id string) error {
	if len(id) > maxJobIDLen || !jobIDPattern.MatchString(id) {
		return errors.Validation("Invalid job id.").
			WithOp("request.job_id").
			WithField("id", id)
	}
	return nil
}

// Request is a validated job payload.
type Request struct {
	Task     string
	Size     string
	Prompt   string
	ImageB64 string
}

// HasImage reports whether a source image was supplied.
func (r Request) HasImage() bool {
	return r.ImageB64 != ""
}

// ParseRequest applies defaults and rejects payloads without a prompt.
// Task and size are passed through untouched; task is checked when the
// invocation is built. A nil payload is treated as empty.
func ParseRequest(payload map[string]any) (Request, error) {
	req := Request{
		Task:   stringField(payload, "task", config.DefaultTask),
		Size:   stringField(payload, "size", config.DefaultSize),
		Prompt: strings.TrimSpace(stringField(payload, "prompt", "")),
	}

	if req.Prompt == "" {
		return Request{}, errors.Validation("Missing prompt.").WithOp("request.parse")
	}

	switch v := payload["image_b64"].(type) {
	case nil:
	case string:
		req.ImageB64 = v
	default:
		return Request{}, errors.Validation("image_b64 must be a base64 string.").
			WithOp("request.parse").
			WithField("type", fmt.Sprintf("%T", v))
	}

	return req, nil
}

// stringField coerces scalar values with fmt.Sprint so that e.g. a numeric
// prompt is still accepted.
func stringField(payload map[string]any, key, def string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
