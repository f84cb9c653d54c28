package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
)

// Problem type URIs, relative to the API origin.
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeServiceDown      = "/errors/service-unavailable"
	TypeTimeout          = "/errors/timeout"
	TypeConflict         = "/errors/conflict"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeUnsupportedMedia = "/errors/unsupported-media-type"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
)

// Attendance-specific problem types
const (
	TypeRosterSchema   = "/errors/roster/schema"
	TypeRosterValue    = "/errors/roster/value"
	TypeRosterEmpty    = "/errors/roster/empty"
	TypeNoDataset      = "/errors/roster/not-loaded"
	TypeStudentUnknown = "/errors/roster/student-not-found"
	TypeLeaveNotFound  = "/errors/leave/not-found"
	TypeLeaveDecided   = "/errors/leave/already-decided"
)

// ProblemDetails is an RFC 7807 problem. Extensions are emitted as extra
// top-level members; they cannot override the standard ones.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`
}

func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{Type: problemType, Title: title, Status: status, Detail: detail, Instance: instance}
}

// WithExtension sets one extension member and returns pd for chaining.
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	if pd.Extensions == nil {
		pd.Extensions = make(map[string]interface{}, 2)
	}
	pd.Extensions[key] = value
	return pd
}

// Render sets the response status; go-chi/render writes the body.
func (pd *ProblemDetails) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	type members ProblemDetails // drops the method set, avoiding recursion
	std, err := json.Marshal((*members)(pd))
	if err != nil || len(pd.Extensions) == 0 {
		return std, err
	}

	merged := make(map[string]interface{}, len(pd.Extensions)+5)
	for k, v := range pd.Extensions {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(std, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}
