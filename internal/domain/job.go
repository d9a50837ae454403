package domain

import (
	"strings"
	"time"
)

// JobStatus enumerates job lifecycle states. The uppercase wire values match
// what clients already poll for.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Result is populated once a job completes.
type Result struct {
	ImageURL string  `json:"image_url"`
	Cost     float64 `json:"cost"`
	Pool     string  `json:"pool,omitempty"`
}

// Job is one image-generation request tracked through its lifecycle. Records
// round-trip through JSON for the durable queue backend, so every field
// carries a stable tag.
type Job struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"user_id"`
	Prompt     string    `json:"prompt"`
	Parameters Params    `json:"parameters,omitempty"`
	Status     JobStatus `json:"status"`
	Result     *Result   `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// JobUpdate carries a partial merge into a stored job. Nil fields are left
// untouched.
type JobUpdate struct {
	Status *JobStatus
	Result *Result
	Error  *string
}

// Params is the open per-job configuration map (quality tier, target size,
// source image reference, watermark flag).
type Params map[string]any

// Quality returns the requested quality tier, or "" when unset.
func (p Params) Quality() string {
	return strings.TrimSpace(p.str("quality"))
}

// Size returns the requested output size, e.g. "1024x1024".
func (p Params) Size() string {
	return strings.TrimSpace(p.str("size"))
}

// SourceImageURL returns the source image reference that switches the
// provider call into edit mode.
func (p Params) SourceImageURL() string {
	return strings.TrimSpace(p.str("source_image_url"))
}

// Watermark returns the explicit watermark flag and whether it was set at all.
func (p Params) Watermark() (enabled, ok bool) {
	if p == nil {
		return false, false
	}
	v, present := p["watermark"]
	if !present {
		return false, false
	}
	b, isBool := v.(bool)
	if !isBool {
		return false, false
	}
	return b, true
}

func (p Params) str(key string) string {
	if p == nil {
		return ""
	}
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}
