// shared/model/plan.go
package model

import (
	"strconv"
	"strings"
	"time"
)

// BuildStatus is the lifecycle state of a plan build as the UI sees it.
type BuildStatus string

const (
	StatusIdle       BuildStatus = "idle"
	StatusQueued     BuildStatus = "queued"
	StatusInProgress BuildStatus = "in_progress"
	StatusWarning    BuildStatus = "warning"
	StatusCompleted  BuildStatus = "completed"
	StatusFailed     BuildStatus = "failed"
)

// IsTerminal reports whether no further transitions happen without a new session.
func (s BuildStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s BuildStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusQueued, StatusInProgress, StatusWarning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

var remoteStatuses = map[string]BuildStatus{
	"idle":        StatusIdle,
	"queued":      StatusQueued,
	"pending":     StatusQueued,
	"accepted":    StatusQueued,
	"running":     StatusInProgress,
	"processing":  StatusInProgress,
	"in_progress": StatusInProgress,
	"in-progress": StatusInProgress,
	"started":     StatusInProgress,
	"building":    StatusInProgress,
	"warning":     StatusWarning,
	"degraded":    StatusWarning,
	"completed":   StatusCompleted,
	"complete":    StatusCompleted,
	"succeeded":   StatusCompleted,
	"success":     StatusCompleted,
	"done":        StatusCompleted,
	"error":       StatusFailed,
	"failed":      StatusFailed,
	"failure":     StatusFailed,
}

// ParseRemoteStatus maps the backend's status vocabulary onto BuildStatus.
func ParseRemoteStatus(raw string) (BuildStatus, bool) {
	s, ok := remoteStatuses[strings.ToLower(strings.TrimSpace(raw))]
	return s, ok
}

// ProgressStep is one intermediate step of a plan build (routing decision, runtime step).
type ProgressStep struct {
	Seq     int64     `json:"seq,omitempty"`
	Step    string    `json:"step"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Key identifies a step for deduplication across the realtime and polled
// sources. Without a sequence number the name, time and message together
// identify the event.
func (p ProgressStep) Key() string {
	if p.Seq > 0 {
		return "seq:" + strconv.FormatInt(p.Seq, 10)
	}
	return "step:" + p.Step + "@" + p.At.UTC().Format(time.RFC3339Nano) + ":" + p.Message
}

// StatusRecord is what presentation components render.
type StatusRecord struct {
	Status         BuildStatus    `json:"status"`
	Message        string         `json:"message,omitempty"`
	ResultID       string         `json:"result_id,omitempty"` // set only on completed
	ResultTitle    string         `json:"result_title,omitempty"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	Steps          []ProgressStep `json:"steps,omitempty"`
}

// Snapshot is a consistent read of the status store.
type Snapshot struct {
	StatusRecord
	SessionID string `json:"session_id,omitempty"`
	Revision  uint64 `json:"revision"`
}

// QuietFor is the time elapsed since the last status-affecting write.
func (s Snapshot) QuietFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivityAt)
}
