package snapshot

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals an unknown robot id. Recoverable: callers surface
// it as an empty result, never a crash.
var ErrNotFound = errors.New("snapshot not found")

// RuntimeState is the live per-robot context supplied with a diagnosis
// request. The engine reads it; it never owns or mutates it.
type RuntimeState struct {
	RobotID      string          `yaml:"robot_id" json:"robot_id"`
	Errors       []string        `yaml:"errors" json:"errors"`
	ActiveTopics map[string]bool `yaml:"active_topics,omitempty" json:"active_topics,omitempty"`
	Parameters   map[string]any  `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// ActiveErrors returns the error codes with duplicates removed, first
// occurrence preserved.
func (s RuntimeState) ActiveErrors() []string {
	return dedupe(s.Errors)
}

// RuntimeSnapshot is a persisted historical record, immutable once
// stored. Ingestion happens elsewhere; this module only reads ranges.
type RuntimeSnapshot struct {
	RobotID      string             `yaml:"robot_id" json:"robot_id"`
	Model        string             `yaml:"model" json:"model"`
	Firmware     string             `yaml:"firmware" json:"firmware"`
	Timestamp    time.Time          `yaml:"timestamp" json:"timestamp"`
	Errors       []string           `yaml:"errors,omitempty" json:"errors,omitempty"`
	JointStates  map[string]float64 `yaml:"joint_states,omitempty" json:"joint_states,omitempty"`
	ActiveTopics []string           `yaml:"active_topics,omitempty" json:"active_topics,omitempty"`
}

// HasError reports whether the snapshot lists code in its errors.
func (s RuntimeSnapshot) HasError(code string) bool {
	for _, e := range s.Errors {
		if e == code {
			return true
		}
	}
	return false
}

// Store is the read contract the engine needs against snapshot history.
// Implemented by the storage collaborator; the in-memory implementation
// here backs tests and the CLI.
type Store interface {
	// RecentSnapshots returns every snapshot for the model at or after
	// since, oldest first.
	RecentSnapshots(ctx context.Context, model string, since time.Time) ([]RuntimeSnapshot, error)
	// LatestSnapshot returns the most recent snapshot for the robot, or
	// ErrNotFound.
	LatestSnapshot(ctx context.Context, robotID string) (RuntimeSnapshot, error)
}

func dedupe(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
