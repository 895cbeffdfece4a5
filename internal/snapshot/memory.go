package snapshot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a Store over an in-process slice. It serves tests and
// the CLI; production deployments wire the real storage collaborator.
type MemoryStore struct {
	mu    sync.RWMutex
	items []RuntimeSnapshot
}

func NewMemoryStore(snapshots ...RuntimeSnapshot) *MemoryStore {
	s := &MemoryStore{}
	s.Add(snapshots...)
	return s
}

func (s *MemoryStore) Add(snapshots ...RuntimeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, snapshots...)
}

func (s *MemoryStore) RecentSnapshots(_ context.Context, model string, since time.Time) ([]RuntimeSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RuntimeSnapshot
	for _, snap := range s.items {
		if snap.Model != model {
			continue
		}
		if snap.Timestamp.Before(since) {
			continue
		}
		out = append(out, snap)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Timestamp.Before(out[b].Timestamp)
	})
	return out, nil
}

func (s *MemoryStore) LatestSnapshot(_ context.Context, robotID string) (RuntimeSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest RuntimeSnapshot
	found := false
	for _, snap := range s.items {
		if snap.RobotID != robotID {
			continue
		}
		if !found || snap.Timestamp.After(latest.Timestamp) {
			latest = snap
			found = true
		}
	}
	if !found {
		return RuntimeSnapshot{}, fmt.Errorf("%w: robot %q", ErrNotFound, robotID)
	}
	return latest, nil
}

// RobotIDs returns every distinct robot id present, sorted.
func (s *MemoryStore) RobotIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, snap := range s.items {
		seen[snap.RobotID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
