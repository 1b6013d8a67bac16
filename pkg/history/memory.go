package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps runs in memory.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*Run)}
}

// Save stores a copy of run.
func (s *MemoryStore) Save(ctx context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return newStorageError("memory", "save", fmt.Errorf("run %q already exists", run.ID))
	}
	s.runs[run.ID] = copyRun(run)
	return nil
}

// Get returns a copy of the run with the given ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return copyRun(run), nil
}

// List returns copies of matching runs, newest first.
func (s *MemoryStore) List(ctx context.Context, query *Query) ([]*Run, error) {
	if query == nil {
		query = &Query{}
	}
	matched := s.matching(query)

	start := query.Offset
	if start > len(matched) {
		return []*Run{}, nil
	}
	end := len(matched)
	if query.Limit > 0 && start+query.Limit < end {
		end = start + query.Limit
	}

	results := make([]*Run, 0, end-start)
	for _, run := range matched[start:end] {
		results = append(results, copyRun(run))
	}
	return results, nil
}

// Count returns the number of matching runs.
func (s *MemoryStore) Count(ctx context.Context, query *Query) (int64, error) {
	if query == nil {
		query = &Query{}
	}
	return int64(len(s.matching(query))), nil
}

// Delete removes matching runs.
func (s *MemoryStore) Delete(ctx context.Context, query *Query) (int64, error) {
	if query == nil {
		query = &Query{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, run := range s.runs {
		if matches(run, query) {
			delete(s.runs, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// matching returns the matching runs sorted newest first.
func (s *MemoryStore) matching(query *Query) []*Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Run
	for _, run := range s.runs {
		if matches(run, query) {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func matches(run *Run, query *Query) bool {
	if query.Since != nil && run.StartedAt.Before(*query.Since) {
		return false
	}
	if query.Until != nil && !run.StartedAt.Before(*query.Until) {
		return false
	}
	if query.Terminal != "" && run.Terminal != query.Terminal {
		return false
	}
	if query.RuleSetVersion != "" && run.RuleSetVersion != query.RuleSetVersion {
		return false
	}
	return true
}

func copyRun(run *Run) *Run {
	c := *run
	c.Fired = append(c.Fired[:0:0], run.Fired...)
	c.ActionErrors = append(c.ActionErrors[:0:0], run.ActionErrors...)
	return &c
}
