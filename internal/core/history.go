package core

import "fmt"

// record stores a new run, dropping the oldest finished runs once the
// history is full. Runs still in flight are never dropped.
func (s *Service) record(res *RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[res.ID] = res
	s.order = append(s.order, res.ID)

	for len(s.order) > s.opts.HistorySize {
		dropped := false
		for i, id := range s.order {
			if r := s.runs[id]; r != nil && r.Phase.Done() {
				delete(s.runs, id)
				s.order = append(s.order[:i], s.order[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			break
		}
	}
}

// update applies fn to the stored run under the write lock.
func (s *Service) update(id string, fn func(r *RunResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[id]; ok {
		fn(r)
	}
}

func (s *Service) setPhase(id string, phase RunPhase) {
	s.update(id, func(r *RunResult) { r.Phase = phase })
}

// GetRun returns a snapshot of the run with the given id.
func (s *Service) GetRun(id string) (*RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r.clone(), nil
}

// Runs returns snapshots of every recorded run, newest first.
func (s *Service) Runs() []*RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*RunResult, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.runs[s.order[i]].clone())
	}
	return out
}
