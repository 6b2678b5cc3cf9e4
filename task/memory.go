package task

import "sync"

// MemoryStore keeps tasks in a process-local slice.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks []Task
}

// NewMemoryStore returns a store holding a copy of seed.
func NewMemoryStore(seed []Task) (*MemoryStore, error) {
	if err := CheckSeed(seed); err != nil {
		return nil, err
	}
	tasks := make([]Task, len(seed))
	copy(tasks, seed)
	return &MemoryStore{tasks: tasks}, nil
}

// List returns a copy of the tasks in insertion order.
func (s *MemoryStore) List() ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out, nil
}

// Get returns the task with the given ID.
func (s *MemoryStore) Get(id int) (Task, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true, nil
		}
	}
	return Task{}, false, nil
}

// Replace overwrites the matching task in place.
func (s *MemoryStore) Replace(t Task) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == t.ID {
			s.tasks[i] = t
			return true, nil
		}
	}
	return false, nil
}
