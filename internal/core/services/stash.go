package services

import "sync"

// textStash holds raw document text between upload acceptance and the
// asynchronous indexing run. Entries survive a failed run so Reindex can
// retry; they are only dropped when the document is deleted.
type textStash struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *textStash) put(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]string)
	}
	s.m[id] = text
}

// take returns the stashed text without removing it; the entry survives so
// a failed run can be retried. drop removes it for good.
func (s *textStash) take(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.m[id]
	return text, ok
}

func (s *textStash) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[id]
	return ok
}

func (s *textStash) drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
}
