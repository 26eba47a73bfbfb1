package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/stagehandhq/stagehand/internal/media"
)

// MemoryStore is an in-memory Store for tests and local development. It
// mirrors the postgres merge semantics: writes touch only the named
// top-level fields.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]map[string]any
	owners map[string]string
	refs   map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]map[string]any),
		owners: make(map[string]string),
		refs:   make(map[string][]string),
	}
}

func (s *MemoryStore) CreateDraft(ctx context.Context, profileID, userID string, doc media.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[profileID]; ok {
		return ErrAlreadyExists
	}
	m, err := toMap(doc)
	if err != nil {
		return err
	}
	s.docs[profileID] = m
	s.owners[profileID] = userID
	return nil
}

func (s *MemoryStore) ReadDraft(ctx context.Context, profileID string) (media.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.docs[profileID]
	if !ok {
		return media.Draft{}, ErrNotFound
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return media.Draft{}, err
	}
	var doc media.Draft
	if err := json.Unmarshal(raw, &doc); err != nil {
		return media.Draft{}, err
	}
	return doc, nil
}

func (s *MemoryStore) WriteDraft(ctx context.Context, profileID string, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.docs[profileID]
	if !ok {
		return ErrNotFound
	}
	// Round-trip through JSON so stored values match what postgres would
	// hold after a jsonb merge.
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	for k, v := range decoded {
		m[k] = v
	}
	return nil
}

func (s *MemoryStore) DeleteDraft(ctx context.Context, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[profileID]; !ok {
		return ErrNotFound
	}
	delete(s.docs, profileID)
	if owner, ok := s.owners[profileID]; ok {
		s.refs[owner] = removeRef(s.refs[owner], profileID)
		delete(s.owners, profileID)
	}
	return nil
}

func (s *MemoryStore) AttachProfileRef(ctx context.Context, userID, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.refs[userID] {
		if id == profileID {
			return nil
		}
	}
	s.refs[userID] = append(s.refs[userID], profileID)
	return nil
}

func (s *MemoryStore) DetachProfileRef(ctx context.Context, userID, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[userID] = removeRef(s.refs[userID], profileID)
	return nil
}

func (s *MemoryStore) ListProfileRefs(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.refs[userID]))
	copy(out, s.refs[userID])
	return out, nil
}

func toMap(doc media.Draft) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func removeRef(ids []string, profileID string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != profileID {
			out = append(out, id)
		}
	}
	return out
}
