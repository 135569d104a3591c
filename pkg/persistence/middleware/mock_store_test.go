package middleware_test

import (
	"context"

	"github.com/pichlex/debitor/pkg/domain"
	"github.com/pichlex/debitor/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
type MockStore struct {
	data map[string]*domain.ConversationState
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.ConversationState),
	}
}

func (s *MockStore) Save(ctx context.Context, id string, state *domain.ConversationState) error {
	s.data[id] = state
	return nil
}

func (s *MockStore) Load(ctx context.Context, id string) (*domain.ConversationState, error) {
	state, ok := s.data[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return state, nil
}

func (s *MockStore) Delete(ctx context.Context, id string) error {
	delete(s.data, id)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.CheckpointStore = (*MockStore)(nil)
