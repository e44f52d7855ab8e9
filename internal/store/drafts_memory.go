package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/evermore-app/evermore/internal/model"
	"github.com/google/uuid"
)

// MemoryDraftStore keeps drafts in process memory. Used by tests and by
// local development without a database file.
type MemoryDraftStore struct {
	drafts sync.Map
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{}
}

func (m *MemoryDraftStore) CreateDraft(_ context.Context, owner model.UserID) (*model.Draft, error) {
	now := time.Now().UTC()

	draft := &model.Draft{
		ID:     model.DraftID(uuid.New().String()),
		Owner:  owner,
		Status: model.DraftStatusActive,

		Progress: model.NewProgress(),

		CreatedDate:  now,
		ModifiedDate: now,
	}

	m.drafts.Store(draft.ID, draft.Clone())
	return draft, nil
}

func (m *MemoryDraftStore) GetDraft(_ context.Context, id model.DraftID) (*model.Draft, error) {
	if draft, ok := m.drafts.Load(id); ok {
		return draft.(*model.Draft).Clone(), nil
	}
	return nil, fmt.Errorf("draft %s: %w", id, ErrNotFound)
}

func (m *MemoryDraftStore) ListUnfinishedDrafts(_ context.Context, owner model.UserID) ([]model.Draft, error) {
	drafts := make([]model.Draft, 0)
	m.drafts.Range(func(_, value any) bool {
		draft := value.(*model.Draft)
		if draft.Owner == owner && draft.Status == model.DraftStatusActive {
			drafts = append(drafts, *draft.Clone())
		}
		return true
	})

	slices.SortStableFunc(drafts, func(a, b model.Draft) int {
		return -a.ModifiedDate.Compare(b.ModifiedDate)
	})

	return drafts, nil
}

func (m *MemoryDraftStore) PatchDraft(_ context.Context, id model.DraftID, patch DraftPatch) error {
	value, ok := m.drafts.Load(id)
	if !ok {
		return fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}

	draft := value.(*model.Draft).Clone()
	if patch.Content != nil {
		draft.Content = patch.Content.Clone()
	}
	if patch.Progress != nil {
		draft.Progress = patch.Progress.Clone()
	}
	if patch.Status != nil {
		draft.Status = *patch.Status
	}
	draft.ModifiedDate = time.Now().UTC()

	m.drafts.Store(id, draft)
	return nil
}

func (m *MemoryDraftStore) DeleteDraft(_ context.Context, id model.DraftID) error {
	if _, ok := m.drafts.LoadAndDelete(id); !ok {
		return fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	return nil
}
