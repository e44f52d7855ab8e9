// Package store persists memorial drafts and published memorials.
//
// Drafts live behind DraftStore, which the wizard treats as a remote,
// failable service: every operation takes a context and can return
// ErrNotFound or ErrRateLimited. Published memorials live behind
// MemorialRepository, a read-mostly cache over the database that feeds
// the public pages.
package store

import (
	"context"
	"errors"

	"github.com/evermore-app/evermore/internal/model"
	"github.com/rs/zerolog"
)

var storeLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	storeLogger = l
}

var (
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
	ErrSlugTaken   = errors.New("slug already in use")
)

// DraftPatch is a partial draft update. Nil fields are left untouched,
// which makes retrying the same patch harmless.
type DraftPatch struct {
	Content  *model.Content
	Progress *model.Progress
	Status   *model.DraftStatus
}

// Empty reports whether the patch would change nothing.
func (p DraftPatch) Empty() bool {
	return p.Content == nil && p.Progress == nil && p.Status == nil
}

type DraftStore interface {
	CreateDraft(ctx context.Context, owner model.UserID) (*model.Draft, error)
	GetDraft(ctx context.Context, id model.DraftID) (*model.Draft, error)
	// ListUnfinishedDrafts returns the owner's unpublished drafts,
	// most recently modified first.
	ListUnfinishedDrafts(ctx context.Context, owner model.UserID) ([]model.Draft, error)
	PatchDraft(ctx context.Context, id model.DraftID, patch DraftPatch) error
	DeleteDraft(ctx context.Context, id model.DraftID) error
}

type MemorialRepository interface {
	Init()
	GetMemorials() ([]model.Memorial, map[string]*model.Memorial, error)
	GetMemorialList() []model.Memorial
	ReadMemorial(slug string) (*model.Memorial, error)
	ReloadMemorials()
	PublishDraft(ctx context.Context, draft *model.Draft) (*model.Memorial, error)

	// SetReloadNotifier sets a function that will be called when a memorial's
	// content changes underneath the cache.
	SetReloadNotifier(notifier func(model.MemorialID))
}

type GuestbookStore interface {
	AddEntry(ctx context.Context, entry *model.GuestbookEntry) error
	// ListEntries returns entries for a memorial, newest first. Unless
	// includePending is set, only approved entries are returned.
	ListEntries(ctx context.Context, memorialID model.MemorialID, includePending bool) ([]model.GuestbookEntry, error)
	SetEntryStatus(ctx context.Context, id model.GuestbookEntryID, status model.GuestbookEntryStatus) error
}
