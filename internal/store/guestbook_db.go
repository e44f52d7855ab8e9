package store

import (
	"context"
	"fmt"
	"time"

	"github.com/evermore-app/evermore/internal/db"
	"github.com/evermore-app/evermore/internal/model"
	"github.com/google/uuid"
)

type DBGuestbookStore struct { // implements GuestbookStore
	db db.DB
}

func NewDBGuestbookStore(db db.DB) *DBGuestbookStore {
	return &DBGuestbookStore{db: db}
}

func (s *DBGuestbookStore) AddEntry(ctx context.Context, entry *model.GuestbookEntry) error {
	if entry.ID == "" {
		entry.ID = model.GuestbookEntryID(uuid.New().String())
	}
	if entry.Status == "" {
		entry.Status = model.GuestbookPending
	}
	if entry.CreatedDate.IsZero() {
		entry.CreatedDate = time.Now().UTC()
	}

	_, err := s.db.Get().ExecContext(ctx,
		`INSERT INTO guestbook_entries (id, memorial_id, author_name, message, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.MemorialID, entry.AuthorName, entry.Message, entry.Status, entry.CreatedDate,
	)
	if err != nil {
		return fmt.Errorf("error saving guestbook entry: %w", err)
	}
	return nil
}

func (s *DBGuestbookStore) ListEntries(ctx context.Context, memorialID model.MemorialID, includePending bool) ([]model.GuestbookEntry, error) {
	query := `SELECT id, memorial_id, author_name, message, status, created_at FROM guestbook_entries
		WHERE memorial_id = $1`
	args := []any{memorialID}
	if !includePending {
		query += ` AND status = $2`
		args = append(args, model.GuestbookApproved)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Get().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying guestbook entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.GuestbookEntry, 0)
	for rows.Next() {
		var entry model.GuestbookEntry
		err := rows.Scan(&entry.ID, &entry.MemorialID, &entry.AuthorName,
			&entry.Message, &entry.Status, &entry.CreatedDate)
		if err != nil {
			return nil, fmt.Errorf("error scanning guestbook entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating guestbook entries: %w", err)
	}

	return entries, nil
}

func (s *DBGuestbookStore) SetEntryStatus(ctx context.Context, id model.GuestbookEntryID, status model.GuestbookEntryStatus) error {
	result, err := s.db.Get().ExecContext(ctx,
		`UPDATE guestbook_entries SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("error updating guestbook entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking guestbook update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("guestbook entry %s: %w", id, ErrNotFound)
	}
	return nil
}
