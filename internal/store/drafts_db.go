package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evermore-app/evermore/internal/db"
	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/util/compression"
	"github.com/google/uuid"
)

type DBDraftStore struct { // implements DraftStore
	db         db.DB
	compressor compression.Compressor
}

func NewDBDraftStore(db db.DB) *DBDraftStore {
	return &DBDraftStore{
		db: db,

		compressor: compression.ZstdCompressor{},
	}
}

func (s *DBDraftStore) encodeContent(content model.Content) ([]byte, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("error encoding content: %w", err)
	}
	compressed, err := s.compressor.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("error compressing content: %w", err)
	}
	return compressed, nil
}

func (s *DBDraftStore) decodeContent(blob []byte) (model.Content, error) {
	var content model.Content
	if len(blob) == 0 {
		return content, nil
	}
	raw, err := s.compressor.Decompress(blob)
	if err != nil {
		return content, fmt.Errorf("error decompressing content: %w", err)
	}
	if err := json.Unmarshal(raw, &content); err != nil {
		return content, fmt.Errorf("error decoding content: %w", err)
	}
	return content, nil
}

func (s *DBDraftStore) CreateDraft(ctx context.Context, owner model.UserID) (*model.Draft, error) {
	now := time.Now().UTC()

	draft := &model.Draft{
		ID:     model.DraftID(uuid.New().String()),
		Owner:  owner,
		Status: model.DraftStatusActive,

		Progress: model.NewProgress(),

		CreatedDate:  now,
		ModifiedDate: now,
	}

	blob, err := s.encodeContent(draft.Content)
	if err != nil {
		return nil, err
	}
	completed, errored, err := marshalStepSets(draft.Progress)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Get().ExecContext(ctx,
		`INSERT INTO drafts (id, owner_id, status, content, current_step, completed_steps, errored_steps, created_at, modified_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		draft.ID, draft.Owner, draft.Status, blob, draft.Progress.CurrentStep, completed, errored,
		draft.CreatedDate, draft.ModifiedDate,
	)
	if err != nil {
		return nil, fmt.Errorf("error creating draft: %w", err)
	}

	storeLogger.Debug().Str("draft_id", string(draft.ID)).Str("owner", string(owner)).Msg("Draft created")

	return draft, nil
}

func (s *DBDraftStore) GetDraft(ctx context.Context, id model.DraftID) (*model.Draft, error) {
	row := s.db.Get().QueryRowContext(ctx,
		`SELECT id, owner_id, status, content, current_step, completed_steps, errored_steps, created_at, modified_at
		 FROM drafts WHERE id = $1`, id)

	draft, err := scanDraft(row, s)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("draft %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return draft, nil
}

func (s *DBDraftStore) ListUnfinishedDrafts(ctx context.Context, owner model.UserID) ([]model.Draft, error) {
	rows, err := s.db.Get().QueryContext(ctx,
		`SELECT id, owner_id, status, content, current_step, completed_steps, errored_steps, created_at, modified_at
		 FROM drafts WHERE owner_id = $1 AND status = $2 ORDER BY modified_at DESC`,
		owner, model.DraftStatusActive)
	if err != nil {
		return nil, fmt.Errorf("error querying drafts: %w", err)
	}
	defer rows.Close()

	drafts := make([]model.Draft, 0)
	for rows.Next() {
		draft, err := scanDraft(rows, s)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drafts: %w", err)
	}

	return drafts, nil
}

func (s *DBDraftStore) PatchDraft(ctx context.Context, id model.DraftID, patch DraftPatch) error {
	now := time.Now().UTC()

	sets := []string{"modified_at = $1"}
	args := []interface{}{now}
	next := 2

	if patch.Content != nil {
		blob, err := s.encodeContent(*patch.Content)
		if err != nil {
			return err
		}
		sets = append(sets, fmt.Sprintf("content = $%d", next))
		args = append(args, blob)
		next++
	}

	if patch.Progress != nil {
		completed, errored, err := marshalStepSets(*patch.Progress)
		if err != nil {
			return err
		}
		sets = append(sets,
			fmt.Sprintf("current_step = $%d", next),
			fmt.Sprintf("completed_steps = $%d", next+1),
			fmt.Sprintf("errored_steps = $%d", next+2),
		)
		args = append(args, patch.Progress.CurrentStep, completed, errored)
		next += 3
	}

	if patch.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", next))
		args = append(args, *patch.Status)
		next++
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE drafts SET %s WHERE id = $%d", strings.Join(sets, ", "), next)

	res, err := s.db.Get().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error patching draft: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error patching draft: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}

	storeLogger.Debug().Str("draft_id", string(id)).Msg("Draft patched")

	return nil
}

func (s *DBDraftStore) DeleteDraft(ctx context.Context, id model.DraftID) error {
	res, err := s.db.Get().ExecContext(ctx, `DELETE FROM drafts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting draft: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error deleting draft: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDraft(row rowScanner, s *DBDraftStore) (*model.Draft, error) {
	var draft model.Draft
	var blob []byte
	var completed, errored string

	err := row.Scan(&draft.ID, &draft.Owner, &draft.Status, &blob,
		&draft.Progress.CurrentStep, &completed, &errored,
		&draft.CreatedDate, &draft.ModifiedDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("error scanning draft: %w", err)
	}

	draft.Content, err = s.decodeContent(blob)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(completed), &draft.Progress.Completed); err != nil {
		return nil, fmt.Errorf("error decoding completed steps: %w", err)
	}
	if err := json.Unmarshal([]byte(errored), &draft.Progress.Errored); err != nil {
		return nil, fmt.Errorf("error decoding errored steps: %w", err)
	}

	return &draft, nil
}

func marshalStepSets(p model.Progress) (completed string, errored string, err error) {
	c, err := json.Marshal(p.Completed)
	if err != nil {
		return "", "", fmt.Errorf("error encoding completed steps: %w", err)
	}
	e, err := json.Marshal(p.Errored)
	if err != nil {
		return "", "", fmt.Errorf("error encoding errored steps: %w", err)
	}
	return string(c), string(e), nil
}
