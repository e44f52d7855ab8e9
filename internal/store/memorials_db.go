package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/evermore-app/evermore/internal/cache"
	"github.com/evermore-app/evermore/internal/db"
	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/util"
	"github.com/evermore-app/evermore/internal/util/compression"
	"github.com/google/uuid"
)

type DBMemorialRepository struct { // implements MemorialRepository
	memorialsCache  *cache.Cache[string, *model.Memorial]
	memorialsSorted []model.Memorial
	mu              sync.RWMutex

	reloadNotifier   func(model.MemorialID)
	lastModifiedTime *time.Time // Track the latest modification time

	db         db.DB
	compressor compression.Compressor
}

func NewDBMemorialRepository(db db.DB) *DBMemorialRepository {
	return &DBMemorialRepository{
		memorialsCache: cache.NewCache[string, *model.Memorial](),

		db: db,

		compressor: compression.ZstdCompressor{},
	}
}

func (r *DBMemorialRepository) Init() {
	memorials, memorialMap, err := r.GetMemorials()
	if err != nil {
		storeLogger.Fatal().Err(err).Msg("Error initializing memorials")
	}

	r.setCache(memorials, memorialMap)

	go r.ReloadMemorials()
}

func (r *DBMemorialRepository) setCache(memorials []model.Memorial, memorialMap map[string]*model.Memorial) {
	r.mu.Lock()
	r.memorialsSorted = memorials
	r.mu.Unlock()
	r.memorialsCache.SetTo(memorialMap)
}

func (r *DBMemorialRepository) GetLatestModifiedTime() (*time.Time, error) {
	var latestTimeStr sql.NullString
	row := r.db.Get().QueryRow(`SELECT MAX(modified_at) FROM memorials`)
	err := row.Scan(&latestTimeStr)
	if err != nil {
		return nil, fmt.Errorf("error scanning latest modified time: %w", err)
	}

	if !latestTimeStr.Valid {
		return nil, nil // It was NULL, so no memorials or no valid timestamps.
	}

	// The go-sqlite3 driver returns a string for MAX(), so we must parse it.
	// It can be in a format with a space separator.
	timeFormats := []string{
		"2006-01-02 15:04:05.999999999-07:00", // Space separator with timezone
		time.RFC3339Nano,                      // 'T' separator with timezone
		time.RFC3339,                          // 'T' separator, no nanos
	}

	var latestTime time.Time
	var parseErr error
	for _, format := range timeFormats {
		latestTime, parseErr = time.Parse(format, latestTimeStr.String)
		if parseErr == nil {
			return &latestTime, nil
		}
	}

	return nil, fmt.Errorf("error parsing latest modified time '%s' with any known format: %w", latestTimeStr.String, parseErr)
}

func (r *DBMemorialRepository) GetMemorials() ([]model.Memorial, map[string]*model.Memorial, error) {
	rows, err := r.db.Query(`SELECT id, draft_id, owner_id, slug, content, content_hash, published_at, modified_at FROM memorials`)
	if err != nil {
		return nil, nil, fmt.Errorf("error querying memorials: %w", err)
	}
	defer rows.Close()

	memorials := make([]model.Memorial, 0)
	memorialMap := make(map[string]*model.Memorial)
	var latestModTime *time.Time

	for rows.Next() {
		var memorial model.Memorial
		var draftID sql.NullString
		var compressed []byte

		err := rows.Scan(&memorial.ID, &draftID, &memorial.Owner, &memorial.Slug,
			&compressed, &memorial.ContentHash, &memorial.PublishedDate, &memorial.ModifiedDate)
		if err != nil {
			return nil, nil, fmt.Errorf("error scanning memorial: %w", err)
		}
		if draftID.Valid {
			memorial.DraftID = model.DraftID(draftID.String)
		}

		// Track the latest modification time
		if latestModTime == nil || memorial.ModifiedDate.After(*latestModTime) {
			modified := memorial.ModifiedDate
			latestModTime = &modified
		}

		// Decompress and decode the content
		raw, err := r.compressor.Decompress(compressed)
		if err != nil {
			return nil, nil, fmt.Errorf("error decompressing content: %w", err)
		}
		if err := json.Unmarshal(raw, &memorial.Content); err != nil {
			return nil, nil, fmt.Errorf("error decoding content: %w", err)
		}

		memorials = append(memorials, memorial)
		memorialMap[memorial.Slug] = &memorial
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating memorials: %w", err)
	}

	// Update our tracked modification time
	r.lastModifiedTime = latestModTime

	// Sort the memorials by publish date
	slices.SortStableFunc(memorials, func(a, b model.Memorial) int {
		return -a.PublishedDate.Compare(b.PublishedDate)
	})

	return memorials, memorialMap, nil
}

func (r *DBMemorialRepository) GetMemorialList() []model.Memorial {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.memorialsSorted
}

func (r *DBMemorialRepository) ReadMemorial(slug string) (*model.Memorial, error) {
	memorial, ok := r.memorialsCache.Get(slug)
	if !ok {
		return nil, fmt.Errorf("memorial %s: %w", slug, ErrNotFound)
	}
	return memorial, nil
}

func (r *DBMemorialRepository) ReloadMemorials() {
	sleepFunc := func() {
		time.Sleep(10 * time.Second)
	}

	for {
		// First, do a lightweight check to see if anything has changed
		latestTime, err := r.GetLatestModifiedTime()
		if err != nil {
			storeLogger.Error().Err(err).Msg("Error checking latest modification time")
			sleepFunc()
			continue
		}

		// If we have a cached time and nothing has changed, skip
		if r.lastModifiedTime != nil && latestTime != nil && !latestTime.After(*r.lastModifiedTime) {
			storeLogger.Debug().Msg("No memorials modified, skipping reload")
			sleepFunc()
			continue
		}

		storeLogger.Debug().Msg("Memorials may have changed, performing full reload")

		// Something changed, do the full reload
		memorials, memorialMap, err := r.GetMemorials()
		if err != nil {
			storeLogger.Error().Err(err).Msg("Error reloading memorials")
		} else if r.applyReload(memorials, memorialMap) {
			storeLogger.Info().Msg("Memorials have changed, updating cache")
		}

		sleepFunc()
	}
}

// applyReload diffs the fresh load against the cache, fires change
// notifications, and swaps the cache when anything differs.
func (r *DBMemorialRepository) applyReload(memorials []model.Memorial, memorialMap map[string]*model.Memorial) bool {
	hasChanges := false

	r.mu.RLock()
	cached := make(map[string]*model.Memorial)
	for i := range r.memorialsSorted {
		cached[string(r.memorialsSorted[i].ID)] = &r.memorialsSorted[i]
	}
	cachedCount := len(r.memorialsSorted)
	r.mu.RUnlock()

	for i := range memorials {
		fresh := &memorials[i]
		if previous, exists := cached[string(fresh.ID)]; exists {
			if fresh.ContentHash != previous.ContentHash {
				hasChanges = true
				storeLogger.Info().
					Str("memorial_id", string(fresh.ID)).
					Str("slug", fresh.Slug).
					Msg("Memorial content changed, reloading")
				if r.reloadNotifier != nil {
					go r.reloadNotifier(fresh.ID)
				}
			}
		} else {
			hasChanges = true
			storeLogger.Info().
				Str("memorial_id", string(fresh.ID)).
				Str("slug", fresh.Slug).
				Msg("New memorial detected")
		}
	}

	if len(memorials) != cachedCount {
		hasChanges = true
		storeLogger.Info().Msg("Number of memorials changed")
	}

	if hasChanges {
		r.setCache(memorials, memorialMap)
	}
	return hasChanges
}

func (r *DBMemorialRepository) SetReloadNotifier(notifier func(model.MemorialID)) {
	r.reloadNotifier = notifier
}

// resolveSlug picks the public URL for a new memorial: the owner's custom
// URL when valid, a name-derived slug otherwise, the memorial ID as the
// last resort.
func (r *DBMemorialRepository) resolveSlug(draft *model.Draft, id model.MemorialID) (string, error) {
	if custom := draft.Content.Privacy.CustomURL; custom != "" {
		if !util.IsValidSlug(custom) {
			return "", fmt.Errorf("custom url %q is not a valid slug", custom)
		}
		if r.slugExists(custom) {
			return "", fmt.Errorf("custom url %q: %w", custom, ErrSlugTaken)
		}
		return custom, nil
	}

	derived := util.Slugify(draft.Content.Identity.DisplayName())
	if util.IsValidSlug(derived) {
		if !r.slugExists(derived) {
			return derived, nil
		}
		// Derived slugs get a suffix instead of failing publication.
		suffixed := derived + "-" + string(id)[:8]
		if util.IsValidSlug(suffixed) && !r.slugExists(suffixed) {
			return suffixed, nil
		}
	}

	return string(id), nil
}

func (r *DBMemorialRepository) slugExists(slug string) bool {
	var count int
	row := r.db.Get().QueryRow(`SELECT COUNT(1) FROM memorials WHERE slug = $1`, slug)
	if err := row.Scan(&count); err != nil {
		storeLogger.Error().Err(err).Str("slug", slug).Msg("Error checking slug")
		return false
	}
	return count > 0
}

func (r *DBMemorialRepository) PublishDraft(ctx context.Context, draft *model.Draft) (*model.Memorial, error) {
	now := time.Now().UTC()

	memorial := &model.Memorial{
		ID:      model.MemorialID(uuid.New().String()),
		DraftID: draft.ID,
		Owner:   draft.Owner,

		Content: draft.Content.Clone(),

		PublishedDate: now,
		ModifiedDate:  now,
	}

	slug, err := r.resolveSlug(draft, memorial.ID)
	if err != nil {
		return nil, err
	}
	memorial.Slug = slug

	raw, err := json.Marshal(memorial.Content)
	if err != nil {
		return nil, fmt.Errorf("error encoding content: %w", err)
	}
	compressed, err := r.compressor.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("error compressing content: %w", err)
	}
	memorial.ContentHash = util.ContentHash(compressed)

	_, err = r.db.Get().ExecContext(ctx,
		`INSERT INTO memorials (id, draft_id, owner_id, slug, content, content_hash, published_at, modified_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		memorial.ID, memorial.DraftID, memorial.Owner, memorial.Slug,
		compressed, memorial.ContentHash, memorial.PublishedDate, memorial.ModifiedDate,
	)
	if err != nil {
		// The unique index is the backstop for racing publishes.
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "unique") {
			return nil, fmt.Errorf("slug %q: %w", memorial.Slug, ErrSlugTaken)
		}
		return nil, fmt.Errorf("error saving memorial: %w", err)
	}

	// Make the memorial servable immediately rather than waiting for the
	// next reload poll.
	r.memorialsCache.Set(memorial.Slug, memorial)
	r.mu.Lock()
	r.memorialsSorted = append([]model.Memorial{*memorial}, r.memorialsSorted...)
	r.mu.Unlock()

	storeLogger.Info().
		Str("memorial_id", string(memorial.ID)).
		Str("draft_id", string(draft.ID)).
		Str("slug", memorial.Slug).
		Msg("Draft published")

	return memorial, nil
}
