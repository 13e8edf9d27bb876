package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"thumbexpert/internal/model"
	"thumbexpert/internal/store"
)

const (
	kindHistory   = "history"
	kindFavorites = "favorites"
	kindBrandKit  = "brandkit"
)

func (db *DB) History(ctx context.Context, userID string) ([]model.HistoryItem, error) {
	var items []model.HistoryItem
	if _, err := db.load(ctx, userID, kindHistory, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (db *DB) SaveHistory(ctx context.Context, userID string, items []model.HistoryItem) error {
	return db.save(ctx, userID, kindHistory, model.CapHistory(items, db.maxHistory))
}

func (db *DB) Favorites(ctx context.Context, userID string) ([]string, error) {
	var urls []string
	if _, err := db.load(ctx, userID, kindFavorites, &urls); err != nil {
		return nil, err
	}
	return urls, nil
}

func (db *DB) SaveFavorites(ctx context.Context, userID string, urls []string) error {
	return db.save(ctx, userID, kindFavorites, urls)
}

func (db *DB) BrandKit(ctx context.Context, userID string) (*model.BrandKit, error) {
	var kit model.BrandKit
	found, err := db.load(ctx, userID, kindBrandKit, &kit)
	if err != nil || !found {
		return nil, err
	}
	return &kit, nil
}

func (db *DB) SaveBrandKit(ctx context.Context, userID string, kit model.BrandKit) error {
	return db.save(ctx, userID, kindBrandKit, kit)
}

// load decodes the stored document into out. A user without one reports found=false;
// an unknown user is store.ErrNotFound.
func (db *DB) load(ctx context.Context, userID, kind string, out any) (bool, error) {
	var payload string
	err := db.queryRow(ctx,
		`SELECT payload FROM user_collections WHERE user_id = ? AND kind = ?`, userID, kind,
	).Scan(&payload)
	if err != nil {
		if isNoRows(err) {
			return false, db.ensureUser(ctx, userID)
		}
		return false, fmt.Errorf("sqlstore: loading %s for %s: %w", kind, userID, err)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return false, fmt.Errorf("sqlstore: decoding %s for %s: %w", kind, userID, err)
	}
	return true, nil
}

func (db *DB) save(ctx context.Context, userID, kind string, value any) error {
	if err := db.ensureUser(ctx, userID); err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sqlstore: encoding %s: %w", kind, err)
	}

	_, err = db.exec(ctx,
		`INSERT INTO user_collections (user_id, kind, payload, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, kind) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		userID, kind, string(payload), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: saving %s for %s: %w", kind, userID, err)
	}
	return nil
}

func (db *DB) ensureUser(ctx context.Context, userID string) error {
	var id string
	err := db.queryRow(ctx, `SELECT id FROM users WHERE id = ?`, userID).Scan(&id)
	if isNoRows(err) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("sqlstore: checking user %s: %w", userID, err)
	}
	return nil
}
