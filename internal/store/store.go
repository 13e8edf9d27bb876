// Package store persists accounts and their per-user collections.
package store

import (
	"context"
	"errors"

	"thumbexpert/internal/model"
)

var (
	ErrNotFound   = errors.New("store: not found")
	ErrEmailTaken = errors.New("store: email already registered")
)

type Users interface {
	// CreateUser assigns an ID and creation time when they are unset.
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	UserByID(ctx context.Context, id string) (model.User, error)
	UserByEmail(ctx context.Context, email string) (model.User, error)
	UpdateUser(ctx context.Context, u model.User) error
}

// Data holds the three per-user collections. Every save replaces the stored value wholesale.
type Data interface {
	History(ctx context.Context, userID string) ([]model.HistoryItem, error)
	SaveHistory(ctx context.Context, userID string, items []model.HistoryItem) error
	Favorites(ctx context.Context, userID string) ([]string, error)
	SaveFavorites(ctx context.Context, userID string, urls []string) error
	// BrandKit returns nil when the user never saved one.
	BrandKit(ctx context.Context, userID string) (*model.BrandKit, error)
	SaveBrandKit(ctx context.Context, userID string, kit model.BrandKit) error
}

type Store interface {
	Users
	Data
}
