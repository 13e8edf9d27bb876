package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"thumbexpert/internal/apperror"
	"thumbexpert/internal/model"
	"thumbexpert/internal/store"
)

type DataService struct {
	data       store.Data
	validator  *Validator
	maxHistory int
}

func NewDataService(data store.Data, v *Validator) *DataService {
	if v == nil {
		v = NewValidator()
	}
	return &DataService{data: data, validator: v, maxHistory: model.MaxHistory}
}

func (s *DataService) History(ctx context.Context, userID string) ([]model.HistoryItem, error) {
	items, err := s.data.History(ctx, userID)
	if err != nil {
		return nil, wrapData("history", userID, err)
	}
	if items == nil {
		items = []model.HistoryItem{}
	}
	return items, nil
}

// SaveHistory replaces the user's history, keeping only the newest entries.
func (s *DataService) SaveHistory(ctx context.Context, userID string, items []model.HistoryItem) ([]model.HistoryItem, error) {
	for i, item := range items {
		if strings.TrimSpace(item.Prompt) == "" && len(item.ImageURLs) == 0 {
			return nil, apperror.ValidationFailed("history", fmt.Sprintf("history entry %d is empty", i))
		}
	}
	items = model.CapHistory(model.CloneHistory(items), s.maxHistory)
	if items == nil {
		items = []model.HistoryItem{}
	}
	if err := s.data.SaveHistory(ctx, userID, items); err != nil {
		return nil, wrapData("history", userID, err)
	}
	return items, nil
}

func (s *DataService) Favorites(ctx context.Context, userID string) ([]string, error) {
	urls, err := s.data.Favorites(ctx, userID)
	if err != nil {
		return nil, wrapData("favorites", userID, err)
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}

func (s *DataService) SaveFavorites(ctx context.Context, userID string, urls []string) ([]string, error) {
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			return nil, apperror.ValidationFailed("favorites", "favorites must not contain empty entries")
		}
	}
	if urls == nil {
		urls = []string{}
	}
	if err := s.data.SaveFavorites(ctx, userID, urls); err != nil {
		return nil, wrapData("favorites", userID, err)
	}
	return urls, nil
}

// BrandKit returns nil when the user has not saved one.
func (s *DataService) BrandKit(ctx context.Context, userID string) (*model.BrandKit, error) {
	kit, err := s.data.BrandKit(ctx, userID)
	if err != nil {
		return nil, wrapData("brand kit", userID, err)
	}
	return kit, nil
}

func (s *DataService) SaveBrandKit(ctx context.Context, userID string, kit model.BrandKit) (model.BrandKit, error) {
	kit.BrandName = strings.TrimSpace(kit.BrandName)
	kit.Slogan = strings.TrimSpace(kit.Slogan)
	kit.FontPreference = strings.TrimSpace(kit.FontPreference)
	if err := s.validator.Struct(kit); err != nil {
		return model.BrandKit{}, err
	}
	if err := s.data.SaveBrandKit(ctx, userID, kit); err != nil {
		return model.BrandKit{}, wrapData("brand kit", userID, err)
	}
	return kit, nil
}

func wrapData(what, userID string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperror.NotFound("user", userID)
	}
	return fmt.Errorf("service/data: %s for %s: %w", what, userID, err)
}
