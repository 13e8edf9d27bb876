// Package storetest holds behaviour every store.Store implementation must share.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thumbexpert/internal/model"
	"thumbexpert/internal/store"
)

// Run executes the contract suite. newStore must return an empty store per call.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("create and look up user", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u, err := s.CreateUser(ctx, model.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "h"})
		require.NoError(t, err)
		assert.NotEmpty(t, u.ID)
		assert.False(t, u.CreatedAt.IsZero())
		assert.Equal(t, model.PlanFree, u.Plan)

		byID, err := s.UserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ada", byID.Name)
		assert.Equal(t, "h", byID.PasswordHash)

		byEmail, err := s.UserByEmail(ctx, "ADA@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.CreateUser(ctx, model.User{Name: "A", Email: "dup@example.com"})
		require.NoError(t, err)
		_, err = s.CreateUser(ctx, model.User{Name: "B", Email: "Dup@Example.com"})
		assert.ErrorIs(t, err, store.ErrEmailTaken)
	})

	t.Run("unknown user", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.UserByID(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.UserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.UpdateUser(ctx, model.User{ID: "missing"}), store.ErrNotFound)
		assert.ErrorIs(t, s.SaveFavorites(ctx, "missing", []string{"x"}), store.ErrNotFound)
		_, err = s.History(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("update plan", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u, err := s.CreateUser(ctx, model.User{Name: "C", Email: "c@example.com"})
		require.NoError(t, err)
		u.Plan = model.PlanPremium
		require.NoError(t, s.UpdateUser(ctx, u))

		got, err := s.UserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, got.Premium())
	})

	t.Run("collections start empty", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustUser(t, s)

		history, err := s.History(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, history)

		favs, err := s.Favorites(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, favs)

		kit, err := s.BrandKit(ctx, u.ID)
		require.NoError(t, err)
		assert.Nil(t, kit)
	})

	t.Run("saves replace wholesale", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustUser(t, s)

		require.NoError(t, s.SaveFavorites(ctx, u.ID, []string{"a", "b"}))
		require.NoError(t, s.SaveFavorites(ctx, u.ID, []string{"c"}))
		favs, err := s.Favorites(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, favs)

		kit := model.BrandKit{BrandName: "Acme", PrimaryColor: "#112233", SecondaryColor: "#445566"}
		require.NoError(t, s.SaveBrandKit(ctx, u.ID, kit))
		got, err := s.BrandKit(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, kit, *got)
	})

	t.Run("history is capped and ordered", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustUser(t, s)

		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		var items []model.HistoryItem
		for i := range 25 {
			items = append(items, model.HistoryItem{
				Prompt:    fmt.Sprintf("p%d", i),
				ImageURLs: []string{fmt.Sprintf("u%d", i)},
				Timestamp: base.Add(time.Duration(i) * time.Minute),
			})
		}
		require.NoError(t, s.SaveHistory(ctx, u.ID, items))

		got, err := s.History(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, got, model.MaxHistory)
		assert.Equal(t, "p0", got[0].Prompt)
		assert.Equal(t, []string{"u0"}, got[0].ImageURLs)
		assert.True(t, got[0].Timestamp.Equal(base))
	})

	t.Run("returned values are copies", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustUser(t, s)

		require.NoError(t, s.SaveFavorites(ctx, u.ID, []string{"a"}))
		favs, err := s.Favorites(ctx, u.ID)
		require.NoError(t, err)
		favs[0] = "mutated"

		again, err := s.Favorites(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, again)
	})
}

func mustUser(t *testing.T, s store.Store) model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), model.User{Name: "User", Email: t.Name() + "@example.com"})
	require.NoError(t, err)
	return u
}
