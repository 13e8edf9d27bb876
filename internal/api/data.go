package api

import (
	"net/http"

	"thumbexpert/internal/model"
)

type brandKitBody struct {
	Kit *model.BrandKit `json:"kit"`
}

type historyBody struct {
	History []model.HistoryItem `json:"history"`
}

type favoritesBody struct {
	Favorites []string `json:"favorites"`
}

func (s *server) handleGetBrandKit(w http.ResponseWriter, r *http.Request) {
	kit, err := s.data.BrandKit(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, brandKitBody{Kit: kit})
}

func (s *server) handleSaveBrandKit(w http.ResponseWriter, r *http.Request) {
	var body brandKitBody
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Kit == nil {
		body.Kit = &model.BrandKit{}
	}
	kit, err := s.data.SaveBrandKit(r.Context(), userID(r), *body.Kit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, brandKitBody{Kit: &kit})
}

func (s *server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.data.History(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyBody{History: history})
}

func (s *server) handleSaveHistory(w http.ResponseWriter, r *http.Request) {
	var body historyBody
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	history, err := s.data.SaveHistory(r.Context(), userID(r), body.History)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyBody{History: history})
}

func (s *server) handleGetFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.data.Favorites(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, favoritesBody{Favorites: favorites})
}

func (s *server) handleSaveFavorites(w http.ResponseWriter, r *http.Request) {
	var body favoritesBody
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	favorites, err := s.data.SaveFavorites(r.Context(), userID(r), body.Favorites)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, favoritesBody{Favorites: favorites})
}
