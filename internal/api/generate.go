package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"thumbexpert/internal/apperror"
	"thumbexpert/internal/bulkcsv"
	"thumbexpert/internal/model"
	"thumbexpert/internal/service"
)

const csvType = "text/csv"

type imagesResponse struct {
	Images []string `json:"images"`
}

type titlesRequest struct {
	Topic string `json:"topic"`
}

type bulkBody struct {
	Items   []model.BulkItem   `json:"items,omitempty"`
	Results []model.BulkResult `json:"results,omitempty"`
}

// handleVariants accepts either a JSON body or a multipart form with a "form"
// JSON field and up to four "images" files.
func (s *server) handleVariants(w http.ResponseWriter, r *http.Request) {
	var req service.VariantsRequest
	if isMultipart(r) {
		images, err := s.parseUploads(w, r, "images")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if raw := r.FormValue("form"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Form); err != nil {
				s.writeError(w, r, apperror.ValidationFailed("form", "invalid form field"))
				return
			}
		}
		req.Images = images
	} else if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	images, err := s.generation.Variants(r.Context(), userID(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imagesResponse{Images: images})
}

func (s *server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req service.EditRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.generation.Edit(r.Context(), userID(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleCatchphrases(w http.ResponseWriter, r *http.Request) {
	var req service.CatchphrasesRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	phrases, err := s.generation.Catchphrases(r.Context(), userID(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"catchphrases": phrases})
}

func (s *server) handleTitles(w http.ResponseWriter, r *http.Request) {
	var req titlesRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		s.writeError(w, r, apperror.ValidationFailed("topic", "Please enter a topic."))
		return
	}
	titles, err := s.generation.Titles(r.Context(), userID(r), strings.TrimSpace(req.Topic))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"titles": titles})
}

func (s *server) handleCTR(w http.ResponseWriter, r *http.Request) {
	var req service.CTRRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	score, err := s.generation.EstimateCTR(r.Context(), userID(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// handleBulk takes a CSV sheet (text/csv) or JSON {items}. A CSV request gets a CSV reply.
func (s *server) handleBulk(w http.ResponseWriter, r *http.Request) {
	asCSV := strings.HasPrefix(r.Header.Get("Content-Type"), csvType)

	var items []model.BulkItem
	if asCSV {
		parsed, err := bulkcsv.Parse(http.MaxBytesReader(w, r.Body, s.maxBody))
		if err != nil {
			s.writeError(w, r, csvError(err))
			return
		}
		items = parsed
	} else {
		var body bulkBody
		if err := s.decodeJSON(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		items = body.Items
	}

	results, err := s.generation.Bulk(r.Context(), userID(r), items)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if !asCSV {
		writeJSON(w, http.StatusOK, bulkBody{Results: results})
		return
	}
	w.Header().Set("Content-Type", csvType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="thumbnail_suggestions.csv"`)
	if err := bulkcsv.Write(w, results); err != nil {
		s.logger.Error("writing bulk csv", "err", err)
	}
}

func csvError(err error) error {
	switch {
	case errors.Is(err, bulkcsv.ErrNoData):
		return apperror.ValidationFailed("file", "CSV file must contain a header and at least one row of data.")
	case errors.Is(err, bulkcsv.ErrNoValidRows):
		return apperror.ValidationFailed("file", "No valid 'title,style' rows found in the CSV. Please check the file format.")
	default:
		return apperror.ValidationFailed("file", "Failed to read the file.")
	}
}
