package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"samstore/ingest/internal/har"
	"samstore/ingest/internal/repository"
	"samstore/ingest/internal/service"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// maxCaptureBytes bounds uploaded capture documents.
const maxCaptureBytes = 64 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxCaptureBytes))
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Could not read capture body")
		return
	}

	result, err := s.service.Ingest(r.Context(), data, service.Options{
		InferCategoryContext: s.inferCategoryContext,
	})
	if err != nil {
		var formatErr *har.FormatError
		if errors.As(err, &formatErr) {
			s.respondWithError(w, http.StatusBadRequest, formatErr.Error())
			return
		}
		log.Errorf("Ingest failed: %v", err)
		if service.IsPersistenceError(err) {
			s.respondWithError(w, http.StatusInternalServerError, "Catalog write failed, transaction rolled back")
			return
		}
		s.respondWithError(w, http.StatusInternalServerError, "Ingest failed")
		return
	}

	s.respondWithJSON(w, http.StatusOK, result)
}

func (s *Server) handleLastIngest(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.respondWithError(w, http.StatusNotFound, "No ingest summary available")
		return
	}
	summary, err := s.cache.LastIngest(r.Context())
	if err != nil {
		log.Errorf("Failed to load ingest summary: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not load ingest summary")
		return
	}
	if summary == nil {
		s.respondWithError(w, http.StatusNotFound, "No ingest summary available")
		return
	}
	s.respondWithJSON(w, http.StatusOK, summary)
}

func (s *Server) handleParseProducts(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxCaptureBytes))
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Could not read capture body")
		return
	}

	products, err := s.service.ParseProducts(data, service.Options{
		InferCategoryContext: s.inferCategoryContext,
	})
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondWithJSON(w, http.StatusOK, products)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.ProductFilter{
		Search:      q.Get("search"),
		SortBy:      q.Get("sortBy"),
		SortOrder:   q.Get("sortOrder"),
		CategoryID:  q.Get("categoryId"),
		IsImport:    parseBool(q.Get("isImport")),
		IsAvailable: parseBool(q.Get("isAvailable")),
		MinPrice:    parseFloat(q.Get("minPrice")),
		MaxPrice:    parseFloat(q.Get("maxPrice")),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if pageSize, err := strconv.Atoi(q.Get("pageSize")); err == nil {
		filter.PageSize = pageSize
	}

	page, err := s.products.List(r.Context(), filter)
	if err != nil {
		log.Errorf("Failed to list products: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not list products")
		return
	}

	s.respondWithJSON(w, http.StatusOK, page)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.categories.ListAll(r.Context())
	if err != nil {
		log.Errorf("Failed to list categories: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not list categories")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{"success": true, "data": categories})
}

// handleCategoryTree serves the cached tree payload when warm and
// rebuilds it otherwise.
func (s *Server) handleCategoryTree(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		if payload, err := s.cache.Tree(r.Context()); err == nil && payload != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(payload)
			return
		}
	}

	tree, err := s.categories.Tree(r.Context())
	if err != nil {
		log.Errorf("Failed to build category tree: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not build category tree")
		return
	}

	payload, err := json.Marshal(map[string]any{"success": true, "data": tree})
	if err != nil {
		s.respondWithError(w, http.StatusInternalServerError, "Could not encode category tree")
		return
	}
	if s.cache != nil {
		if err := s.cache.SetTree(r.Context(), payload); err != nil {
			log.Warnf("Failed to cache category tree: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func (s *Server) handleCategoriesByLevel(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil || level < 1 || level > 3 {
		s.respondWithError(w, http.StatusBadRequest, "Level must be an integer between 1 and 3")
		return
	}

	categories, err := s.categories.ListByLevel(r.Context(), level)
	if err != nil {
		log.Errorf("Failed to list level %d categories: %v", level, err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not list categories")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{"success": true, "data": categories})
}

func (s *Server) handleCategoryChildren(w http.ResponseWriter, r *http.Request) {
	parentID := chi.URLParam(r, "parentID")
	if parentID == "" {
		s.respondWithError(w, http.StatusBadRequest, "Parent category id is required")
		return
	}

	categories, err := s.categories.ListChildren(r.Context(), parentID)
	if err != nil {
		log.Errorf("Failed to list children of category %s: %v", parentID, err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not list categories")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{"success": true, "data": categories})
}

func (s *Server) handleHomeData(w http.ResponseWriter, r *http.Request) {
	data, err := s.home.Data(r.Context())
	if err != nil {
		log.Errorf("Failed to load home data: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not load home data")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("Failed to encode response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func (s *Server) respondWithError(w http.ResponseWriter, status int, message string) {
	s.respondWithJSON(w, status, map[string]any{"success": false, "error": message})
}

func parseBool(v string) *bool {
	if v == "" {
		return nil
	}
	b := v == "true"
	return &b
}

func parseFloat(v string) *float64 {
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}
