package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yalublugerbl4/shop/internal/jobs"
	"github.com/yalublugerbl4/shop/internal/store"
)

type importProductsRequest struct {
	URLs     []string `json:"urls"`
	Category string   `json:"category"`
	Season   string   `json:"season"`
}

type importCategoryRequest struct {
	CategoryURL string `json:"category_url"`
	Category    string `json:"category"`
	Season      string `json:"season"`
	MaxPages    int    `json:"max_pages"`
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ListFilter{
		Category: q.Get("category"),
		Season:   q.Get("season"),
		Query:    q.Get("q"),
		Size:     q.Get("size"),
		Brand:    q.Get("brand"),
	}
	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			filter.Limit = limit
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil {
			filter.Offset = offset
		}
	}

	products, err := s.products.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list products", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list products")
		return
	}
	if products == nil {
		products = []*store.Product{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"count":    len(products),
	})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := s.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		s.logger.Error("failed to get product", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get product")
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleDeactivateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.products.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		s.logger.Error("failed to deactivate product", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to deactivate product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportProducts(w http.ResponseWriter, r *http.Request) {
	var req importProductsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if len(req.URLs) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "urls is required")
		return
	}
	for _, url := range req.URLs {
		if !strings.HasPrefix(url, "http") {
			respondError(w, http.StatusBadRequest, "invalid_request", "urls must be absolute")
			return
		}
	}

	job := s.manager.Create(jobs.TypeProductImport)
	if err := s.ingestor.Enqueue(job, req.URLs, req.Category, req.Season); err != nil {
		s.logger.Error("failed to enqueue import", "job_id", job.ID, "error", err)
		s.manager.Fail(job.ID, "failed to enqueue")
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to enqueue import")
		return
	}

	respondJSON(w, http.StatusAccepted, s.manager.Get(job.ID))
}

func (s *Server) handleImportCategory(w http.ResponseWriter, r *http.Request) {
	var req importCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !strings.HasPrefix(req.CategoryURL, "http") {
		respondError(w, http.StatusBadRequest, "invalid_request", "category_url must be absolute")
		return
	}
	maxPages := req.MaxPages
	if maxPages <= 0 || maxPages > s.maxPages {
		maxPages = s.maxPages
	}

	job := s.manager.Create(jobs.TypeCategoryImport)

	// Discovery paginates behind the politeness limiter and can take
	// minutes; the request only registers the job.
	go func() {
		ctx := context.Background()
		links, err := s.crawler.CategoryLinks(ctx, req.CategoryURL, maxPages)
		if err != nil {
			s.logger.Error("category discovery failed", "job_id", job.ID, "error", err)
			s.manager.Fail(job.ID, "category discovery failed")
			return
		}
		if len(links) == 0 {
			s.manager.SetStatus(job.ID, jobs.StatusCompleted)
			return
		}
		if err := s.ingestor.Enqueue(job, links, req.Category, req.Season); err != nil {
			s.logger.Error("failed to enqueue discovered links", "job_id", job.ID, "error", err)
			s.manager.Fail(job.ID, "failed to enqueue")
		}
	}()

	respondJSON(w, http.StatusAccepted, s.manager.Get(job.ID))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job := s.manager.Get(id)
	if job == nil {
		respondError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	respondJSON(w, http.StatusOK, job)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
