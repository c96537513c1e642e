package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/tripatlas/curator/internal/apperr"
	"github.com/tripatlas/curator/internal/locationkey"
	"github.com/tripatlas/curator/internal/model"
	"github.com/tripatlas/curator/internal/ratelimit"
)

// buildRouter assembles the admin API. The limiter may be nil to disable
// rate limiting (tests).
func buildRouter(svc *services, limiter *ratelimit.KeyedLimiter) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	if limiter != nil {
		r.Use(limiter.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/taxonomy/pending", handlePendingList(svc))
		api.Get("/taxonomy/tree", handleTaxonomyTree(svc))
		api.Post("/taxonomy/{key}/approve", handleApprove(svc))
		api.Delete("/taxonomy/{key}", handleReject(svc))

		api.Get("/corrections", handleCorrectionList(svc))
		api.Post("/corrections/preview", handleCorrectionPreview(svc))
		api.Post("/corrections", handleCorrectionAdd(svc))
		api.Delete("/corrections/{id}", handleCorrectionRemove(svc))

		api.Post("/locations", handleLocationCreate(svc))
	})

	return r
}

func handlePendingList(svc *services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.taxonomy.PendingEntries(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if entries == nil {
			entries = []model.PendingEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	}
}

func handleTaxonomyTree(svc *services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tree, err := svc.taxonomy.Tree(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"countries": tree})
	}
}

// keyParam extracts the {key} route segment. Pipes arrive URL-encoded
// (peru%7Clima) and chi hands back the raw segment.
func keyParam(r *http.Request) string {
	raw := chi.URLParam(r, "key")
	if key, err := url.PathUnescape(raw); err == nil {
		return key
	}
	return raw
}

func handleApprove(svc *services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := svc.taxonomy.Approve(r.Context(), keyParam(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entry": entry})
	}
}

func handleReject(svc *services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := keyParam(r)
		if err := svc.taxonomy.Reject(r.Context(), key); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "taxonomy entry rejected"})
	}
}

func handleCorrectionList(svc *services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := svc.correction.Rules(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if rules == nil {
			rules = []model.CorrectionRule{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"corrections": rules})
	}
}

// correctionRequest is the payload for preview and create.
type correctionRequest struct {
	IncorrectValue string         `json:"incorrect_value"`
	CorrectValue   string         `json:"correct_value"`
	PartType       model.PartType `json:"part_type"`
}

func handleCorrectionPreview(svc *services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req correctionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperr.BadRequestf("invalid request body"))
			return
		}
		preview, err := svc.correction.Preview(r.Context(), req.IncorrectValue, req.CorrectValue, req.PartType)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"preview": preview})
	}
}

func handleCorrectionAdd(svc *services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req correctionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperr.BadRequestf("invalid request body"))
			return
		}
		result, err := svc.correction.AddRule(r.Context(), req.IncorrectValue, req.CorrectValue, req.PartType)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func handleCorrectionRemove(svc *services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.correction.RemoveRule(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "correction rule removed"})
	}
}

// locationRequest is the payload of the location ingest endpoint.
type locationRequest struct {
	Name        string         `json:"name"`
	Category    model.Category `json:"category"`
	LocationKey string         `json:"location_key"`
}

func handleLocationCreate(svc *services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req locationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperr.BadRequestf("invalid request body"))
			return
		}
		loc, err := ingestLocation(r.Context(), svc, req.Name, req.Category, req.LocationKey)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"location": loc})
	}
}

// ingestLocation mirrors the sibling location-creation flow: corrections
// are applied to the raw key first, then its taxonomy entry is ensured,
// then the location row is written with the corrected key.
func ingestLocation(ctx context.Context, svc *services, name string, category model.Category, rawKey string) (*model.Location, error) {
	if name == "" {
		return nil, apperr.BadRequestf("location name is required")
	}
	if !category.Valid() {
		return nil, apperr.BadRequestf("unknown category %q", category)
	}
	if _, ok := locationkey.Parse(rawKey); !ok {
		return nil, apperr.BadRequestf("malformed location key %q", rawKey)
	}

	key, err := svc.correction.Apply(ctx, rawKey)
	if err != nil {
		return nil, err
	}
	if _, err := svc.taxonomy.Ensure(ctx, key); err != nil {
		return nil, err
	}
	return svc.store.InsertLocation(ctx, name, category, key)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, apperr.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		zap.L().Error("admin api: internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
