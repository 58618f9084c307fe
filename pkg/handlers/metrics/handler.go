package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/de-tools/awsbill/pkg/models/api"
	"github.com/de-tools/awsbill/pkg/services/config"
	"github.com/de-tools/awsbill/pkg/services/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Converter is what the handler needs from the conversion service.
type Converter interface {
	Profiles(ctx context.Context) ([]string, error)
	Convert(ctx context.Context, profile string) (api.ConversionResult, error)
}

type Handler struct {
	svc Converter
}

func NewHandler(svc Converter) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	profiles, err := h.svc.Profiles(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list profiles")
		http.Error(w, "failed to list profiles", http.StatusInternalServerError)
		return
	}

	response := make([]api.Profile, 0, len(profiles))
	for _, p := range profiles {
		response = append(response, api.Profile{Name: p})
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error().Err(err).Msg("failed to encode profiles")
	}
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	profile := chi.URLParam(r, "profile")

	result, err := h.svc.Convert(ctx, profile)
	if err != nil {
		logger.Error().Err(err).Str("profile", profile).Msg("conversion failed")
		switch {
		case errors.Is(err, config.ErrProfileNotFound):
			http.Error(w, "unknown profile", http.StatusNotFound)
		case errors.Is(err, pipeline.ErrEmptyReport):
			http.Error(w, "billing report contains no usable rows", http.StatusUnprocessableEntity)
		default:
			http.Error(w, "conversion failed", http.StatusInternalServerError)
		}
		return
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.Error().Err(err).Str("profile", profile).Msg("failed to encode conversion result")
	}
}
