package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	appservices "github.com/Orelexa/gardrob/internal/application/services"
	"github.com/Orelexa/gardrob/internal/application/usecases"
	"github.com/Orelexa/gardrob/internal/domain/entities"
)

const userHeader = "X-User-ID"

// Handler serves the wardrobe JSON API.
type Handler struct {
	session  *usecases.SessionUseCase
	outfits  *usecases.OutfitUseCase
	wardrobe *usecases.WardrobeUseCase
	models   *usecases.ModelUseCase
	prefetch *usecases.PrefetchUseCase
	params   *appservices.ParameterService
	health   Pinger

	transformTimeout time.Duration
	logger           *slog.Logger
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HandlerConfig struct {
	Session  *usecases.SessionUseCase
	Outfits  *usecases.OutfitUseCase
	Wardrobe *usecases.WardrobeUseCase
	Models   *usecases.ModelUseCase
	Prefetch *usecases.PrefetchUseCase
	Params   *appservices.ParameterService
	// Health is checked by /healthz when set.
	Health   Pinger

	// TransformTimeout bounds each image generation request. Zero means no
	// limit beyond the client's own.
	TransformTimeout time.Duration
	Logger           *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Params == nil {
		cfg.Params = appservices.NewParameterService(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		session:          cfg.Session,
		outfits:          cfg.Outfits,
		wardrobe:         cfg.Wardrobe,
		models:           cfg.Models,
		prefetch:         cfg.Prefetch,
		params:           cfg.Params,
		health:           cfg.Health,
		transformTimeout: cfg.TransformTimeout,
		logger:           cfg.Logger,
	}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.logger.Error("health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) HandlePoses(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"poses":   newPoseResponses(h.session.Poses()),
	})
}

// Models

func (h *Handler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.models.List(r.Context(), userID(r))
	if err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}

	out := make([]ModelResponse, len(models))
	for i, m := range models {
		out[i] = newModelResponse(m)
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "models": out})
}

func (h *Handler) HandleCreateModel(w http.ResponseWriter, r *http.Request) {
	input, err := h.params.ParseModelForm(w, r, userID(r))
	if err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}

	ctx, cancel := h.generationContext(r)
	defer cancel()

	model, err := h.models.Create(ctx, input)
	if err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, map[string]any{"success": true, "model": newModelResponse(model)})
}

func (h *Handler) HandleDeleteModel(w http.ResponseWriter, r *http.Request) {
	if err := h.models.Delete(r.Context(), userID(r), entities.ModelID(mux.Vars(r)["id"])); err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Wardrobe

func (h *Handler) HandleListWardrobe(w http.ResponseWriter, r *http.Request) {
	items, err := h.wardrobe.List(r.Context(), userID(r))
	if err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}

	out := make([]*GarmentResponse, len(items))
	for i, item := range items {
		out[i] = newItemResponse(item)
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "garments": out})
}

func (h *Handler) HandleCreateGarment(w http.ResponseWriter, r *http.Request) {
	input, err := h.params.ParseGarmentForm(w, r, userID(r))
	if err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}

	ctx, cancel := h.generationContext(r)
	defer cancel()

	item, err := h.wardrobe.Create(ctx, input)
	if err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, map[string]any{"success": true, "garment": newItemResponse(item)})
}

type updateGarmentRequest struct {
	Name     *string `json:"name"`
	Category *string `json:"category"`
}

func (h *Handler) HandleUpdateGarment(w http.ResponseWriter, r *http.Request) {
	var req updateGarmentRequest
	if err := h.params.DecodeJSON(w, r, &req); err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}

	item, err := h.wardrobe.Update(r.Context(), usecases.UpdateGarmentInput{
		UserID:   userID(r),
		ID:       entities.GarmentID(mux.Vars(r)["id"]),
		Name:     req.Name,
		Category: req.Category,
	})
	if err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "garment": newItemResponse(item)})
}

func (h *Handler) HandleDeleteGarment(w http.ResponseWriter, r *http.Request) {
	if err := h.wardrobe.Delete(r.Context(), userID(r), entities.GarmentID(mux.Vars(r)["id"])); err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandlePrefetch(w http.ResponseWriter, r *http.Request) {
	results, err := h.prefetch.Execute(r.Context(), userID(r))
	if err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}

	out := make([]PrefetchResponse, len(results))
	for i, res := range results {
		out[i] = PrefetchResponse{GarmentID: string(res.GarmentID), URL: res.URL, Loaded: res.Loaded}
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "images": out})
}

// Session

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	h.sendSession(w, http.StatusOK, h.session.View(userID(r)))
}

type selectModelRequest struct {
	ModelID string `json:"modelId"`
}

func (h *Handler) HandleSelectModel(w http.ResponseWriter, r *http.Request) {
	var req selectModelRequest
	if err := h.params.DecodeJSON(w, r, &req); err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}

	out, err := h.session.SelectModel(r.Context(), userID(r), entities.ModelID(req.ModelID))
	if err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}
	h.sendSession(w, http.StatusOK, out)
}

type applyGarmentRequest struct {
	GarmentID string `json:"garmentId"`
}

func (h *Handler) HandleApplyGarment(w http.ResponseWriter, r *http.Request) {
	var req applyGarmentRequest
	if err := h.params.DecodeJSON(w, r, &req); err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}

	ctx, cancel := h.generationContext(r)
	defer cancel()

	out, err := h.session.ApplyGarment(ctx, userID(r), entities.GarmentID(req.GarmentID))
	if err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}
	h.sendSession(w, http.StatusOK, out)
}

func (h *Handler) HandleRemoveLastGarment(w http.ResponseWriter, r *http.Request) {
	out, err := h.session.RemoveLastGarment(userID(r))
	if err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}
	h.sendSession(w, http.StatusOK, out)
}

type selectPoseRequest struct {
	Index int `json:"index"`
}

func (h *Handler) HandleSelectPose(w http.ResponseWriter, r *http.Request) {
	var req selectPoseRequest
	if err := h.params.DecodeJSON(w, r, &req); err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}

	ctx, cancel := h.generationContext(r)
	defer cancel()

	out, err := h.session.SelectPose(ctx, userID(r), req.Index)
	if err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}
	h.sendSession(w, http.StatusOK, out)
}

// Outfits

func (h *Handler) HandleListOutfits(w http.ResponseWriter, r *http.Request) {
	outfits, err := h.outfits.List(r.Context(), userID(r))
	if err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}

	out := make([]OutfitResponse, len(outfits))
	for i, o := range outfits {
		out[i] = newOutfitResponse(o)
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "outfits": out})
}

type saveOutfitRequest struct {
	Name string `json:"name"`
}

func (h *Handler) HandleSaveOutfit(w http.ResponseWriter, r *http.Request) {
	var req saveOutfitRequest
	if err := h.params.DecodeJSON(w, r, &req); err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}

	outfit, err := h.outfits.Save(r.Context(), userID(r), req.Name)
	if err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, map[string]any{"success": true, "outfit": newOutfitResponse(outfit)})
}

func (h *Handler) HandleLoadOutfit(w http.ResponseWriter, r *http.Request) {
	out, err := h.outfits.Load(r.Context(), userID(r), entities.SavedOutfitID(mux.Vars(r)["id"]))
	if err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}
	h.sendSession(w, http.StatusOK, out)
}

func (h *Handler) HandleDeleteOutfit(w http.ResponseWriter, r *http.Request) {
	if err := h.outfits.Delete(r.Context(), userID(r), entities.SavedOutfitID(mux.Vars(r)["id"])); err != nil {
		h.sendUseCaseError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// generationContext bounds calls that reach the image models.
func (h *Handler) generationContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.transformTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.transformTimeout)
}

func (h *Handler) sendSession(w http.ResponseWriter, status int, out *usecases.SessionOutput) {
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	sendJSON(w, status, map[string]any{"success": true, "session": newSessionResponse(out)})
}

func (h *Handler) sendUseCaseError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "user", userID(r), "status", status, "error", err)
	} else {
		h.logger.Info("request rejected", "method", r.Method, "path", r.URL.Path, "user", userID(r), "status", status, "error", err)
	}
	sendError(w, message, status)
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func sendError(w http.ResponseWriter, message string, status int) {
	sendJSON(w, status, map[string]any{"success": false, "error": message})
}
