package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/baechuer/cityevents/services/crop-service/internal/batch"
	"github.com/baechuer/cityevents/services/crop-service/internal/domain"
	"github.com/baechuer/cityevents/services/crop-service/internal/render"
	"github.com/baechuer/cityevents/services/crop-service/internal/schema"
)

// CropHandler handles render and cropping HTTP requests.
type CropHandler struct {
	plans    PlanResolver
	variants VariantSchema
	batch    BatchRunner
	log      zerolog.Logger
}

// NewCropHandler creates a new crop handler.
func NewCropHandler(plans PlanResolver, variants VariantSchema, batch BatchRunner, log zerolog.Logger) *CropHandler {
	return &CropHandler{
		plans:    plans,
		variants: variants,
		batch:    batch,
		log:      log,
	}
}

// renderQuery selects the variant to render.
type renderQuery struct {
	ReferenceID     int64  `json:"id" validate:"required,min=1"`
	Variant         string `json:"variant" validate:"required,max=128,crop_segment"`
	FallbackSize    string `json:"fallbackImageSize" validate:"max=128,no_separator"`
	Absolute        bool   `json:"absolute"`
	UseCroppingFrom int64  `json:"useCroppingFrom" validate:"min=0"`
}

func (h *CropHandler) parseRenderQuery(r *http.Request) (*renderQuery, error) {
	q := r.URL.Query()
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid reference ID")
	}
	req := &renderQuery{
		ReferenceID:  id,
		Variant:      chi.URLParam(r, "variant"),
		FallbackSize: q.Get("fallbackImageSize"),
	}
	if req.Variant == "" {
		req.Variant = q.Get("variant")
	}
	if v := q.Get("absolute"); v != "" {
		if req.Absolute, err = strconv.ParseBool(v); err != nil {
			return nil, errors.New("invalid absolute flag")
		}
	}
	if v := q.Get("useCroppingFrom"); v != "" {
		if req.UseCroppingFrom, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, errors.New("invalid useCroppingFrom")
		}
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return req, nil
}

func (q *renderQuery) request() render.Request {
	return render.Request{
		ReferenceID:     q.ReferenceID,
		Variant:         q.Variant,
		FallbackSize:    q.FallbackSize,
		Absolute:        q.Absolute,
		UseCroppingFrom: q.UseCroppingFrom,
	}
}

// GetPlan returns the render plan of a variant as JSON.
func (h *CropHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRenderQuery(r)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.plans.Resolve(r.Context(), req.request())
	if err != nil {
		h.resolveError(w, req.ReferenceID, err)
		return
	}
	if res.Plan == nil {
		h.errorResponse(w, http.StatusNotFound, "variant not cropped")
		return
	}

	h.jsonResponse(w, http.StatusOK, render.NewPlanView(res.Plan))
}

// GetPicture renders the <picture> markup of a variant.
func (h *CropHandler) GetPicture(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRenderQuery(r)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.plans.Resolve(r.Context(), req.request())
	if err != nil {
		h.resolveError(w, req.ReferenceID, err)
		return
	}

	img := render.Image{Alt: res.Reference.Alternative, Title: res.Reference.Title}
	if class := r.URL.Query().Get("class"); class != "" {
		img.Attrs = append(img.Attrs, render.Attr{Name: "class", Value: class})
	}
	if res.Plan == nil {
		// uncropped fallback without size or ratio handling
		if img.Src, err = h.plans.OriginalURI(r.Context(), res.Reference, req.Absolute); err != nil {
			h.resolveError(w, req.ReferenceID, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(render.Picture(res.Plan, img)))
}

func (h *CropHandler) resolveError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, domain.ErrReferenceNotFound) {
		h.errorResponse(w, http.StatusNotFound, "file reference not found")
		return
	}
	h.log.Error().Err(err).Int64("reference_id", id).Msg("failed to resolve render plan")
	h.errorResponse(w, http.StatusInternalServerError, "internal error")
}

type cropVariantsQuery struct {
	Table string `json:"table" validate:"required,max=64"`
	Type  string `json:"type" validate:"max=64"`
	Field string `json:"field" validate:"required,max=64"`
}

// GetCropVariants returns the crop variants registered for a field.
func (h *CropHandler) GetCropVariants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := cropVariantsQuery{Table: q.Get("table"), Type: q.Get("type"), Field: q.Get("field")}
	if req.Type == "" {
		req.Type = schema.TypeAll
	}
	if err := validateRequest(req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	variants, ok := h.variants.CropVariants(req.Table, req.Type, req.Field)
	if !ok {
		h.errorResponse(w, http.StatusNotFound, "no crop variants for field")
		return
	}
	h.jsonResponse(w, http.StatusOK, variants)
}

// RunBatchResponse is the result of a create-needed-croppings run.
type RunBatchResponse struct {
	Message string        `json:"message"`
	Summary batch.Summary `json:"summary"`
}

// RunBatch creates all missing croppings.
func (h *CropHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	summary, err := h.batch.Run(r.Context(), "http")
	if err != nil {
		if errors.Is(err, batch.ErrRunInProgress) {
			h.errorResponse(w, http.StatusConflict, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("create needed croppings failed")
		h.errorResponse(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.jsonResponse(w, http.StatusOK, RunBatchResponse{Message: summary.Message(), Summary: summary})
}

// ProcessReferenceRequest names the image field a reference belongs to.
type ProcessReferenceRequest struct {
	Path string `json:"path" validate:"required,max=512"`
}

// ProcessReference creates the missing croppings of one file reference.
func (h *CropHandler) ProcessReference(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.errorResponse(w, http.StatusBadRequest, "invalid reference ID")
		return
	}
	var req ProcessReferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateRequest(req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.batch.ProcessReference(r.Context(), id, strings.Split(strings.Trim(req.Path, "/"), "/"))
	switch {
	case err == nil:
		h.jsonResponse(w, http.StatusOK, map[string]int{"croppings": created})
	case errors.Is(err, domain.ErrReferenceNotFound):
		h.errorResponse(w, http.StatusNotFound, "file reference not found")
	case errors.Is(err, domain.ErrUnknownPath):
		h.errorResponse(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Int64("reference_id", id).Msg("failed to create croppings")
		h.errorResponse(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *CropHandler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *CropHandler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}
