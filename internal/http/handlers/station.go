package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/revalidafacil/stations-backend/internal/http/response"
	"github.com/revalidafacil/stations-backend/internal/services"
)

type StationHandler struct {
	svc *services.StationService
}

func NewStationHandler(svc *services.StationService) *StationHandler {
	return &StationHandler{svc: svc}
}

// Generate runs the full phase chain for a single tema.
func (h *StationHandler) Generate(c *gin.Context) {
	var req services.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	res, err := h.svc.GenerateStation(c.Request.Context(), req)
	if err != nil {
		response.RespondError(c, http.StatusBadGateway, "generation_failed", err)
		return
	}
	response.RespondCreated(c, res)
}

type batchBody struct {
	Estacoes []services.GenerateRequest `json:"estacoes"`
}

// GenerateBatch runs up to the configured number of generations concurrently.
// Partial failures are reported per item, never as a request error.
func (h *StationHandler) GenerateBatch(c *gin.Context) {
	var body batchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(body.Estacoes) == 0 {
		response.RespondError(c, http.StatusBadRequest, "empty_batch", errors.New("estacoes must not be empty"))
		return
	}
	results := h.svc.GenerateBatch(c.Request.Context(), body.Estacoes)
	response.RespondOK(c, gin.H{"results": results})
}

type auditBody struct {
	Feedback string `json:"feedback"`
}

// Audit sends the stored station through the evaluator prompt.
func (h *StationHandler) Audit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_station_id", err)
		return
	}
	// Feedback is optional; an empty body is fine.
	var body auditBody
	_ = c.ShouldBindJSON(&body)
	analysis, err := h.svc.AuditStation(c.Request.Context(), id, body.Feedback)
	if err != nil {
		if errors.Is(err, services.ErrStationNotFound) {
			response.RespondError(c, http.StatusNotFound, "station_not_found", err)
			return
		}
		response.RespondError(c, http.StatusBadGateway, "audit_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"id": id, "analysis": analysis})
}

// List returns the newest stored stations, filtered by ?especialidade= and
// capped by ?limit=.
func (h *StationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	stations, err := h.svc.ListStations(c.Request.Context(), c.Query("especialidade"), limit)
	if err != nil {
		if errors.Is(err, services.ErrNoDatabase) {
			response.RespondError(c, http.StatusServiceUnavailable, "database_unavailable", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "station_list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"stations": stations})
}

func (h *StationHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_station_id", err)
		return
	}
	doc, err := h.svc.GetStation(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrStationNotFound) {
			response.RespondError(c, http.StatusNotFound, "station_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "station_load_failed", err)
		return
	}
	response.RespondOK(c, doc)
}
