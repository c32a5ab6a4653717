// Package handler exposes the leads service over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"leadfunnel_backend/internal/leads/domain"
	"leadfunnel_backend/internal/leads/service"
	"leadfunnel_backend/internal/leads/transport"
	"leadfunnel_backend/platform/httpkit"
	"leadfunnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterPublicRoutes mounts the visitor-facing lead routes. These take
// optional auth: a signed-in visitor becomes the lead's owner.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/turns", h.AppendTurn)
	rg.POST("/:id/assistant", h.RequestAssistant)
	rg.PUT("/:id/intent", h.SaveIntent)
	rg.POST("/:id/lost", h.MarkLost)
}

// RegisterOwnerRoutes mounts the authenticated "my leads" routes.
func (h *Handler) RegisterOwnerRoutes(rg *gin.RouterGroup) {
	rg.GET("/my/leads", h.ListMine)
}

// RegisterAdminRoutes mounts the funnel-wide routes.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/leads", h.ListAll)
	rg.GET("/stats", h.Stats)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	meta := service.ClientMeta{Source: req.Source}
	if ip := c.ClientIP(); ip != "" {
		meta.IPAddress = &ip
	}
	if ua := c.Request.UserAgent(); ua != "" {
		meta.UserAgent = &ua
	}

	lead, err := h.svc.SubmitVisitorText(c.Request.Context(), viewerID(c), req.Message, meta)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, lead)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	lead, err := h.svc.GetLead(c.Request.Context(), id, viewerID(c))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) AppendTurn(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.AppendTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	turn, err := h.svc.AppendTurn(c.Request.Context(), id, domain.Role(req.Role), req.Content)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, turn)
}

func (h *Handler) RequestAssistant(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.AssistantTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	err := h.svc.RequestAssistantTurn(c.Request.Context(), id, req.Message)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Accepted(c, transport.AcceptedResponse{Status: "accepted"})
}

func (h *Handler) SaveIntent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.SaveIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	err := h.svc.SaveIntent(c.Request.Context(), id, req.ToDomain())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "saved"})
}

func (h *Handler) MarkLost(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.MarkLostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	err := h.svc.MarkLost(c.Request.Context(), id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "lost"})
}

func (h *Handler) ListMine(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leads, err := h.svc.ListForOwner(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, leads)
}

func (h *Handler) ListAll(c *gin.Context) {
	var state *domain.State
	if raw := c.Query("state"); raw != "" {
		s := domain.State(raw)
		state = &s
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	leads, err := h.svc.ListAll(c.Request.Context(), viewerID(c), limit, state)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, leads)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context(), viewerID(c))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, stats)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

// viewerID returns the authenticated caller's id, or nil for anonymous.
func viewerID(c *gin.Context) *uuid.UUID {
	identity := httpkit.GetIdentity(c)
	if !identity.IsAuthenticated() {
		return nil
	}
	id := identity.UserID()
	return &id
}
