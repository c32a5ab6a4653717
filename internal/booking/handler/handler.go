// Package handler exposes the booking coordinator over HTTP.
package handler

import (
	"net/http"

	"leadfunnel_backend/internal/booking/service"
	"leadfunnel_backend/internal/booking/transport"
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

// RegisterLeadRoutes mounts the booking action on the lead resource.
func (h *Handler) RegisterLeadRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/booking", h.Book)
}

// RegisterSlotRoutes mounts the public slot candidate listing.
func (h *Handler) RegisterSlotRoutes(rg *gin.RouterGroup) {
	rg.GET("/slots", h.Slots)
}

func (h *Handler) Book(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.BookSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	err = h.svc.Book(c.Request.Context(), id, service.BookRequest{
		Slot:     req.Slot,
		Timezone: req.Timezone,
		Custom:   req.Custom,
		Email:    req.Email,
		Name:     req.Name,
		Company:  req.Company,
		Phone:    req.Phone,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "booked"})
}

func (h *Handler) Slots(c *gin.Context) {
	timezone := c.Query("tz")
	if timezone == "" {
		timezone = "UTC"
	}

	httpkit.OK(c, h.svc.Slots(timezone))
}
