// Package handler exposes the public form intake endpoint.
package handler

import (
	"net/http"

	"prospect_intake_backend/internal/leads/service"
	"prospect_intake_backend/internal/leads/transport"
	"prospect_intake_backend/platform/httpkit"
	"prospect_intake_backend/platform/phone"
	"prospect_intake_backend/platform/validator"

	"github.com/gin-gonic/gin"
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

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/submit-form", h.SubmitForm)
}

// SubmitForm receives one landing-page submission. Responses:
//
//	201 accepted, follow-up queued
//	200 duplicate, nothing queued
//	422 whatsapp number unusable
func (h *Handler) SubmitForm(c *gin.Context) {
	var req transport.SubmitFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	// E.164 first so bare local numbers pick up their country code, then
	// down to the digits-only form the gateway expects.
	digits, err := phone.Digits(phone.NormalizeE164(req.Whatsapp))
	if err != nil {
		httpkit.Error(c, http.StatusUnprocessableEntity, "whatsapp number is not usable", nil)
		return
	}

	result, err := h.svc.Intake(c.Request.Context(), digits, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	if result.Duplicate {
		httpkit.JSON(c, http.StatusOK, transport.SubmitFormResponse{
			Status:    "duplicate",
			RequestID: result.RequestID.String(),
			Message:   "this whatsapp number is already registered",
		})
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.SubmitFormResponse{
		Status:    "accepted",
		RequestID: result.RequestID.String(),
	})
}
