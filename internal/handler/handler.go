// Package handler provides HTTP request handlers for the application.
package handler

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/popeskul/whatsapp-followup/internal/middleware"
	"github.com/popeskul/whatsapp-followup/internal/models"
	"github.com/popeskul/whatsapp-followup/internal/service"
)

const (
	errorCodeValidation      = "VALIDATION_ERROR"
	errorCodeNotFound        = "NOT_FOUND"
	errorCodeDeliveryFailed  = "DELIVERY_FAILED"
	errorMessageInvalidBody  = "Request body is not valid JSON"
	errorMessageInvalidID    = "Identifier must be a number"
	errorMessageInternal     = "An internal error occurred"
	errorMessageNotFound     = "Resource not found"
	errorMessageMissingField = "phone_number and name are required"
)

type Handler struct {
	service *service.Service
	logger  *zap.Logger
}

// NewHandler creates a new handler instance.
func NewHandler(service *service.Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// StartFollowUp handles POST /api/follow-ups.
func (h *Handler) StartFollowUp(w http.ResponseWriter, r *http.Request) {
	var req models.StartFollowUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, errorMessageInvalidBody)
		return
	}

	if req.PhoneNumber == "" || req.Name == "" {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, errorMessageMissingField)
		return
	}

	result, err := h.service.FollowUp.StartFollowUp(r.Context(), req.PhoneNumber, req.Name, req.Context)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAddress) {
			h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, err.Error())
			return
		}

		h.logger.Error("Failed to start follow-up",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusBadGateway, errorCodeDeliveryFailed, err.Error())
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

// twimlResponse is the synchronous reply Twilio expects from the webhook.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// WhatsAppWebhook handles POST /webhook/whatsapp. Twilio posts the inbound
// message as form data and requires a TwiML reply on every request — this
// endpoint acknowledges even when internal processing failed.
func (h *Handler) WhatsAppWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("Webhook with unparseable form", zap.Error(err))
	}

	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")

	ack := h.service.Inbound.HandleInbound(r.Context(), from, body)

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	out, err := xml.Marshal(twimlResponse{Message: ack})
	if err != nil {
		h.logger.Error("Failed to marshal TwiML response", zap.Error(err))
		return
	}
	if _, err := w.Write(append([]byte(xml.Header), out...)); err != nil {
		h.logger.Warn("Failed to write TwiML response", zap.Error(err))
	}
}

// ListContacts handles GET /api/contacts.
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.service.Contact.ListContacts()
	if err != nil {
		h.logger.Error("Failed to list contacts",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageInternal)
		return
	}

	resp := models.ContactListResponse{
		Contacts: make([]models.ContactResponse, 0, len(contacts)),
		Total:    len(contacts),
	}
	for _, contact := range contacts {
		resp.Contacts = append(resp.Contacts, models.NewContactResponse(contact))
	}

	render.JSON(w, r, resp)
}

// GetContact handles GET /api/contacts/{phoneNumber}.
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	phoneNumber := chi.URLParam(r, "phoneNumber")

	contact, err := h.service.Contact.GetContactByPhone(phoneNumber)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrContactNotFound):
			h.sendError(w, r, http.StatusNotFound, errorCodeNotFound, errorMessageNotFound)
		case errors.Is(err, service.ErrInvalidAddress):
			h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, err.Error())
		default:
			h.logger.Error("Failed to get contact",
				zap.String("request_id", middleware.GetRequestID(r.Context())),
				zap.Error(err))
			h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageInternal)
		}
		return
	}

	render.JSON(w, r, models.NewContactResponse(contact))
}

// UpdateContactStatus handles PATCH /api/contacts/{id}/status.
func (h *Handler) UpdateContactStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, errorMessageInvalidID)
		return
	}

	var req models.UpdateContactStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, errorMessageInvalidBody)
		return
	}

	contact, err := h.service.Contact.UpdateContactStatus(id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, err.Error())
		case errors.Is(err, service.ErrContactNotFound):
			h.sendError(w, r, http.StatusNotFound, errorCodeNotFound, errorMessageNotFound)
		default:
			h.logger.Error("Failed to update contact status",
				zap.String("request_id", middleware.GetRequestID(r.Context())),
				zap.Error(err))
			h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageInternal)
		}
		return
	}

	render.JSON(w, r, models.NewContactResponse(contact))
}

// DeleteContact handles DELETE /api/contacts/{id}.
func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, errorMessageInvalidID)
		return
	}

	if err := h.service.Contact.RemoveContact(id); err != nil {
		h.logger.Error("Failed to delete contact",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageInternal)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMessages handles GET /api/messages.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.service.Message.ListMessages()
	if err != nil {
		h.logger.Error("Failed to list messages",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageInternal)
		return
	}

	render.JSON(w, r, models.MessageListResponse{Messages: messages, Total: len(messages)})
}

// GetMessage handles GET /api/messages/{id}.
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, errorMessageInvalidID)
		return
	}

	message, err := h.service.Message.GetMessage(id)
	if err != nil {
		if errors.Is(err, service.ErrMessageNotFound) {
			h.sendError(w, r, http.StatusNotFound, errorCodeNotFound, errorMessageNotFound)
			return
		}

		h.logger.Error("Failed to get message",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageInternal)
		return
	}

	render.JSON(w, r, message)
}

// ListContactMessages handles GET /api/contacts/{phoneNumber}/messages.
func (h *Handler) ListContactMessages(w http.ResponseWriter, r *http.Request) {
	phoneNumber := chi.URLParam(r, "phoneNumber")

	contact, err := h.service.Contact.GetContactByPhone(phoneNumber)
	if err != nil {
		if errors.Is(err, service.ErrContactNotFound) || errors.Is(err, service.ErrInvalidAddress) {
			h.sendError(w, r, http.StatusNotFound, errorCodeNotFound, errorMessageNotFound)
			return
		}

		h.logger.Error("Failed to get contact for messages",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageInternal)
		return
	}

	messages, err := h.service.Message.ListContactMessages(contact.ID)
	if err != nil {
		h.logger.Error("Failed to list contact messages",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageInternal)
		return
	}

	render.JSON(w, r, models.MessageListResponse{Messages: messages, Total: len(messages)})
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	health := h.service.Health.GetHealth()

	status := http.StatusOK
	if health.Status == models.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	render.Status(r, status)
	render.JSON(w, r, health)
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, models.ErrorResponse{
		Error:   code,
		Message: message,
	})
}
