package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/groupify/accounts-go/internal/lib/sl"
	"github.com/groupify/accounts-go/internal/model"
	"github.com/groupify/accounts-go/internal/service"
)

// Client-facing error messages.
const (
	msgRegisterFieldsRequired = "Email, password, and country are required."
	msgEmailRegistered        = "Email is already registered."
	msgConfirmFieldsRequired  = "Email and code are required."
	msgUserNotFound           = "User not found."
	msgInvalidCode            = "Invalid or expired verification code."
	msgExpiredCode            = "Verification code has expired."
	msgLoginFieldsRequired    = "Email and password are required."
	msgInvalidCredentials     = "Invalid email or password."
	msgEmailNotConfirmed      = "Email address has not been confirmed."
	msgInternal               = "internal server error"
)

// AccountHandler handles HTTP requests for account registration, email
// confirmation and login.
type AccountHandler struct {
	service *service.AccountService
	log     *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc *service.AccountService, log *slog.Logger) *AccountHandler {
	return &AccountHandler{service: svc, log: log}
}

// HandleRegister handles POST /register requests.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingRegistrationFields):
			writeJSON(w, r, http.StatusBadRequest, errorResponse(msgRegisterFieldsRequired))
		case errors.Is(err, service.ErrEmailRegistered):
			writeJSON(w, r, http.StatusConflict, errorResponse(msgEmailRegistered))
		default:
			h.internalError(w, r, err)
		}
		return
	}

	writeJSON(w, r, http.StatusCreated, resp)
}

// HandleConfirmEmail handles POST /confirm-email requests.
func (h *AccountHandler) HandleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req model.ConfirmEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	resp, err := h.service.ConfirmEmail(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingConfirmationFields):
			writeJSON(w, r, http.StatusBadRequest, errorResponse(msgConfirmFieldsRequired))
		case errors.Is(err, service.ErrUserNotFound):
			writeJSON(w, r, http.StatusNotFound, errorResponse(msgUserNotFound))
		case errors.Is(err, service.ErrInvalidToken):
			writeJSON(w, r, http.StatusBadRequest, errorResponse(msgInvalidCode))
		case errors.Is(err, service.ErrExpiredToken):
			writeJSON(w, r, http.StatusBadRequest, errorResponse(msgExpiredCode))
		default:
			h.internalError(w, r, err)
		}
		return
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// HandleLogin handles POST /login requests.
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingCredentials):
			writeJSON(w, r, http.StatusBadRequest, errorResponse(msgLoginFieldsRequired))
		case errors.Is(err, service.ErrInvalidCredentials):
			writeJSON(w, r, http.StatusUnauthorized, errorResponse(msgInvalidCredentials))
		case errors.Is(err, service.ErrEmailNotConfirmed):
			writeJSON(w, r, http.StatusForbidden, errorResponse(msgEmailNotConfirmed))
		default:
			h.internalError(w, r, err)
		}
		return
	}

	writeJSON(w, r, http.StatusOK, resp)
}

func (h *AccountHandler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error("request failed",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		sl.Err(err),
	)
	writeJSON(w, r, http.StatusInternalServerError, errorResponse(msgInternal))
}
