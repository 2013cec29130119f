package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-utility/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-utility/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.With(shared.RequireUser(httpx.Unauthenticated)).Get("/me", h.handleMe)
}

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Profile   `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "request body must be a JSON object with email and password")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		fields := make(map[string]string, len(fieldErrs))
		for _, fieldErr := range fieldErrs {
			fields[jsonField(fieldErr.Field())] = fieldErr.Tag()
		}
		httpx.ValidationProblem(w, "invalid login payload", fields)
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Info("login rejected", slog.String("email", form.Email))
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "email or password is invalid")
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, errors.New("session missing"))
		return
	}
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		h.logger.Error("renew session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	if err := h.sessionManager.Commit(r.Context(), w, sess); err != nil {
		h.logger.Error("commit session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	expiresAt := time.Now().Add(h.sessionManager.TTL()).UTC()
	if err := h.service.RegisterSession(r.Context(), h.sessionManager.StorageKey(sess.ID), user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, loginResponse{Token: sess.ID, ExpiresAt: expiresAt, User: user.Profile()})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil && sess.User() != "" {
		if err := h.service.RemoveSession(r.Context(), h.sessionManager.StorageKey(sess.ID)); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
		if err := h.sessionManager.Commit(r.Context(), w, sess); err != nil {
			h.logger.Warn("destroy session", slog.Any("error", err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	userID, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		h.logger.Error("parse session user", slog.String("value", sess.User()))
		httpx.Unauthenticated(w, r)
		return
	}
	user, err := h.service.Current(r.Context(), userID)
	if err != nil {
		if errors.Is(err, shared.ErrUnauthenticated) {
			h.sessionManager.Destroy(sess)
			_ = h.sessionManager.Commit(r.Context(), w, sess)
			httpx.Unauthenticated(w, r)
			return
		}
		h.logger.Error("load current user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user.Profile())
}

func jsonField(name string) string {
	switch name {
	case "Email":
		return "email"
	case "Password":
		return "password"
	default:
		return name
	}
}
