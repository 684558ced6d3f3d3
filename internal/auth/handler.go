package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pentora/pentora/internal/platform/httpx"
	"github.com/pentora/pentora/internal/policy"
	"github.com/pentora/pentora/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	cookieTTL time.Duration
	secure    bool
	validator *validator.Validate
}

// NewHandler constructs a Handler instance. cookieTTL controls the sessionId
// cookie lifetime and should match the token TTL; secure toggles the cookie
// Secure attribute for deployments behind TLS.
func NewHandler(logger *slog.Logger, service *Service, cookieTTL time.Duration, secure bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		cookieTTL: cookieTTL,
		secure:    secure,
		validator: validator.New(),
	}
}

// MountRoutes registers the public auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/register", h.handleRegister)
}

// MountProtectedRoutes registers routes that require an authenticated caller.
func (h *Handler) MountProtectedRoutes(r chi.Router) {
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
	r.Patch("/profile", h.handleUpdateProfile)
	r.Post("/change-password", h.handleChangePassword)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	User      UserDTO `json:"user"`
	SessionID string  `json:"sessionId"`
	Message   string  `json:"message"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "username and password are required")
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Username, req.Password, shared.ClientIP(r), shared.UserAgent(r))
	if err != nil {
		status := http.StatusUnauthorized
		h.logger.Info("login rejected", slog.String("username", req.Username), slog.String("reason", shared.UserSafeMessage(err)))
		httpx.Problem(w, status, "Login Failed", shared.UserSafeMessage(err))
		return
	}

	h.setSessionCookie(w, token)
	httpx.JSON(w, http.StatusOK, loginResponse{
		User:      user.DTO(),
		SessionID: token,
		Message:   "Login successful",
	})
}

type registerRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password, req.FirstName, req.LastName, req.Role)
	if err != nil {
		if err == ErrDuplicateUser {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "username or email already taken")
			return
		}
		h.logger.Error("register failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"user":    user.DTO(),
		"message": "Registration successful",
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	identity, _ := policy.IdentityFromContext(r.Context())
	var user *User
	if identity.UserID != 0 {
		if u, err := h.service.repo.FindByID(r.Context(), identity.UserID); err == nil {
			user = u
		}
	}
	if err := h.service.Logout(r.Context(), user, identity.Token, shared.ClientIP(r), shared.UserAgent(r)); err != nil {
		h.logger.Warn("logout", slog.Any("error", err))
	}
	h.clearSessionCookie(w)
	httpx.Message(w, http.StatusOK, "Logged out successfully")
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := policy.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	user, err := h.service.repo.FindByID(r.Context(), identity.UserID)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user.DTO()})
}

type updateProfileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" validate:"omitempty,email"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := policy.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), identity.UserID, req.FirstName, req.LastName, req.Email)
	if err != nil {
		h.logger.Error("update profile", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":    user.DTO(),
		"message": "Profile updated successfully",
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := policy.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	if err := h.service.ChangePassword(r.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		if err == ErrWrongPassword {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "current password is incorrect")
			return
		}
		h.logger.Error("change password", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.Message(w, http.StatusOK, "Password changed successfully")
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func validationDetail(err error) string {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		return errs[0].Field() + " failed validation"
	}
	return "validation failed"
}
