package service

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aquaguard/aquaguard/internal/auth"
	"github.com/aquaguard/aquaguard/internal/middleware"
	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/storage"
)

// AuthService serves the /api/auth routes.
type AuthService struct {
	authenticator auth.Authenticator
	users         storage.UserStore
	jwtManager    *auth.JWTManager
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, users storage.UserStore, jwtManager *auth.JWTManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		users:         users,
		jwtManager:    jwtManager,
		logger:        logger,
	}
}

// Routes registers the auth routes on r.
func (s *AuthService) Routes(r chi.Router) {
	r.Post("/register", s.Register)
	r.Post("/login", s.Login)
	r.Post("/logout", s.Logout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(s.jwtManager))
		r.Get("/profile", s.GetProfile)
		r.Put("/profile", s.UpdateProfile)
	})
}

type registerRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	DisplayName *string `json:"displayName"`
	Email       *string `json:"email"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates a new user account and signs it in.
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.logger.Info("Register request", "email", req.Email)

	user, err := s.authenticator.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		s.logger.Warn("Registration failed", "email", req.Email, "error", err)
		writeError(w, r, err)
		return
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		writeError(w, r, err)
		return
	}

	s.logger.Info("User registered successfully", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

// Login authenticates a user and returns a JWT token.
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, auth.ErrInvalidCredentials)
		return
	}

	user, err := s.authenticator.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Warn("Login failed", "email", req.Email, "error", err)
		writeError(w, r, err)
		return
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		writeError(w, r, err)
		return
	}

	s.logger.Info("User logged in successfully", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// Logout acknowledges a sign-out. Tokens are stateless, so the client
// discards its own.
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// GetProfile returns the signed-in user.
func (s *AuthService) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetUserByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile changes the signed-in user's display name or email and
// returns a token carrying the new email.
func (s *AuthService) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetUserByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	verr := &models.ValidationError{}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			verr.Add("displayName", "Name is required")
		}
		user.DisplayName = name
	}
	if req.Email != nil {
		email, msg := models.NormalizeEmail(*req.Email)
		if msg != "" {
			verr.Add("email", msg)
		}
		user.Email = email
	}
	if err := verr.OrNil(); err != nil {
		writeError(w, r, err)
		return
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			err = auth.ErrEmailExists
		}
		writeError(w, r, err)
		return
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.logger.Info("Profile updated", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}
