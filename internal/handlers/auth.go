package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/leadvault/leadvault/pkg/errors"
	"github.com/leadvault/leadvault/pkg/metrics"
	"github.com/leadvault/leadvault/pkg/response"

	iauth "github.com/leadvault/leadvault/internal/auth"
	"github.com/leadvault/leadvault/internal/middleware"
	"github.com/leadvault/leadvault/internal/services"
)

const defaultCallbackURL = "/buyers"

// AuthHandler implements the email magic-link flow: signup, verification
// token issue and consumption, session logout, and the current-user lookup.
type AuthHandler struct {
	users         *services.UserService
	sessions      *iauth.SessionService
	verifications *iauth.VerificationService
	secureCookies bool
}

// NewAuthHandler wires the auth endpoints.
func NewAuthHandler(users *services.UserService, sessions *iauth.SessionService, verifications *iauth.VerificationService, secureCookies bool) (*AuthHandler, error) {
	if users == nil || sessions == nil || verifications == nil {
		return nil, errors.New("auth handler: all services are required")
	}
	return &AuthHandler{
		users:         users,
		sessions:      sessions,
		verifications: verifications,
		secureCookies: secureCookies,
	}, nil
}

type signupRequest struct {
	Name  string `json:"name" validate:"omitempty,max=80"`
	Email string `json:"email" validate:"required,email"`
}

// Signup registers a user and emails a verification link. The user stays
// unverified until the link is consumed.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Create(requestContext(c), req.Email, req.Name)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateEmail) {
			response.Error(c, appErrors.NewDuplicate("Email is already registered"))
			return
		}
		response.Error(c, err)
		return
	}

	if _, _, err := h.verifications.CreateToken(requestContext(c), user.Email, req.Name); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusCreated, gin.H{
		"user":    user,
		"message": "Verification email sent",
	})
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"omitempty,max=80"`
}

// RequestToken issues a verification token for an email and returns it in the
// response body alongside sending the magic link.
func (h *AuthHandler) RequestToken(c *gin.Context) {
	var req verifyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	token, expires, err := h.verifications.CreateToken(requestContext(c), req.Email, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"token":   token,
		"expires": expires,
	})
}

// Verify consumes a magic-link token, provisions the verified user, opens a
// session, and sets the session cookie.
func (h *AuthHandler) Verify(c *gin.Context) {
	token := c.Query("token")
	email := c.Query("email")
	if token == "" || email == "" {
		response.Error(c, appErrors.NewBadRequest("token and email are required"))
		return
	}

	record, err := h.verifications.Consume(requestContext(c), email, token)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		switch {
		case errors.Is(err, iauth.ErrVerificationExpired):
			response.Error(c, appErrors.NewBadRequest("Verification link has expired"))
		case errors.Is(err, iauth.ErrVerificationNotFound):
			response.Error(c, appErrors.NewBadRequest("Invalid verification link"))
		default:
			response.Error(c, err)
		}
		return
	}

	user, err := h.users.FindOrCreateVerified(requestContext(c), record.Identifier, record.Name)
	if err != nil {
		response.Error(c, err)
		return
	}

	session, err := h.sessions.Create(requestContext(c), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	h.setSessionCookie(c, session.Token, int(h.sessions.TTL().Seconds()))

	response.JSON(c, http.StatusOK, gin.H{
		"user":        user,
		"callbackUrl": sanitizeCallback(c.Query("callbackUrl")),
	})
}

// Logout deletes the current session and clears the cookie. Logging out
// without a session still succeeds.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(middleware.SessionCookieName); err == nil && token != "" {
		if err := h.sessions.Delete(requestContext(c), token); err != nil {
			response.Error(c, err)
			return
		}
	}

	h.setSessionCookie(c, "", -1)
	response.Message(c, http.StatusOK, "Logged out")
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, token, maxAge, "/", "", h.secureCookies, true)
}

// sanitizeCallback restricts redirects to same-origin paths.
func sanitizeCallback(callback string) string {
	if callback == "" || !strings.HasPrefix(callback, "/") || strings.HasPrefix(callback, "//") {
		return defaultCallbackURL
	}
	return callback
}
