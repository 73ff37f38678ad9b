package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/leadvault/leadvault/internal/auth"
	"github.com/leadvault/leadvault/pkg/errors"
	"github.com/leadvault/leadvault/pkg/response"
)

const (
	// SessionCookieName is the httpOnly cookie carrying the opaque session token.
	SessionCookieName = "leadvault_session"

	CtxUserKey      = "currentUser"
	CtxUserIDKey    = "userID"
	CtxSessionIDKey = "sessionID"
)

// Auth resolves the session cookie and enforces authentication. An expired
// session is treated exactly like a missing one. Browser requests are
// redirected to the sign-in page with the original path preserved; API
// requests get a 401 body.
func Auth(sessions *iauth.SessionService, signInPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			rejectUnauthenticated(c, signInPath)
			return
		}

		session, err := sessions.GetSessionAndUser(c.Request.Context(), token)
		if err != nil {
			response.Error(c, errors.ErrInternalServer.WithInternal(err))
			c.Abort()
			return
		}
		if session == nil || session.Expired(time.Now()) || session.User == nil {
			rejectUnauthenticated(c, signInPath)
			return
		}

		// Activity tracking is best effort.
		_ = sessions.Touch(c.Request.Context(), session.ID)

		c.Set(CtxUserKey, session.User)
		c.Set(CtxUserIDKey, session.UserID)
		c.Set(CtxSessionIDKey, session.ID)

		c.Next()
	}
}

func rejectUnauthenticated(c *gin.Context, signInPath string) {
	if acceptsHTML(c) && signInPath != "" {
		callback := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			callback += "?" + raw
		}
		c.Redirect(http.StatusFound, signInPath+"?callbackUrl="+url.QueryEscape(callback))
		c.Abort()
		return
	}

	response.Error(c, errors.ErrUnauthorized)
	c.Abort()
}

func acceptsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}
