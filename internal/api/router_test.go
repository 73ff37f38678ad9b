package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/leadvault/leadvault/internal/auth"
	"github.com/leadvault/leadvault/internal/cache"
	"github.com/leadvault/leadvault/internal/database/testutil"
	"github.com/leadvault/leadvault/internal/middleware"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{TTL: time.Hour})
	require.NoError(t, err)
	verifications, err := iauth.NewVerificationService(db, nil)
	require.NoError(t, err)

	router, err := NewRouter(db, sessions, verifications, cache.NewMemoryStore(), RouterConfig{})
	require.NoError(t, err)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// signIn walks the verification flow and returns the session cookie.
func signIn(t *testing.T, router *gin.Engine, email string) *http.Cookie {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/api/auth/verify", gin.H{"email": email}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.Token)

	w = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/auth/verify?token=%s&email=%s", issued.Token, email), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == middleware.SessionCookieName && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func leadPayload() gin.H {
	return gin.H{
		"fullName":     "Ravi Kumar",
		"phone":        "9876543210",
		"city":         "Chandigarh",
		"propertyType": "Apartment",
		"bhk":          "2",
		"purpose":      "Buy",
		"timeline":     "0-3m",
		"source":       "Website",
		"tags":         []string{"hot"},
	}
}

func TestRouterRequiresSession(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/buyers", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouterVerifyFlowAndMe(t *testing.T) {
	router := newTestRouter(t)
	cookie := signIn(t, router, "agent@example.com")

	w := doJSON(t, router, http.MethodGet, "/api/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "agent@example.com")
}

func TestRouterVerifyRejectsConsumedToken(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/auth/verify", gin.H{"email": "agent@example.com"}, nil)
	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))

	url := fmt.Sprintf("/api/auth/verify?token=%s&email=agent@example.com", issued.Token)
	w = doJSON(t, router, http.MethodGet, url, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, url, nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "Invalid verification link")
}

func TestRouterSignup(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/auth/signup", gin.H{"name": "Agent", "email": "agent@example.com"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), "Verification email sent")

	w = doJSON(t, router, http.MethodPost, "/api/auth/signup", gin.H{"email": "agent@example.com"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "already registered")

	w = doJSON(t, router, http.MethodPost, "/api/auth/signup", gin.H{"email": "not-an-email"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouterBuyerLifecycle(t *testing.T) {
	router := newTestRouter(t)
	cookie := signIn(t, router, "agent@example.com")

	// Create
	w := doJSON(t, router, http.MethodPost, "/api/buyers", leadPayload(), cookie)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ID        string    `json:"id"`
		Status    string    `json:"status"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, "New", created.Status)

	// List
	w = doJSON(t, router, http.MethodGet, "/api/buyers?city=Chandigarh", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Buyers     []json.RawMessage `json:"buyers"`
		Pagination struct {
			TotalCount  int64 `json:"totalCount"`
			HasNextPage bool  `json:"hasNextPage"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, int64(1), list.Pagination.TotalCount)
	require.False(t, list.Pagination.HasNextPage)

	// Get with history
	w = doJSON(t, router, http.MethodGet, "/api/buyers/"+created.ID, nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "history")

	// Update with a fresh version marker
	payload := leadPayload()
	payload["status"] = "Qualified"
	payload["updatedAt"] = created.UpdatedAt
	w = doJSON(t, router, http.MethodPut, "/api/buyers/"+created.ID, payload, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	// The same stale marker now conflicts
	payload["status"] = "Dropped"
	w = doJSON(t, router, http.MethodPut, "/api/buyers/"+created.ID, payload, cookie)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "currentUpdatedAt")

	// Another user cannot touch the lead
	other := signIn(t, router, "other@example.com")
	delete(payload, "updatedAt")
	w = doJSON(t, router, http.MethodPut, "/api/buyers/"+created.ID, payload, other)
	require.Equal(t, http.StatusForbidden, w.Code)

	// Delete
	w = doJSON(t, router, http.MethodDelete, "/api/buyers/"+created.ID, nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/buyers/"+created.ID, nil, cookie)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterValidationErrorShape(t *testing.T) {
	router := newTestRouter(t)
	cookie := signIn(t, router, "agent@example.com")

	payload := leadPayload()
	payload["fullName"] = "x"
	delete(payload, "bhk")
	w := doJSON(t, router, http.MethodPost, "/api/buyers", payload, cookie)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error  string `json:"error"`
		Fields []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Error)
	seen := map[string]bool{}
	for _, fe := range body.Fields {
		seen[fe.Field] = true
	}
	require.True(t, seen["fullName"])
	require.True(t, seen["bhk"])
}

func TestRouterCSVImportExport(t *testing.T) {
	router := newTestRouter(t)
	cookie := signIn(t, router, "agent@example.com")

	body := "fullName,email,phone,city,propertyType,bhk,purpose,budgetMin,budgetMax,timeline,source,notes,tags,status\n" +
		"Ravi Kumar,ravi@example.com,9876543210,Chandigarh,Apartment,2,Buy,,,0-3m,Website,,hot,New\n" +
		"Bad Row,,12,Chandigarh,Plot,,Buy,,,0-3m,Website,,,New\n"

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "leads.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/buyers/import", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var report struct {
		TotalRows int `json:"totalRows"`
		ValidRows int `json:"validRows"`
		ErrorRows int `json:"errorRows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Equal(t, 2, report.TotalRows)
	require.Equal(t, 1, report.ValidRows)
	require.Equal(t, 1, report.ErrorRows)

	// Export what landed
	w = doJSON(t, router, http.MethodGet, "/api/buyers/export?city=Chandigarh", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	require.Contains(t, w.Header().Get("Content-Disposition"), "buyers-export-")
	require.Contains(t, w.Body.String(), "Ravi Kumar")

	// Filters with no matches are a 404, not an empty file
	w = doJSON(t, router, http.MethodGet, "/api/buyers/export?city=Panchkula", nil, cookie)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterImportRejectsNonCSV(t *testing.T) {
	router := newTestRouter(t)
	cookie := signIn(t, router, "agent@example.com")

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "leads.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("not a csv"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/buyers/import", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouterAuthRateLimit(t *testing.T) {
	router := newTestRouter(t)

	for i := 0; i < 5; i++ {
		w := doJSON(t, router, http.MethodPost, "/api/auth/verify", gin.H{"email": "agent@example.com"}, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, router, http.MethodPost, "/api/auth/verify", gin.H{"email": "agent@example.com"}, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRouterLogoutClearsSession(t *testing.T) {
	router := newTestRouter(t)
	cookie := signIn(t, router, "agent@example.com")

	w := doJSON(t, router, http.MethodPost, "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/auth/me", nil, cookie)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterBrowserRedirect(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/buyers", nil)
	req.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	require.Contains(t, w.Header().Get("Location"), "/sign-in?callbackUrl=")
}

func TestRouterUnknownRoute(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/nope", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "not found")
	require.False(t, strings.Contains(w.Body.String(), "<html"))
}
