package response

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/leadvault/leadvault/pkg/errors"
)

// ErrorBody is the JSON shape of every error response. The Error field is
// always present; the rest is populated per error kind.
type ErrorBody struct {
	Error            string                 `json:"error"`
	Fields           []appErrors.FieldError `json:"fields,omitempty"`
	CurrentUpdatedAt *time.Time             `json:"currentUpdatedAt,omitempty"`
	RetryAfter       int                    `json:"retryAfter,omitempty"`
}

// Pagination describes list metadata using the wire field names clients rely on.
type Pagination struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalCount  int64 `json:"totalCount"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NewPagination derives page metadata from a total row count.
func NewPagination(page, limit int, totalCount int64) Pagination {
	totalPages := int((totalCount + int64(limit) - 1) / int64(limit))
	return Pagination{
		Page:        page,
		Limit:       limit,
		TotalCount:  totalCount,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// JSON writes a success payload as-is, preserving endpoint-specific shapes.
func JSON(c *gin.Context, statusCode int, payload any) {
	c.JSON(statusCode, payload)
}

// Message writes a simple success message body.
func Message(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"message": message})
}

// Error writes a JSON error response derived from an AppError.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	body := ErrorBody{
		Error:            appErr.Message,
		Fields:           appErr.Fields,
		CurrentUpdatedAt: appErr.CurrentUpdatedAt,
	}

	if appErr.RetryAfter > 0 {
		seconds := int(appErr.RetryAfter.Round(time.Second).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		body.RetryAfter = seconds
		c.Header("Retry-After", strconv.Itoa(seconds))
	}

	c.JSON(status, body)
}
