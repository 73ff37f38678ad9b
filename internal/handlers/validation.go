package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/leadvault/leadvault/pkg/errors"
	"github.com/leadvault/leadvault/pkg/response"
	appValidator "github.com/leadvault/leadvault/pkg/validator"

	"github.com/leadvault/leadvault/internal/services"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation
// rules. When binding or validation fails, an error response is written and
// false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewValidation(fieldErrors(err)))
		return false
	}

	return true
}

// bindJSON binds without validating, for payloads the service layer validates.
func bindJSON[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}
	return true
}

func fieldErrors(err error) []appErrors.FieldError {
	ve, ok := err.(appValidator.ValidationErrors)
	if !ok {
		return []appErrors.FieldError{{Field: "input", Message: "invalid request payload"}}
	}

	fields := make([]appErrors.FieldError, 0, len(ve))
	for _, failure := range ve {
		var message string
		switch failure.Tag {
		case "required":
			message = failure.Field + " is required"
		case "email":
			message = failure.Field + " must be a valid email address"
		case "min":
			message = failure.Field + " must be at least " + failure.Param + " characters"
		case "max":
			message = failure.Field + " must be at most " + failure.Param + " characters"
		default:
			message = failure.Field + " is invalid"
		}
		fields = append(fields, appErrors.FieldError{Field: failure.Field, Message: message})
	}
	return fields
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// listOptionsFromQuery maps the shared list/export query parameters. Range
// and enum coercion happens inside the service.
func listOptionsFromQuery(c *gin.Context) services.ListOptions {
	return services.ListOptions{
		Page:         parseIntQuery(c, "page", 0),
		Limit:        parseIntQuery(c, "limit", 0),
		Search:       c.Query("search"),
		City:         c.Query("city"),
		PropertyType: c.Query("propertyType"),
		Status:       c.Query("status"),
		Timeline:     c.Query("timeline"),
		SortBy:       c.Query("sortBy"),
		SortOrder:    c.Query("sortOrder"),
	}
}
