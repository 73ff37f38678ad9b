package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/leadvault/leadvault/pkg/errors"
	"github.com/leadvault/leadvault/pkg/response"

	"github.com/leadvault/leadvault/internal/services"
)

// CSVHandler exposes bulk lead import and filtered export.
type CSVHandler struct {
	csv *services.CSVService
}

// NewCSVHandler wires the CSV endpoints.
func NewCSVHandler(csv *services.CSVService) (*CSVHandler, error) {
	if csv == nil {
		return nil, errors.New("csv handler: csv service is required")
	}
	return &CSVHandler{csv: csv}, nil
}

// Import accepts a multipart CSV upload and returns the per-row report.
func (h *CSVHandler) Import(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("file upload is required"))
		return
	}

	if !isCSVUpload(file.Filename, file.Header.Get("Content-Type")) {
		response.Error(c, appErrors.NewBadRequest("file must be a CSV"))
		return
	}

	reader, err := file.Open()
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("file upload is unreadable"))
		return
	}
	defer reader.Close()

	report, err := h.csv.Import(requestContext(c), currentUserID(c), reader)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, report)
}

// Export streams every lead matching the filters as a CSV attachment.
func (h *CSVHandler) Export(c *gin.Context) {
	data, filename, err := h.csv.Export(requestContext(c), listOptionsFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func isCSVUpload(filename, contentType string) bool {
	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return true
	}
	switch {
	case strings.Contains(contentType, "text/csv"),
		strings.Contains(contentType, "application/csv"),
		strings.Contains(contentType, "application/vnd.ms-excel"):
		return true
	}
	return false
}
