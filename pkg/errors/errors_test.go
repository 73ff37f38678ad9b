package errors

import (
	stderrors "errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromErrorPassesThroughAppError(t *testing.T) {
	err := NewBadRequest("nope")

	converted := FromError(err)
	require.Equal(t, http.StatusBadRequest, converted.StatusCode)
	require.Equal(t, "nope", converted.Message)
}

func TestFromErrorWrapsGenericError(t *testing.T) {
	raw := stderrors.New("boom")

	converted := FromError(raw)
	require.Equal(t, http.StatusInternalServerError, converted.StatusCode)
	require.Equal(t, ErrInternalServer.Code, converted.Code)
	require.ErrorIs(t, converted, raw)
}

func TestNewValidationUsesSingleFieldMessage(t *testing.T) {
	err := NewValidation([]FieldError{{Field: "phone", Message: "phone must be 10-15 digits"}})

	require.Equal(t, http.StatusBadRequest, err.StatusCode)
	require.Equal(t, "phone must be 10-15 digits", err.Message)
	require.Len(t, err.Fields, 1)
}

func TestNewConflictCarriesServerTimestamp(t *testing.T) {
	now := time.Now().UTC()

	err := NewConflict(now)
	require.Equal(t, http.StatusConflict, err.StatusCode)
	require.NotNil(t, err.CurrentUpdatedAt)
	require.True(t, err.CurrentUpdatedAt.Equal(now))
}

func TestWithInternalDoesNotMutateOriginal(t *testing.T) {
	raw := stderrors.New("db down")

	wrapped := ErrInternalServer.WithInternal(raw)
	require.Nil(t, ErrInternalServer.Internal)
	require.ErrorIs(t, wrapped, raw)
}
