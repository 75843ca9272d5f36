package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeClassification(t *testing.T) {
	tests := []struct {
		code   Code
		status int
		client bool
	}{
		{InvalidParams, http.StatusBadRequest, true},
		{PayloadTooLarge, http.StatusRequestEntityTooLarge, true},
		{UnsupportedLanguage, http.StatusBadRequest, true},
		{Unauthorized, http.StatusUnauthorized, true},
		{Internal, http.StatusInternalServerError, false},
		{ToolchainMissing, http.StatusInternalServerError, false},
		{Code(42), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.code.HTTPStatus())
			assert.Equal(t, tt.client, tt.code.IsClient())
			assert.NotEmpty(t, tt.code.Message())
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("NilStaysNil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, Internal))
		assert.Nil(t, Wrapf(nil, Internal, "x"))
	})

	t.Run("ForeignError", func(t *testing.T) {
		cause := errors.New("disk full")
		err := Wrap(cause, Internal)

		require.NotNil(t, err)
		assert.Equal(t, Internal, err.Code)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("KeepsExistingCode", func(t *testing.T) {
		inner := Newf(UnsupportedLanguage, "unsupported language: cobol")
		err := Wrap(fmt.Errorf("normalize: %w", inner), Internal)

		assert.Equal(t, UnsupportedLanguage, err.Code)
	})
}

func TestCodeOfAndPublicMessage(t *testing.T) {
	t.Run("ClientMessageIsPassedThrough", func(t *testing.T) {
		err := Newf(InvalidParams, "code is required").WithDetail("field", "code")

		assert.Equal(t, InvalidParams, CodeOf(err))
		assert.Equal(t, "code is required", PublicMessage(err))
		assert.Equal(t, "code", err.Details["field"])
	})

	t.Run("InternalCauseIsHidden", func(t *testing.T) {
		err := Wrapf(errors.New("open /tmp/x: permission denied"), Internal, "write source")

		assert.Equal(t, Internal, CodeOf(err))
		assert.Equal(t, "internal server error", PublicMessage(err))
		assert.NotContains(t, PublicMessage(err), "permission")
	})

	t.Run("ForeignErrorIsInternal", func(t *testing.T) {
		err := errors.New("boom")

		assert.Equal(t, Internal, CodeOf(err))
		assert.Equal(t, "internal server error", PublicMessage(err))
	})
}
