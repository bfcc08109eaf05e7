package http

import (
	"errors"
	"fmt"
	stdhttp "net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/lorrc/taskboard-backend/internal/core/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"credentials", apperrors.ErrInvalidCredentials, stdhttp.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"forbidden", apperrors.ErrForbidden, stdhttp.StatusForbidden, "FORBIDDEN"},
		{"wrapped not found", fmt.Errorf("load: %w", apperrors.ErrEpicNotFound), stdhttp.StatusNotFound, "EPIC_NOT_FOUND"},
		{"team not found", apperrors.ErrTeamNotFound, stdhttp.StatusNotFound, "TEAM_NOT_FOUND"},
		{"conflict", apperrors.ErrConflict, stdhttp.StatusConflict, "CONFLICT"},
		{"domain validation", apperrors.ErrTitleTooLong, stdhttp.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown", errors.New("disk on fire"), stdhttp.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := mapError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestMapError_ValidationUsesErrorText(t *testing.T) {
	_, resp := mapError(apperrors.ErrTitleRequired)
	assert.Equal(t, apperrors.ErrTitleRequired.Error(), resp.Error)
}
