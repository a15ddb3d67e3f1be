package validation_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	domainerrors "github.com/pagemarkapp/pagemark-host/internal/errors"
	"github.com/pagemarkapp/pagemark-host/internal/validation"
)

type commentRequest struct {
	BookID   int64  `json:"bookId" validate:"required,gt=0"`
	Position int    `json:"position" validate:"gte=0"`
	Body     string `json:"body" validate:"required,max=4096"`
	Theme    string `json:"theme" validate:"omitempty,oneof=white sepia dark"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	req := commentRequest{
		BookID:   1,
		Position: 42,
		Body:     "a note on this page",
		Theme:    "sepia",
	}

	err := v.Validate(req)
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       commentRequest
		wantField string
	}{
		{
			name:      "missing body",
			req:       commentRequest{BookID: 1, Position: 0},
			wantField: "body",
		},
		{
			name:      "missing book id",
			req:       commentRequest{Position: 0, Body: "note"},
			wantField: "bookId",
		},
		{
			name:      "negative position",
			req:       commentRequest{BookID: 1, Position: -3, Body: "note"},
			wantField: "position",
		},
		{
			name:      "unknown theme",
			req:       commentRequest{BookID: 1, Body: "note", Theme: "neon"},
			wantField: "theme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			assert.Error(t, err)

			var derr *domainerrors.Error
			if assert.True(t, errors.As(err, &derr)) {
				assert.Equal(t, http.StatusBadRequest, derr.HTTPStatus())
				fields, ok := derr.Details.(map[string]string)
				if assert.True(t, ok) {
					assert.Contains(t, fields, tt.wantField)
				}
			}
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	req := commentRequest{BookID: 1, Position: 0}

	err := v.Validate(req)
	assert.Error(t, err)

	var derr *domainerrors.Error
	if assert.True(t, errors.As(err, &derr)) {
		fields, ok := derr.Details.(map[string]string)
		if assert.True(t, ok) {
			// Should use JSON tag name "body", not struct field name "Body"
			assert.Contains(t, fields, "body")
			assert.NotContains(t, fields, "Body")
		}
	}
}
