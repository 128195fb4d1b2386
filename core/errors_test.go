package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type detailErr string

func (e detailErr) Error() string       { return "backend: " + string(e) }
func (e detailErr) UserMessage() string { return string(e) }

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "transport", err: errors.New("dial tcp: connection refused"), want: "fallback"},
		{name: "backend detail", err: errors.Wrap(detailErr("Access denied."), "fetching"), want: "Access denied."},
		{name: "backend without detail", err: detailErr(""), want: "fallback"},
		{
			name: "validation fields",
			err:  NewValidationError(nil, FieldError{Field: "title", Error: "too short"}, FieldError{Field: "question", Error: "required"}),
			want: "title: too short; question: required",
		},
		{name: "validation message", err: NewValidationError(errors.New("Pick a question set.")), want: "Pick a question set."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err, "fallback"))
		})
	}
}

func TestValidationError(t *testing.T) {
	err := errors.Wrap(NewValidationError(nil, FieldError{Field: "answer", Error: "too short"}), "submitting")
	assert.True(t, IsValidationError(err))
	assert.False(t, IsValidationError(errors.New("nope")))

	vErr := errors.Cause(err).(*ValidationError)
	assert.Equal(t, map[string]string{"answer": "too short"}, vErr.FieldErrors())
}

func TestShutdownError(t *testing.T) {
	assert.True(t, IsShutdown(errors.Wrap(NewShutdownError("integrity issue"), "serving")))
	assert.False(t, IsShutdown(errors.New("integrity issue")))
}
