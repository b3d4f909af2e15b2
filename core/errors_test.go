package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	notFound := NewNotFoundError("thing not found")
	rule := NewBusinessRuleError("not allowed")

	tests := []struct {
		name         string
		err          error
		isNotFound   bool
		isRule       bool
		wantShutdown bool
	}{
		{name: "not found", err: notFound, isNotFound: true},
		{name: "wrapped not found", err: errors.Wrap(notFound, "getting thing"), isNotFound: true},
		{name: "business rule", err: rule, isRule: true},
		{name: "wrapped business rule", err: errors.Wrapf(errors.Wrap(rule, "inner"), "outer %d", 1), isRule: true},
		{name: "shutdown", err: errors.Wrap(NewShutdownError("integrity"), "saving"), wantShutdown: true},
		{name: "validation", err: NewValidationError(errors.New("bad"), FieldError{Field: "name", Error: "bad"})},
		{name: "forbidden", err: ErrForbidden},
		{name: "nil", err: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isNotFound, IsNotFound(tt.err))
			assert.Equal(t, tt.isRule, IsBusinessRule(tt.err))
			assert.Equal(t, tt.wantShutdown, IsShutdown(tt.err))
		})
	}
}
