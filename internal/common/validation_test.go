package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestValidatorCollectsAll(t *testing.T) {
	v := NewValidator().
		Field("a", "", Required).
		Field("b", "x", OneOf("y", "z")).
		Field("c", 5, IntRange(1, 3)).
		Field("d", "ok", MaxLength(4)).
		Field("e", "toolong", MaxLength(3))

	assert.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 4)
	assert.Contains(t, v.ErrorMessage(), "e must be at most 3 characters")
	assert.EqualError(t, v.Error(), v.ErrorMessage())
	assert.Contains(t, v.ErrorMessage(), "must be one of [y, z]")
	assert.Contains(t, v.ErrorMessage(), "must be between 1 and 3")
}

func TestUUIDRule(t *testing.T) {
	assert.Nil(t, UUID("id", "7f9c2ba4-e88f-4e4e-9c39-6f1b5e2f3a10"))
	assert.NotNil(t, UUID("id", "not-a-uuid"))
	assert.Nil(t, UUID("id", ""), "blank is left to Required")
}

func TestValidateAndReturnError(t *testing.T) {
	err := ValidateAndReturnError(NewValidator().Field("id", "", Required))
	st, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())

	assert.NoError(t, ValidateAndReturnError(NewValidator()))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{WrapError(ErrNotFound, "run"), codes.NotFound},
		{NewAppError(CodeConfig, "bad", ErrInvalidInput), codes.InvalidArgument},
		{ErrNoComposition, codes.FailedPrecondition},
		{ErrDatabase, codes.Internal},
		{fmt.Errorf("%w on all 2 pages: %w", ErrOCR, errors.New("down")), codes.Unavailable},
		{NewAppError(CodeRead, "hash source file", errors.New("open x: no such file")), codes.NotFound},
		{status.Error(codes.Unavailable, "x"), codes.Unavailable},
	}
	for _, tt := range tests {
		st, _ := status.FromError(ToStatus(tt.err))
		assert.Equal(t, tt.code, st.Code(), tt.err.Error())
	}
	assert.NoError(t, ToStatus(nil))
}
