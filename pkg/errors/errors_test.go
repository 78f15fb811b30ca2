package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	err := New(ErrorTypeValidation, "object class is required")
	assert.Equal(t, "validation: object class is required", err.Error())

	wrapped := Wrap(fmt.Errorf("dial tcp: refused"), ErrorTypeConnection, "connect failed")
	assert.Equal(t, "connection: connect failed: dial tcp: refused", wrapped.Error())
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeInternal, "nothing"))
}

func TestWrap_PreservesStack(t *testing.T) {
	inner := New(ErrorTypeQuery, "bad query")
	outer := Wrap(inner, ErrorTypeConnection, "outer")

	require.NotEmpty(t, inner.Stack)
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, stderrors.Is(outer, inner))
}

func TestIsType(t *testing.T) {
	err := fmt.Errorf("context: %w", New(ErrorTypePoolUnavailable, "closed"))

	assert.True(t, IsType(err, ErrorTypePoolUnavailable))
	assert.True(t, IsPoolUnavailable(err))
	assert.False(t, IsPoolExhausted(err))
	assert.False(t, IsType(stderrors.New("plain"), ErrorTypeInternal))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", New(ErrorTypeTimeout, "slow"), true},
		{"connection", New(ErrorTypeConnection, "reset"), true},
		{"exhausted", New(ErrorTypePoolExhausted, "busy"), true},
		{"validation", New(ErrorTypeValidation, "bad"), false},
		{"plain", stderrors.New("plain"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWithDetail(t *testing.T) {
	err := Newf(ErrorTypeNotFound, "object %s not found", "42").
		WithDetail("object_class", "__ACCOUNT__")

	assert.Equal(t, "not_found: object 42 not found", err.Error())
	assert.Equal(t, "__ACCOUNT__", err.Details["object_class"])
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeQuery, TypeOf(fmt.Errorf("search: %w", New(ErrorTypeQuery, "bad"))))
	assert.Equal(t, ErrorTypeConflict, TypeOf(Wrap(New(ErrorTypeQuery, "bad"), ErrorTypeConflict, "outer")))
	assert.Equal(t, ErrorType(""), TypeOf(stderrors.New("plain")))
	assert.Equal(t, ErrorType(""), TypeOf(nil))
	assert.False(t, IsType(nil, ""))
}

func TestError_Format(t *testing.T) {
	err := New(ErrorTypeNotFound, "no such table").WithDetail("table", "users")

	assert.Equal(t, "not_found: no such table", fmt.Sprintf("%v", err))
	assert.Equal(t, `"not_found: no such table"`, fmt.Sprintf("%q", err))

	verbose := fmt.Sprintf("%+v", err)
	assert.Contains(t, verbose, "table=users")
	assert.Contains(t, verbose, "TestError_Format")
}

func TestNew_StackStartsAtCaller(t *testing.T) {
	err := New(ErrorTypeInternal, "boom")
	require.NotEmpty(t, err.Stack)
	assert.Contains(t, err.Stack[0].Function, "TestNew_StackStartsAtCaller")
}
