package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCode(t *testing.T) {
	err := Wrap(ErrNoContacts, "assemble alert")
	require.NotNil(t, err)
	assert.Equal(t, CodeNoContacts, GetCode(err))
	assert.True(t, Is(err, ErrNoContacts))
	assert.False(t, Is(err, ErrNotFound))
	assert.Equal(t, "assemble alert: no emergency contacts configured", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "x"))
	assert.Nil(t, Wrapf(nil, "x %d", 1))
	assert.Nil(t, WrapCode(nil, CodeInternal, "x"))
}

func TestWrapCodePlainError(t *testing.T) {
	err := WrapCode(io.EOF, CodeDispatchFailed, "launch sms")
	assert.True(t, Is(err, ErrDispatchFailed))
	assert.True(t, Is(err, io.EOF))
	assert.Equal(t, io.EOF, Cause(err))
}

func TestWithContextDoesNotMutateSentinel(t *testing.T) {
	e := ErrInvalidGeofence.WithContext("field", "radius")
	require.Len(t, e.Context, 1)
	assert.Empty(t, ErrInvalidGeofence.Context)
	assert.True(t, Is(e, ErrInvalidGeofence))

	e2 := e.WithContexts(map[string]string{"name": ""})
	assert.Len(t, e2.Context, 2)
	assert.Len(t, e.Context, 1)
}

func TestGetCodeWrappedByFmt(t *testing.T) {
	err := fmt.Errorf("outer: %w", WithCode(CodeNotFound, "missing"))
	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.Equal(t, "missing", GetMessage(err))
	assert.Equal(t, 0, GetCode(io.EOF))
}

func TestFormat(t *testing.T) {
	err := WithCodef(CodeInvalidInput, "bad %s", "radius")
	assert.Equal(t, "bad radius", fmt.Sprintf("%v", err))
	assert.Equal(t, `"bad radius"`, fmt.Sprintf("%q", err))
	assert.Contains(t, fmt.Sprintf("%+v", err), "bad radius")
}

func TestSameCodeDifferentMessage(t *testing.T) {
	timeout := WithCode(CodeLocationUnavailable, "location timeout")
	denied := WithCode(CodeLocationUnavailable, "location permission denied")

	assert.True(t, Is(timeout, ErrLocationUnavailable))
	assert.False(t, Is(timeout, denied))
	assert.True(t, Is(Wrap(timeout, "acquire"), timeout))
}
