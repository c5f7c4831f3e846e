package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvGetters(t *testing.T) {
	t.Setenv("SC_INT", "42")
	t.Setenv("SC_BOOL", "true")
	t.Setenv("SC_FLOAT", "12.5")
	t.Setenv("SC_DUR", "1500ms")
	t.Setenv("SC_BAD", "abc")

	assert.Equal(t, int64(42), GetIntEnv("SC_INT"))
	assert.True(t, GetBoolEnv("SC_BOOL"))
	assert.Equal(t, 12.5, GetFloatEnv("SC_FLOAT", 1))
	assert.Equal(t, 3.0, GetFloatEnv("SC_BAD", 3))
	assert.Equal(t, 1500*time.Millisecond, GetDurationEnv("SC_DUR", time.Second))
	assert.Equal(t, time.Second, GetDurationEnv("SC_MISSING", time.Second))
	assert.Equal(t, "def", GetEnvOr("SC_MISSING", "def"))
}

func TestSignalsConnectEmit(t *testing.T) {
	s := NewSignals()
	var got []string
	off := s.Connect("alert", func(sender any, params ...any) {
		got = append(got, sender.(string))
	})
	s.Connect("alert", func(sender any, params ...any) {
		panic("boom")
	})
	s.Connect("alert", func(sender any, params ...any) {
		got = append(got, "second")
	})

	s.Emit("alert", "first")
	assert.Equal(t, []string{"first", "second"}, got)

	off()
	off()
	s.Emit("alert", "again")
	assert.Equal(t, []string{"first", "second", "second"}, got)

	s.Emit("unknown", nil)
}

func TestInitDatabaseMemory(t *testing.T) {
	db, err := InitDatabase("", "file::memory:", false)
	require.NoError(t, err)
	require.NoError(t, db.Exec("select 1").Error)
}
