package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContact(t *testing.T) {
	c, err := parseContact(" Mom : 98765 43210 ")
	require.NoError(t, err)
	assert.Equal(t, "Mom", c.Name)
	assert.Equal(t, "98765 43210", c.Phone)

	_, err = parseContact("no-separator")
	assert.Error(t, err)
}

func TestRunDrill(t *testing.T) {
	var out bytes.Buffer
	err := runDrill(context.Background(), drillOptions{
		name:     "Asha",
		contacts: []string{"Mom:98765 43210", "Nobody:---"},
		kind:     "panic",
		channel:  "sms",
		lat:      19.076,
		lng:      72.8777,
		locale:   "en",
	}, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, `from "Asha"`)
	assert.Contains(t, text, "maps.google.com")
	assert.Contains(t, text, "sent")
	assert.Contains(t, text, "unavailable")
	assert.Contains(t, text, "sms:+919876543210")
}

func TestRunDrillRejectsKind(t *testing.T) {
	err := runDrill(context.Background(), drillOptions{
		contacts: []string{"Mom:98765 43210"},
		kind:     "share",
		channel:  "whatsapp",
		locale:   "en",
	}, &bytes.Buffer{})
	assert.Error(t, err)
}
