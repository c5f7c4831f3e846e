package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in, cc, want string
	}{
		{"98765 43210", "+91", "+919876543210"},
		{"+1-555-123-4567", "+91", "+15551234567"},
		{"(022) 2345-6789", "+91", "+9102223456789"},
		{"5551234567", "1", "+15551234567"},
		{"", "+91", ""},
		{"  ", "+91", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizePhone(c.in, c.cc), c.in)
	}
}

func TestBuildURI(t *testing.T) {
	uri, err := BuildURI(ChannelTel, "100", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "tel:100", uri)

	uri, err = BuildURI(ChannelSMS, "+919876543210", "Help me & fast")
	require.NoError(t, err)
	assert.Equal(t, "sms:+919876543210?body=Help%20me%20%26%20fast", uri)

	uri, err = BuildURI(ChannelWhatsApp, "+919876543210", "a+b\nc")
	require.NoError(t, err)
	assert.Equal(t, "https://wa.me/919876543210?text=a%2Bb%0Ac", uri)

	_, err = BuildURI(ChannelSMS, "", "x")
	assert.Error(t, err)
	_, err = BuildURI(Channel("pigeon"), "1", "x")
	assert.Error(t, err)
}

func TestParseChannel(t *testing.T) {
	c, err := ParseChannel(" WhatsApp ")
	require.NoError(t, err)
	assert.Equal(t, ChannelWhatsApp, c)
	_, err = ParseChannel("email")
	assert.Error(t, err)
}

func TestIntentDispatcher(t *testing.T) {
	rec := &RecordingLauncher{}
	d := NewIntentDispatcher(rec)
	require.NoError(t, d.Dispatch(context.Background(), ChannelSMS, "+15551234567", "hi"))
	intents := rec.Intents()
	require.Len(t, intents, 1)
	assert.Equal(t, "sms:+15551234567?body=hi", intents[0].URI)

	assert.Error(t, NewIntentDispatcher(nil).Dispatch(context.Background(), ChannelTel, "100", ""))
}

func TestFallbackLauncher(t *testing.T) {
	rec := &RecordingLauncher{}
	failing := LauncherFunc(func(context.Context, Intent) error { return errors.New("no device") })
	f := FallbackLauncher{failing, nil, rec}
	require.NoError(t, f.Launch(context.Background(), Intent{URI: "tel:100"}))
	assert.Len(t, rec.Intents(), 1)

	assert.Error(t, FallbackLauncher{failing}.Launch(context.Background(), Intent{}))
	assert.Error(t, FallbackLauncher{}.Launch(context.Background(), Intent{}))
}
