package capability

import (
	"testing"

	"SafeCircle/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	uaAndroid = "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	uaIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaDesktop = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type fakeDevices map[string]map[string]interface{}

func (f fakeDevices) Capabilities(id string) (map[string]interface{}, bool) {
	if id == "" {
		for _, caps := range f {
			return caps, true
		}
		return nil, false
	}
	caps, ok := f[id]
	return caps, ok
}

func TestFromUserAgent(t *testing.T) {
	android := FromUserAgent(uaAndroid)
	assert.True(t, android.Mobile)
	assert.True(t, android.Supports(FeatureShake))
	assert.True(t, android.Supports(FeatureVibration))
	assert.False(t, android.Supports(FeatureButtons))

	iphone := FromUserAgent(uaIPhone)
	assert.True(t, iphone.Mobile)
	assert.False(t, iphone.Supports(FeatureVibration))

	desktop := FromUserAgent(uaDesktop)
	assert.False(t, desktop.Mobile)
	assert.True(t, desktop.Supports(FeatureGeolocation))
	err := desktop.Require(FeatureShake)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPlatformUnsupported)
	assert.Contains(t, desktop.Hidden(), FeatureShake)
}

func TestProberMergesDeviceHello(t *testing.T) {
	p := NewProber(fakeDevices{"phone": {"shake": true, "hardware_buttons": true, "vibration": false}})

	r := p.Probe(uaDesktop, "phone")
	assert.True(t, r.DeviceConnected)
	assert.NoError(t, r.Require(FeatureShake))
	assert.NoError(t, r.Require(FeatureButtons))
	assert.True(t, r.Supports(FeatureIntents))
	assert.False(t, r.Supports(FeatureVibration))

	r = p.Probe(uaDesktop, "tablet")
	assert.False(t, r.DeviceConnected)
	assert.False(t, r.Supports(FeatureButtons))

	var nilProber *Prober
	assert.False(t, nilProber.Probe(uaAndroid, "").DeviceConnected)
}
