package models

import (
	"math"
	"testing"

	"SafeCircle/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestLocationFixValid(t *testing.T) {
	assert.True(t, LocationFix{Latitude: 12.97, Longitude: 77.59, Accuracy: 5}.Valid())
	assert.True(t, LocationFix{Latitude: -90, Longitude: 180}.Valid())
	assert.False(t, LocationFix{Latitude: math.NaN(), Longitude: 0}.Valid())
	assert.False(t, LocationFix{Latitude: 0, Longitude: math.Inf(1)}.Valid())
	assert.False(t, LocationFix{Latitude: 91, Longitude: 0}.Valid())
	assert.False(t, LocationFix{Latitude: 0, Longitude: -180.5}.Valid())
	assert.False(t, LocationFix{Latitude: 0, Longitude: 0, Accuracy: -1}.Valid())
}

func TestMapsAndRouteURL(t *testing.T) {
	fix := LocationFix{Latitude: 12.9716, Longitude: 77.5946}
	assert.Equal(t, "https://maps.google.com/?q=12.9716,77.5946", fix.MapsURL())
	assert.Equal(t, "https://maps.google.com/?q=0.00001,-3", MapsURL(0.00001, -3))
	assert.Equal(t,
		"https://www.google.com/maps/dir/?api=1&origin=1.5,2&destination=MG+Road&travelmode=walking",
		RouteURL(LatLng{Lat: 1.5, Lng: 2}, "MG Road"))
}

func TestKindFor(t *testing.T) {
	assert.Equal(t, KindSOS, KindFor(EmergencyTrigger{Source: SourceShake}))
	assert.Equal(t, KindSOS, KindFor(EmergencyTrigger{Source: SourceHardwareButton}))
	assert.Equal(t, KindGeofence, KindFor(EmergencyTrigger{Source: SourceGeofenceEnterAlert}))
	assert.Equal(t, KindJourneyOverdue, KindFor(EmergencyTrigger{Source: SourceJourneyTimeout}))
	assert.Equal(t, KindCheckInMissed, KindFor(EmergencyTrigger{Source: SourceCheckInTimeout}))
	assert.Equal(t, KindSilent, KindFor(EmergencyTrigger{Source: SourceManual, Kind: KindSilent}))
	assert.True(t, SourceShake.Passive())
	assert.False(t, SourceManual.Passive())
	assert.False(t, TriggerSource("bluetooth").Valid())
}

func TestGeofenceValidate(t *testing.T) {
	ok := Geofence{Name: "Home", Center: LatLng{Lat: 1, Lng: 1}, RadiusMeters: 100, Kind: GeofenceSafe}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.RadiusMeters = 0
	assert.True(t, errors.Is(bad.Validate(), errors.ErrInvalidGeofence))

	bad = ok
	bad.RadiusMeters = math.NaN()
	assert.Error(t, bad.Validate())

	bad = ok
	bad.Name = "  "
	assert.True(t, errors.Is(bad.Validate(), errors.ErrInvalidGeofence))

	bad = ok
	bad.Kind = "danger"
	assert.Error(t, bad.Validate())
}

func TestProfileSnapshotIsCopy(t *testing.T) {
	p := Profile{Name: "Asha", EmergencyContacts: []Contact{{ID: "1", Name: "Mom", Group: "family"}, {ID: "2", Name: "Ravi"}}}
	s := p.Snapshot()
	s.EmergencyContacts[0].Name = "changed"
	assert.Equal(t, "Mom", p.EmergencyContacts[0].Name)
	assert.Len(t, p.ContactsInGroup("FAMILY"), 1)
	assert.Len(t, p.ContactsInGroup(""), 2)
	assert.Equal(t, "SafeCircle user", Profile{}.DisplayName())
}

func TestJourneyAndShareTimer(t *testing.T) {
	j := JourneyTracking{Active: true, StartTime: 1000, EtaMs: 500}
	assert.Equal(t, int64(1500), j.Deadline())
	assert.Equal(t, int64(0), JourneyTracking{}.Deadline())

	s := ShareTimer{Active: true, EndTime: 2000}
	assert.Equal(t, int64(500), s.Remaining(1500))
	assert.Equal(t, int64(0), s.Remaining(2500))
}
