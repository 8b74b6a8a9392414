package charm

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestKind_IsValid checks that lifecycle, relation, and pebble-ready kinds
// are all recognized, and arbitrary strings are not.
func TestKind_IsValid(t *testing.T) {
	assert.True(t, KindInstall.IsValid())
	assert.True(t, KindLeaderSettingsChanged.IsValid())
	assert.True(t, KindRelationChanged.IsValid())
	assert.True(t, KindPebbleReady.IsValid())
	assert.False(t, Kind("collect-metrics").IsValid())
	assert.False(t, Kind("").IsValid())
}

// TestKind_IsRelation verifies that exactly the five relation verbs count
// as relation kinds.
func TestKind_IsRelation(t *testing.T) {
	relationKinds := []Kind{
		KindRelationCreated, KindRelationJoined, KindRelationChanged,
		KindRelationDeparted, KindRelationBroken,
	}
	for _, kind := range relationKinds {
		assert.True(t, kind.IsRelation(), "kind %q", kind)
	}
	assert.False(t, KindInstall.IsRelation())
	assert.False(t, KindPebbleReady.IsRelation())
}

// TestParseHookName covers the three naming families Juju dispatches:
// lifecycle hooks verbatim, "<endpoint>-relation-<verb>", and
// "<container>-pebble-ready". Endpoint and container names may themselves
// contain dashes.
func TestParseHookName(t *testing.T) {
	tests := []struct {
		name     string
		expected Event
	}{
		{"install", Event{Kind: KindInstall, RelationID: -1}},
		{"config-changed", Event{Kind: KindConfigChanged, RelationID: -1}},
		{"leader-elected", Event{Kind: KindLeaderElected, RelationID: -1}},
		{"db-relation-created", Event{Kind: KindRelationCreated, Relation: "db", RelationID: -1}},
		{"db-relation-joined", Event{Kind: KindRelationJoined, Relation: "db", RelationID: -1}},
		{"k8s-svc-info-relation-changed", Event{Kind: KindRelationChanged, Relation: "k8s-svc-info", RelationID: -1}},
		{"k8s-svc-info-relation-departed", Event{Kind: KindRelationDeparted, Relation: "k8s-svc-info", RelationID: -1}},
		{"k8s-svc-info-relation-broken", Event{Kind: KindRelationBroken, Relation: "k8s-svc-info", RelationID: -1}},
		{"some-container-pebble-ready", Event{Kind: KindPebbleReady, Workload: "some-container", RelationID: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseHookName(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ev)
		})
	}
}

// TestParseHookName_Errors verifies the two failure modes: an empty name
// is a plain error, and a well-formed but unmodeled hook wraps
// ErrUnknownHook so dispatch can skip it instead of failing.
func TestParseHookName_Errors(t *testing.T) {
	t.Run("empty name", func(t *testing.T) {
		_, err := ParseHookName("")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnknownHook))
	})

	t.Run("unknown hook", func(t *testing.T) {
		_, err := ParseHookName("collect-metrics")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownHook))
		assert.Contains(t, err.Error(), `"collect-metrics"`)
	})

	// "-relation-changed" with nothing before it has no endpoint.
	t.Run("bare relation suffix", func(t *testing.T) {
		_, err := ParseHookName("-relation-changed")
		assert.True(t, errors.Is(err, ErrUnknownHook))
	})
}

// TestEvent_HookName verifies the inverse of ParseHookName for every
// naming family, so deferred events replay under their original names.
func TestEvent_HookName(t *testing.T) {
	tests := []struct {
		event    Event
		expected string
	}{
		{Event{Kind: KindStart}, "start"},
		{Event{Kind: KindUpdateStatus}, "update-status"},
		{Event{Kind: KindRelationChanged, Relation: "k8s-svc-info"}, "k8s-svc-info-relation-changed"},
		{Event{Kind: KindRelationBroken, Relation: "db"}, "db-relation-broken"},
		{Event{Kind: KindPebbleReady, Workload: "some-container"}, "some-container-pebble-ready"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.event.HookName())
		})
	}
}

// TestEvent_Defer checks that Defer returns the sentinel the dispatcher
// matches on.
func TestEvent_Defer(t *testing.T) {
	ev := Event{Kind: KindConfigChanged}
	assert.True(t, errors.Is(ev.Defer(), ErrDefer))
}

// TestEvent_JSONRoundTrip verifies the persisted form used by the deferral
// queue survives a round trip with all relation context intact.
func TestEvent_JSONRoundTrip(t *testing.T) {
	original := Event{
		Kind:       KindRelationChanged,
		Relation:   "k8s-svc-info",
		RelationID: 3,
		RemoteApp:  "provider-app",
		RemoteUnit: "provider-app/1",
	}

	payload, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, original, decoded)
}
