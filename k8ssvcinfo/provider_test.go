package k8ssvcinfo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charmed-mlops/mlops-libs/charm"
	"github.com/charmed-mlops/mlops-libs/charmtest"
)

const providerMetaYAML = `
name: provider-test-charm
provides:
  k8s-svc-info:
    interface: k8s-service
`

// localApp is the application whose databag the provider writes.
const localApp = "provider-test-charm"

// beginProvider starts a harness around a charm that wires a Provider
// during registration.
func beginProvider(t *testing.T, h *charmtest.Harness, info ServiceInfo, opts ...Option) *Provider {
	t.Helper()
	var prov *Provider
	h.Begin(func(c *charm.Charm) error {
		var err error
		prov, err = NewProvider(c, info, opts...)
		return err
	})
	require.NotNil(t, prov)
	return prov
}

// TestNewProvider_Validation verifies the service info must validate and
// the endpoint must be declared under provides in metadata.
func TestNewProvider_Validation(t *testing.T) {
	t.Run("invalid service info", func(t *testing.T) {
		h := charmtest.NewHarness(t, providerMetaYAML)
		h.Begin(func(c *charm.Charm) error {
			_, err := NewProvider(c, ServiceInfo{Port: "7878"})
			assert.EqualError(t, err, "invalid service info: service name is empty")
			return nil
		})
	})

	t.Run("declared as requires", func(t *testing.T) {
		h := charmtest.NewHarness(t, requirerMetaYAML)
		h.Begin(func(c *charm.Charm) error {
			_, err := NewProvider(c, ServiceInfo{Name: "some-svc", Port: "7878"})
			assert.EqualError(t, err, `endpoint "k8s-svc-info" is not declared under provides in metadata`)
			return nil
		})
	})
}

// TestProvider_PublishesOnRelationCreated verifies the announcement lands
// in the application databag as soon as a relation is established, with
// no further involvement from the charm.
func TestProvider_PublishesOnRelationCreated(t *testing.T) {
	h := charmtest.NewHarness(t, providerMetaYAML)
	h.SetLeader(true)
	beginProvider(t, h, ServiceInfo{Name: "some-svc", Port: "7878"})

	id := h.AddRelation(DefaultRelationName, "app")

	assert.Equal(t, map[string]string{
		"name": "some-svc",
		"port": "7878",
	}, h.RelationData(id, localApp))
}

// TestProvider_NonLeaderSkipsPublish verifies automatic publishes are
// silent no-ops on a non-leader and resume once leadership arrives.
func TestProvider_NonLeaderSkipsPublish(t *testing.T) {
	h := charmtest.NewHarness(t, providerMetaYAML)
	beginProvider(t, h, ServiceInfo{Name: "some-svc", Port: "7878"})

	id := h.AddRelation(DefaultRelationName, "app")
	assert.Empty(t, h.RelationData(id, localApp))

	// leader-elected triggers the publish the earlier events skipped.
	h.SetLeader(true)
	assert.Equal(t, map[string]string{
		"name": "some-svc",
		"port": "7878",
	}, h.RelationData(id, localApp))
}

// TestProvider_Send verifies an explicit Send updates every established
// relation and that later automatic publishes carry the new details.
func TestProvider_Send(t *testing.T) {
	h := charmtest.NewHarness(t, providerMetaYAML)
	h.SetLeader(true)
	prov := beginProvider(t, h, ServiceInfo{Name: "some-svc", Port: "7878"})

	first := h.AddRelation(DefaultRelationName, "app")
	second := h.AddRelation(DefaultRelationName, "app2")

	err := prov.Send(context.Background(), ServiceInfo{Name: "renamed-svc", Port: "9999"})
	require.NoError(t, err)

	want := map[string]string{"name": "renamed-svc", "port": "9999"}
	assert.Equal(t, want, h.RelationData(first, localApp))
	assert.Equal(t, want, h.RelationData(second, localApp))

	// A relation established after Send sees the new details too.
	third := h.AddRelation(DefaultRelationName, "app3")
	assert.Equal(t, want, h.RelationData(third, localApp))
}

// TestProvider_Send_NoRelations verifies Send succeeds with nothing
// related; the details are kept for relations established later.
func TestProvider_Send_NoRelations(t *testing.T) {
	h := charmtest.NewHarness(t, providerMetaYAML)
	h.SetLeader(true)
	prov := beginProvider(t, h, ServiceInfo{Name: "some-svc", Port: "7878"})

	err := prov.Send(context.Background(), ServiceInfo{Name: "renamed-svc", Port: "9999"})
	require.NoError(t, err)

	id := h.AddRelation(DefaultRelationName, "app")
	assert.Equal(t, map[string]string{
		"name": "renamed-svc",
		"port": "9999",
	}, h.RelationData(id, localApp))
}

// TestProvider_Send_NotLeader verifies an explicit Send on a non-leader
// is an error, unlike the silent automatic publishes.
func TestProvider_Send_NotLeader(t *testing.T) {
	h := charmtest.NewHarness(t, providerMetaYAML)
	prov := beginProvider(t, h, ServiceInfo{Name: "some-svc", Port: "7878"})

	id := h.AddRelation(DefaultRelationName, "app")

	err := prov.Send(context.Background(), ServiceInfo{Name: "renamed-svc", Port: "9999"})
	require.ErrorIs(t, err, charm.ErrNotLeader)
	assert.EqualError(t, err, "cannot send service info: unit is not the leader")
	assert.Empty(t, h.RelationData(id, localApp))
}

// TestProvider_Send_InvalidInfo verifies Send validates before touching
// any databag.
func TestProvider_Send_InvalidInfo(t *testing.T) {
	h := charmtest.NewHarness(t, providerMetaYAML)
	h.SetLeader(true)
	prov := beginProvider(t, h, ServiceInfo{Name: "some-svc", Port: "7878"})

	id := h.AddRelation(DefaultRelationName, "app")

	err := prov.Send(context.Background(), ServiceInfo{Name: "some-svc", Port: "http"})
	assert.EqualError(t, err, `invalid service info: service port "http" is not a number`)

	// The previous announcement stays in place.
	assert.Equal(t, map[string]string{
		"name": "some-svc",
		"port": "7878",
	}, h.RelationData(id, localApp))
}

// TestProvider_RefreshEvents verifies extra publish triggers, both hook
// kinds and relation kinds:
//   - upgrade-charm republishes after the databag was wiped
//   - relation-changed republishes when the remote side writes
func TestProvider_RefreshEvents(t *testing.T) {
	t.Run("hook kind", func(t *testing.T) {
		h := charmtest.NewHarness(t, providerMetaYAML)
		h.SetLeader(true)
		beginProvider(t, h, ServiceInfo{Name: "some-svc", Port: "7878"},
			WithRefreshEvents(charm.KindUpgradeCharm))

		id := h.AddRelation(DefaultRelationName, "app")
		h.UpdateRelationData(id, localApp, map[string]string{"name": "", "port": ""})
		assert.Empty(t, h.RelationData(id, localApp))

		h.EmitHook(charm.KindUpgradeCharm)
		assert.Equal(t, map[string]string{
			"name": "some-svc",
			"port": "7878",
		}, h.RelationData(id, localApp))
	})

	t.Run("relation kind", func(t *testing.T) {
		h := charmtest.NewHarness(t, providerMetaYAML)
		h.SetLeader(true)
		beginProvider(t, h, ServiceInfo{Name: "some-svc", Port: "7878"},
			WithRefreshEvents(charm.KindRelationChanged))

		id := h.AddRelation(DefaultRelationName, "app")
		h.UpdateRelationData(id, localApp, map[string]string{"name": "", "port": ""})
		assert.Empty(t, h.RelationData(id, localApp))

		h.UpdateRelationData(id, "app", map[string]string{"ready": "true"})
		assert.Equal(t, map[string]string{
			"name": "some-svc",
			"port": "7878",
		}, h.RelationData(id, localApp))
	})
}

// TestProvider_RelationName verifies the configured endpoint is reported.
func TestProvider_RelationName(t *testing.T) {
	h := charmtest.NewHarness(t, `
name: provider-test-charm
provides:
  svc-info:
    interface: k8s-service
`)
	prov := beginProvider(t, h, ServiceInfo{Name: "some-svc", Port: "7878"},
		WithRelationName("svc-info"))
	assert.Equal(t, "svc-info", prov.RelationName())
}
