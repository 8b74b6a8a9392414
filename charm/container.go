package charm

import (
	"context"

	"github.com/charmed-mlops/mlops-libs/charm/pebble"
)

// Container ties a workload container declared in metadata to its Pebble
// daemon. Handlers for pebble-ready events obtain one via
// Charm.Container and talk to the workload through its Pebble client.
type Container struct {
	// Name is the container name from metadata.yaml.
	Name string

	// Meta is the container's metadata entry.
	Meta ContainerMeta
}

// Pebble returns a client for the container's Pebble daemon, connected
// over the per-container socket the agent mounts into the charm
// container.
func (c *Container) Pebble() (*pebble.Client, error) {
	return pebble.NewClient(c.Name)
}

// CanConnect reports whether the container's Pebble daemon is up and
// responding. It is a convenience for guards in handlers that may fire
// before the workload container is ready.
func (c *Container) CanConnect(ctx context.Context) bool {
	client, err := c.Pebble()
	if err != nil {
		return false
	}
	defer func() { _ = client.Close() }()
	return client.Ping(ctx) == nil
}
