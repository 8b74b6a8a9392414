package charm

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// RelationRole says which side of a relation an endpoint sits on.
type RelationRole string

const (
	// RoleProvider is an endpoint listed under "provides:".
	RoleProvider RelationRole = "provider"

	// RoleRequirer is an endpoint listed under "requires:".
	RoleRequirer RelationRole = "requirer"

	// RolePeer is an endpoint listed under "peers:".
	RolePeer RelationRole = "peer"

	// RoleNone means the endpoint is not declared in the metadata.
	RoleNone RelationRole = ""
)

// Endpoint describes one relation endpoint from metadata.yaml.
type Endpoint struct {
	// Interface is the relation interface name both ends must agree on,
	// e.g. "k8s-service".
	Interface string `yaml:"interface"`

	// Limit caps how many relations Juju will establish on this endpoint.
	// Zero means unlimited.
	Limit int `yaml:"limit,omitempty"`

	// Optional marks the relation as not required for the charm to work.
	Optional bool `yaml:"optional,omitempty"`
}

// ContainerMeta describes one workload container from metadata.yaml.
type ContainerMeta struct {
	// Resource is the OCI image resource backing the container.
	Resource string `yaml:"resource,omitempty"`
}

// Meta is the parsed charm metadata.yaml. Only the fields this substrate
// acts on are modeled; unknown fields are ignored on parse.
type Meta struct {
	Name        string                   `yaml:"name"`
	Summary     string                   `yaml:"summary,omitempty"`
	Description string                   `yaml:"description,omitempty"`
	Provides    map[string]Endpoint      `yaml:"provides,omitempty"`
	Requires    map[string]Endpoint      `yaml:"requires,omitempty"`
	Peers       map[string]Endpoint      `yaml:"peers,omitempty"`
	Containers  map[string]ContainerMeta `yaml:"containers,omitempty"`
}

// metaNameRegex validates charm names, endpoint names, and interface
// names: lowercase alphanumerics in dash-separated runs, starting with
// a letter.
var metaNameRegex = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// ParseMeta parses and validates charm metadata from YAML. The test
// harness accepts the same YAML string form, so charm and library tests
// can declare their endpoints inline.
func ParseMeta(data []byte) (*Meta, error) {
	var meta Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadMeta reads and parses <charmDir>/metadata.yaml.
func LoadMeta(charmDir string) (*Meta, error) {
	path := filepath.Join(charmDir, "metadata.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read charm metadata: %w", err)
	}
	meta, err := ParseMeta(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return meta, nil
}

// Validate checks the structural rules Juju enforces on charm metadata:
// a valid charm name, well-formed endpoint and interface names, no
// endpoint declared in more than one role section, and non-negative
// relation limits.
func (m *Meta) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("metadata: charm name must not be empty")
	}
	if !metaNameRegex.MatchString(m.Name) {
		return fmt.Errorf("metadata: invalid charm name %q: must be lowercase alphanumerics and dashes, starting with a letter", m.Name)
	}

	seen := map[string]RelationRole{}
	sections := []struct {
		role      RelationRole
		endpoints map[string]Endpoint
	}{
		{RoleProvider, m.Provides},
		{RoleRequirer, m.Requires},
		{RolePeer, m.Peers},
	}
	for _, section := range sections {
		for name, ep := range section.endpoints {
			if !metaNameRegex.MatchString(name) {
				return fmt.Errorf("metadata: invalid endpoint name %q", name)
			}
			if other, dup := seen[name]; dup {
				return fmt.Errorf("metadata: endpoint %q declared as both %s and %s", name, other, section.role)
			}
			seen[name] = section.role

			if ep.Interface == "" {
				return fmt.Errorf("metadata: endpoint %q has no interface", name)
			}
			if !metaNameRegex.MatchString(ep.Interface) {
				return fmt.Errorf("metadata: endpoint %q has invalid interface %q", name, ep.Interface)
			}
			if ep.Limit < 0 {
				return fmt.Errorf("metadata: endpoint %q has negative limit %d", name, ep.Limit)
			}
		}
	}

	for name := range m.Containers {
		if !metaNameRegex.MatchString(name) {
			return fmt.Errorf("metadata: invalid container name %q", name)
		}
	}

	return nil
}

// Endpoint looks up a relation endpoint by name across all three role
// sections. The third return value reports whether the endpoint exists.
func (m *Meta) Endpoint(name string) (Endpoint, RelationRole, bool) {
	if ep, ok := m.Provides[name]; ok {
		return ep, RoleProvider, true
	}
	if ep, ok := m.Requires[name]; ok {
		return ep, RoleRequirer, true
	}
	if ep, ok := m.Peers[name]; ok {
		return ep, RolePeer, true
	}
	return Endpoint{}, RoleNone, false
}

// Role returns the role of the named endpoint, or RoleNone when the
// endpoint is not declared.
func (m *Meta) Role(name string) RelationRole {
	_, role, _ := m.Endpoint(name)
	return role
}
