package pebble

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Override is a service's layering policy: what happens when a layer
// defines a service that a lower layer already defines.
type Override string

const (
	// OverrideReplace discards the lower layer's definition entirely.
	OverrideReplace Override = "replace"

	// OverrideMerge keeps the lower definition and overlays the fields
	// this layer sets.
	OverrideMerge Override = "merge"
)

// String returns the string representation of the Override.
func (o Override) String() string {
	return string(o)
}

// IsValid checks whether the Override is one of the defined policies.
func (o Override) IsValid() bool {
	return o == OverrideReplace || o == OverrideMerge
}

// Service is one service definition inside a layer or plan.
type Service struct {
	// Override is this entry's layering policy. Required whenever the
	// service already exists in a lower layer.
	Override Override `yaml:"override,omitempty"`

	Summary     string `yaml:"summary,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Startup is "enabled" to include the service in autostart,
	// "disabled" otherwise.
	Startup string `yaml:"startup,omitempty"`

	// Command is the command line Pebble runs for this service.
	Command string `yaml:"command,omitempty"`

	// After, Before, and Requires order and couple services within a plan.
	After    []string `yaml:"after,omitempty"`
	Before   []string `yaml:"before,omitempty"`
	Requires []string `yaml:"requires,omitempty"`

	// Environment is added to the service process environment.
	Environment map[string]string `yaml:"environment,omitempty"`

	// User and Group run the service under a different identity.
	User  string `yaml:"user,omitempty"`
	Group string `yaml:"group,omitempty"`

	// WorkingDir is the service's working directory.
	WorkingDir string `yaml:"working-dir,omitempty"`
}

// copy returns an independent copy of the service definition.
func (s *Service) copy() *Service {
	out := *s
	out.After = append([]string(nil), s.After...)
	out.Before = append([]string(nil), s.Before...)
	out.Requires = append([]string(nil), s.Requires...)
	if s.Environment != nil {
		out.Environment = make(map[string]string, len(s.Environment))
		for k, v := range s.Environment {
			out.Environment[k] = v
		}
	}
	return &out
}

// mergeFrom overlays the fields set in other onto s. Scalar fields are
// replaced when non-empty, list fields are appended, and environment
// entries are merged key by key.
func (s *Service) mergeFrom(other *Service) {
	if other.Summary != "" {
		s.Summary = other.Summary
	}
	if other.Description != "" {
		s.Description = other.Description
	}
	if other.Startup != "" {
		s.Startup = other.Startup
	}
	if other.Command != "" {
		s.Command = other.Command
	}
	s.After = append(s.After, other.After...)
	s.Before = append(s.Before, other.Before...)
	s.Requires = append(s.Requires, other.Requires...)
	if len(other.Environment) > 0 {
		if s.Environment == nil {
			s.Environment = make(map[string]string, len(other.Environment))
		}
		for k, v := range other.Environment {
			s.Environment[k] = v
		}
	}
	if other.User != "" {
		s.User = other.User
	}
	if other.Group != "" {
		s.Group = other.Group
	}
	if other.WorkingDir != "" {
		s.WorkingDir = other.WorkingDir
	}
}

// Layer is one YAML layer of service definitions.
type Layer struct {
	Summary     string              `yaml:"summary,omitempty"`
	Description string              `yaml:"description,omitempty"`
	Services    map[string]*Service `yaml:"services,omitempty"`
}

// ParseLayer parses a layer from YAML and validates its override values.
func ParseLayer(data []byte) (*Layer, error) {
	var layer Layer
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return nil, fmt.Errorf("parse layer: %w", err)
	}
	for name, svc := range layer.Services {
		if svc == nil {
			return nil, fmt.Errorf("layer service %q is empty", name)
		}
		if svc.Override != "" && !svc.Override.IsValid() {
			return nil, fmt.Errorf("layer service %q has invalid override %q (valid: replace, merge)", name, svc.Override)
		}
	}
	return &layer, nil
}

// YAML serializes the layer for transport to Pebble.
func (l *Layer) YAML() ([]byte, error) {
	data, err := yaml.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode layer: %w", err)
	}
	return data, nil
}

// Plan is the effective configuration after combining all layers.
type Plan struct {
	Services map[string]*Service `yaml:"services,omitempty"`
}

// ParsePlan parses a plan from the YAML form Pebble returns.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return &plan, nil
}

// CombineLayers flattens layers (lowest first) into a plan using each
// service's override policy. A service appearing for the first time may
// omit its override; overriding an existing service without a policy is
// an error, matching Pebble's own plan validation.
func CombineLayers(layers ...*Layer) (*Plan, error) {
	plan := &Plan{Services: make(map[string]*Service)}

	for _, layer := range layers {
		for name, svc := range layer.Services {
			existing, exists := plan.Services[name]

			switch svc.Override {
			case OverrideReplace:
				plan.Services[name] = svc.copy()
			case OverrideMerge:
				if !exists {
					plan.Services[name] = svc.copy()
					continue
				}
				existing.mergeFrom(svc)
			case "":
				if exists {
					return nil, fmt.Errorf("service %q redefined without an override policy", name)
				}
				plan.Services[name] = svc.copy()
			default:
				return nil, fmt.Errorf("service %q has invalid override %q (valid: replace, merge)", name, svc.Override)
			}
		}
	}
	return plan, nil
}
