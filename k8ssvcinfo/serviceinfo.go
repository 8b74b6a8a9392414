package k8ssvcinfo

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

const (
	// DefaultRelationName is the endpoint name charms conventionally use
	// for this interface. Both ends must agree on it.
	DefaultRelationName = "k8s-svc-info"

	// InterfaceName is the interface both ends declare in metadata.yaml.
	InterfaceName = "k8s-service"

	keyName = "name"
	keyPort = "port"
)

// requiredKeys lists the databag keys a complete announcement carries,
// in the order validation reports them.
var requiredKeys = []string{keyName, keyPort}

// serviceNameRegex matches DNS-1035 labels, the character set Kubernetes
// enforces for Service names.
var serviceNameRegex = regexp.MustCompile(`^[a-z]([-a-z0-9]*[a-z0-9])?$`)

// ServiceInfo is the shared description of a Kubernetes Service.
type ServiceInfo struct {
	// Name is the Service name as it appears in the resource metadata,
	// e.g. "metadata-grpc-service".
	Name string `json:"name" yaml:"name"`

	// Port is the Service port. Databags carry only strings, so the
	// port stays a string throughout.
	Port string `json:"port" yaml:"port"`
}

// Validate checks that the info describes a Service Kubernetes could
// actually hold: a DNS-1035 label name and a port in 1-65535.
func (si ServiceInfo) Validate() error {
	if si.Name == "" {
		return errors.New("service name is empty")
	}
	if len(si.Name) > 63 || !serviceNameRegex.MatchString(si.Name) {
		return fmt.Errorf("service name %q is not a valid DNS-1035 label", si.Name)
	}

	port, err := strconv.Atoi(si.Port)
	if err != nil {
		return fmt.Errorf("service port %q is not a number", si.Port)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("service port %d is out of range (1-65535)", port)
	}
	return nil
}

// bag renders the info in databag form.
func (si ServiceInfo) bag() map[string]string {
	return map[string]string{
		keyName: si.Name,
		keyPort: si.Port,
	}
}

// infoFromBag extracts service info from a databag along with the
// required keys it is missing.
func infoFromBag(bag map[string]string) (ServiceInfo, []string) {
	var missing []string
	for _, key := range requiredKeys {
		if _, ok := bag[key]; !ok {
			missing = append(missing, key)
		}
	}
	return ServiceInfo{Name: bag[keyName], Port: bag[keyPort]}, missing
}
