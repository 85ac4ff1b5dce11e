// Package registry holds the set of CRM objects the broker may touch and the
// operations allowed on each.
package registry

import (
	"sort"
	"strings"

	"github.com/ajitpratap0/sfbridge/pkg/errors"
	stringpool "github.com/ajitpratap0/sfbridge/pkg/strings"
	"go.uber.org/zap"
)

// Operation is a broker capability applied to an object
type Operation string

const (
	OpDescribe Operation = "describe"
	OpExtract  Operation = "extract"
	OpLoad     Operation = "load"
	OpUpload   Operation = "upload"
)

// AllOperations lists every operation in a stable order
var AllOperations = []Operation{OpDescribe, OpExtract, OpLoad, OpUpload}

// ParseOperation validates an operation name, ignoring case
func ParseOperation(name string) (Operation, error) {
	for _, op := range AllOperations {
		if string(op) == foldName(name) {
			return op, nil
		}
	}
	return "", errors.New(errors.ErrorTypeConfig, stringpool.Sprintf("unknown operation %q", name))
}

// Registry is a read-only capability map. It is built once at startup and
// safe for concurrent use. Object names match case-insensitively, as they do
// in the CRM.
type Registry struct {
	objects map[string]map[Operation]struct{}
	names   map[string]string
	open    bool
}

// NewRegistry builds a registry from object name to operation names. An empty
// map yields an open registry that allows every object and operation.
func NewRegistry(objects map[string][]string, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		objects: make(map[string]map[Operation]struct{}, len(objects)),
		names:   make(map[string]string, len(objects)),
		open:    len(objects) == 0,
	}

	for name, ops := range objects {
		if foldName(name) == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "object name must not be empty")
		}
		key := foldName(name)
		set, ok := r.objects[key]
		if !ok {
			set = make(map[Operation]struct{}, len(AllOperations))
			r.objects[key] = set
			r.names[key] = name
		}
		if len(ops) == 0 {
			for _, op := range AllOperations {
				set[op] = struct{}{}
			}
		}
		for _, o := range ops {
			op, err := ParseOperation(o)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid object capability").
					WithDetail("object", name)
			}
			set[op] = struct{}{}
		}
	}

	if r.open {
		logger.Info("object registry open, all objects allowed")
	} else {
		logger.Info("object registry configured", zap.Strings("objects", r.Objects()))
	}
	return r, nil
}

// Check returns a capability error unless op is allowed on object
func (r *Registry) Check(object string, op Operation) error {
	if r == nil || r.open {
		return nil
	}

	ops, ok := r.objects[foldName(object)]
	if !ok {
		return errors.New(errors.ErrorTypeCapability,
			stringpool.Sprintf("object %s is not supported", object)).
			WithDetail("object", object)
	}
	if _, ok := ops[op]; !ok {
		return errors.New(errors.ErrorTypeCapability,
			stringpool.Sprintf("operation %s is not supported for object %s", op, object)).
			WithDetail("object", object).
			WithDetail("operation", string(op))
	}
	return nil
}

// IsOpen reports whether every object is allowed
func (r *Registry) IsOpen() bool {
	return r == nil || r.open
}

// Objects returns the configured object names, sorted
func (r *Registry) Objects() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.names))
	for _, name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Operations returns the operations allowed on object in AllOperations order
func (r *Registry) Operations(object string) []Operation {
	if r.IsOpen() {
		return append([]Operation(nil), AllOperations...)
	}
	set := r.objects[foldName(object)]
	ops := make([]Operation, 0, len(set))
	for _, op := range AllOperations {
		if _, ok := set[op]; ok {
			ops = append(ops, op)
		}
	}
	return ops
}

func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
