package testutil

import "github.com/specialistvlad/gridbench/internal/registry"

// SimpleModule is a test helper for registering a single model factory.
type SimpleModule struct {
	Name    string
	Factory registry.Factory
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) {
	if m.Name != "" && m.Factory != nil {
		r.RegisterModel(m.Name, m.Factory)
	}
}
