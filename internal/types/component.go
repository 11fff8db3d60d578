// Package types provides the data model shared by the registry, resolver,
// preview and server packages. It exists to avoid import cycles between them.
package types

import "time"

// GeneratedIDPrefix marks identifiers minted by the registry. Identifiers
// without it are treated as names by the resolver's fallback matching.
const GeneratedIDPrefix = "comp_"

// ComponentEntry is one generated component in the registry.
type ComponentEntry struct {
	// ID is opaque and never reassigned once created.
	ID string `json:"id" yaml:"id"`
	// Name is the display name chosen by the generator
	Name string `json:"name" yaml:"name"`
	// Filename is the sanitized source file name, e.g. "LoginScreen.tsx"
	Filename  string    `json:"filename" yaml:"filename"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	Prompt    string    `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	ThreadID  string    `json:"threadId,omitempty" yaml:"threadId,omitempty"`
}

// Registry is the persisted index of generated components.
type Registry struct {
	// Components are kept in creation order.
	Components      []ComponentEntry `json:"components"`
	LastUpdated     time.Time        `json:"lastUpdated"`
	ActiveComponent *string          `json:"activeComponent"`
}

// Find returns the entry with the given id.
func (r *Registry) Find(id string) (*ComponentEntry, bool) {
	for i := range r.Components {
		if r.Components[i].ID == id {
			return &r.Components[i], true
		}
	}
	return nil, false
}

// Active returns the active component id, or "" when none is set.
func (r *Registry) Active() string {
	if r.ActiveComponent == nil {
		return ""
	}
	return *r.ActiveComponent
}

// ComponentWithCode is an entry together with its source text, as returned
// by the registry API when code is requested.
type ComponentWithCode struct {
	ComponentEntry
	Code string `json:"code"`
	// Hash is the hex xxh3 fingerprint of Code; pollers use it with Length
	// to skip unchanged bodies.
	Hash   string `json:"hash"`
	Length int    `json:"length"`
}

// NewComponent describes a component to be created in the registry.
type NewComponent struct {
	Name     string
	Code     string
	Prompt   string
	ThreadID string
}

// ComponentPatch describes an update. Nil fields are left unchanged.
type ComponentPatch struct {
	Code     *string
	Name     *string
	Prompt   *string
	ThreadID *string
}
