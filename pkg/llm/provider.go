// Package llm describes the chat-completion providers xpost can talk to.
package llm

import (
	"fmt"
	"sort"
	"strings"
)

// Model is one entry of a provider's model catalog.
type Model struct {
	ID     string
	Vision bool // accepts image_url content parts
}

// ProviderConfig is the static description of a provider.
type ProviderConfig struct {
	ID           string
	Name         string
	BaseURL      string
	DefaultModel string
	Models       []Model
}

// Model returns the catalog entry for id.
func (p ProviderConfig) Model(id string) (Model, bool) {
	for _, m := range p.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// SupportsVision reports whether model accepts image input.
func (p ProviderConfig) SupportsVision(model string) bool {
	m, ok := p.Model(model)
	return ok && m.Vision
}

// ModelIDs returns the model identifiers in catalog order.
func (p ProviderConfig) ModelIDs() []string {
	ids := make([]string, 0, len(p.Models))
	for _, m := range p.Models {
		ids = append(ids, m.ID)
	}
	return ids
}

const (
	ProviderOpenAI = "openai"
	ProviderXAI    = "xai"

	// DefaultProvider is used when no provider was ever saved.
	DefaultProvider = ProviderOpenAI
)

// Builtin returns the provider configurations shipped with xpost.
func Builtin() []ProviderConfig {
	return []ProviderConfig{
		{
			ID:           ProviderOpenAI,
			Name:         "OpenAI",
			BaseURL:      "https://api.openai.com/v1",
			DefaultModel: "gpt-4o",
			Models: []Model{
				{ID: "gpt-4o"},
				{ID: "gpt-4o-mini"},
			},
		},
		{
			ID:           ProviderXAI,
			Name:         "xAI",
			BaseURL:      "https://api.x.ai/v1",
			DefaultModel: "grok-2-1212",
			Models: []Model{
				{ID: "grok-2-1212"},
				{ID: "grok-2-vision-1212", Vision: true},
			},
		},
	}
}

// Catalog holds the known providers. It is immutable after construction.
type Catalog struct {
	providers map[string]ProviderConfig
}

// NewCatalog builds a catalog from configs. Later duplicates win.
func NewCatalog(configs ...ProviderConfig) *Catalog {
	c := &Catalog{providers: make(map[string]ProviderConfig, len(configs))}
	for _, p := range configs {
		p.BaseURL = strings.TrimRight(p.BaseURL, "/")
		c.providers[p.ID] = p
	}
	return c
}

// DefaultCatalog returns the builtin providers with base URL overrides
// applied. Empty override values are ignored.
func DefaultCatalog(baseURLOverrides map[string]string) *Catalog {
	configs := Builtin()
	for i := range configs {
		if u := baseURLOverrides[configs[i].ID]; u != "" {
			configs[i].BaseURL = u
		}
	}
	return NewCatalog(configs...)
}

// Get returns the provider with id.
func (c *Catalog) Get(id string) (ProviderConfig, bool) {
	p, ok := c.providers[id]
	return p, ok
}

// Has reports whether id is a known provider.
func (c *Catalog) Has(id string) bool {
	_, ok := c.providers[id]
	return ok
}

// Lookup returns the provider or an error naming the unknown id.
func (c *Catalog) Lookup(id string) (ProviderConfig, error) {
	p, ok := c.providers[id]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("unknown provider: %s", id)
	}
	return p, nil
}

// IDs returns the known provider ids, sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.providers))
	for id := range c.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns all providers sorted by id.
func (c *Catalog) List() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(c.providers))
	for _, id := range c.IDs() {
		out = append(out, c.providers[id])
	}
	return out
}
