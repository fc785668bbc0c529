// Package settings reads and writes the user's provider configuration.
//
// Values live in a flat KV under the keys "aiProvider", "<provider>ApiKey"
// and "<provider>Model". There is no caching: every Load goes to the store,
// so callers must Load at the start of each action.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/joss/xpost/internal/domain"
	"github.com/joss/xpost/internal/store"
	"github.com/joss/xpost/pkg/llm"
)

// KeyProvider is the key holding the active provider id.
const KeyProvider = "aiProvider"

// APIKeyKey returns the storage key of a provider's API key.
func APIKeyKey(provider string) string { return provider + "ApiKey" }

// ModelKey returns the storage key of a provider's selected model.
func ModelKey(provider string) string { return provider + "Model" }

// ErrUnknownProvider is returned when saving for a provider not in the catalog.
var ErrUnknownProvider = errors.New("unknown provider")

// Repository is the settings access used by the gateway and orchestrator.
type Repository interface {
	// Load reads the current settings. Absent keys fall back to the
	// default provider and each provider's default model.
	Load(ctx context.Context) (*domain.Settings, error)
	// Save makes provider active and stores its key and model.
	Save(ctx context.Context, provider, apiKey, model string) error
}

// KVRepository implements Repository over a store.KV.
type KVRepository struct {
	kv      store.KV
	catalog *llm.Catalog
}

var _ Repository = (*KVRepository)(nil)

// NewRepository creates a repository for the providers in catalog.
func NewRepository(kv store.KV, catalog *llm.Catalog) *KVRepository {
	return &KVRepository{kv: kv, catalog: catalog}
}

// Keys returns every storage key the repository reads.
func (r *KVRepository) Keys() []string {
	keys := []string{KeyProvider}
	for _, id := range r.catalog.IDs() {
		keys = append(keys, APIKeyKey(id), ModelKey(id))
	}
	return keys
}

func (r *KVRepository) Load(ctx context.Context) (*domain.Settings, error) {
	vals, err := r.kv.Get(ctx, r.Keys()...)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	s := &domain.Settings{
		ActiveProvider: vals[KeyProvider],
		PerProvider:    make(map[string]domain.ProviderSettings),
	}
	if s.ActiveProvider == "" || !r.catalog.Has(s.ActiveProvider) {
		s.ActiveProvider = llm.DefaultProvider
	}

	for _, p := range r.catalog.List() {
		model := vals[ModelKey(p.ID)]
		if model == "" {
			model = p.DefaultModel
		}
		s.PerProvider[p.ID] = domain.ProviderSettings{
			APIKey: vals[APIKeyKey(p.ID)],
			Model:  model,
		}
	}
	return s, nil
}

func (r *KVRepository) Save(ctx context.Context, provider, apiKey, model string) error {
	cfg, ok := r.catalog.Get(provider)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if model == "" {
		model = cfg.DefaultModel
	}
	return r.kv.Set(ctx, map[string]string{
		KeyProvider:         provider,
		APIKeyKey(provider): apiKey,
		ModelKey(provider):  model,
	})
}
