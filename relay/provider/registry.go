package provider

import "os"

// Registry is an immutable view over the provider and model tables. The
// default registry is built from the static tables at init; tests construct
// their own via NewRegistry.
type Registry struct {
	providers map[string]*Provider
	models    map[string]*Model
	order     []string
}

var defaultRegistry = NewRegistry(providers, models)

// Default returns the build-time registry.
func Default() *Registry { return defaultRegistry }

// NewRegistry builds a registry from explicit tables.
func NewRegistry(provs []Provider, mods []Model) *Registry {
	r := &Registry{
		providers: make(map[string]*Provider, len(provs)),
		models:    make(map[string]*Model, len(mods)),
	}
	for i := range provs {
		p := provs[i]
		r.providers[p.ID] = &p
	}
	for i := range mods {
		m := mods[i]
		r.models[m.ID] = &m
		r.order = append(r.order, m.ID)
	}
	return r
}

// Provider looks up a provider by id.
func (r *Registry) Provider(id string) (*Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// Model looks up a model by registry id.
func (r *Registry) Model(id string) (*Model, bool) {
	m, ok := r.models[id]
	return m, ok
}

// Models returns model ids in table order. Selection tie-breaks rely on this
// being deterministic.
func (r *Registry) Models() []string { return r.order }

// FindByProviderModel returns the model (and its mapping) served by the given
// provider under the given upstream model name. The gateway accepts both the
// registry id and the provider's native name after the slash.
func (r *Registry) FindByProviderModel(providerID, modelName string) (*Model, *Mapping) {
	for _, id := range r.order {
		m := r.models[id]
		for i := range m.Mappings {
			mp := &m.Mappings[i]
			if mp.ProviderID == providerID && (mp.ModelName == modelName || m.ID == modelName) {
				return m, mp
			}
		}
	}
	return nil, nil
}

// FindBare returns every model matching a bare model name (registry id or any
// mapping's upstream name).
func (r *Registry) FindBare(modelName string) []*Model {
	var out []*Model
	for _, id := range r.order {
		m := r.models[id]
		if m.ID == modelName {
			out = append(out, m)
			continue
		}
		for i := range m.Mappings {
			if m.Mappings[i].ModelName == modelName {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// MappingFor returns the mapping a model has for the given provider.
func (m *Model) MappingFor(providerID string) *Mapping {
	for i := range m.Mappings {
		if m.Mappings[i].ProviderID == providerID {
			return &m.Mappings[i]
		}
	}
	return nil
}

// EnvToken reads the gateway-owned API key for a provider. Provider token
// environment variables are read-only after process start, but reading them
// lazily keeps tests simple.
func (p *Provider) EnvToken() string {
	if p.EnvKey == "" {
		return ""
	}
	return os.Getenv(p.EnvKey)
}

// SupportsStreaming resolves the mapping override against the provider default.
func (mp *Mapping) SupportsStreaming(p *Provider) bool {
	if mp.Streaming != nil {
		return *mp.Streaming
	}
	return p.Streaming
}

// EffectiveDiscount returns the cost multiplier, defaulting to 1.
func (mp *Mapping) EffectiveDiscount() float64 {
	if mp.Discount > 0 && mp.Discount <= 1 {
		return mp.Discount
	}
	return 1
}
