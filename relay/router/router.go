package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/llmgateway/llmgateway/common/config"
	"github.com/llmgateway/llmgateway/model"
	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/provider"
	"github.com/llmgateway/llmgateway/relay/tokenizer"
)

// Router resolves the caller's model input to a concrete upstream dispatch:
// model, provider mapping, credential and endpoint. Store lookups are held as
// function fields so selection logic is testable without a database.
type Router struct {
	registry          *provider.Registry
	hasProviderKey    func(orgId, providerId string) (bool, error)
	getProviderKey    func(orgId, providerId string) (*model.ProviderKey, error)
	getCustomProvider func(orgId, name string) (*model.CustomProvider, error)
}

func New(registry *provider.Registry) *Router {
	return &Router{
		registry:          registry,
		hasProviderKey:    model.HasProviderKey,
		getProviderKey:    model.GetProviderKey,
		getCustomProvider: model.GetCustomProvider,
	}
}

// Resolve fills the routing fields of m for the given request. The request's
// admission checks that depend on the selected mapping run afterwards.
func (r *Router) Resolve(m *meta.Meta, request *relaymodel.GeneralRequest) *Error {
	input := strings.TrimSpace(request.Model)
	m.RequestedModel = input
	m.IsStream = request.Stream

	switch input {
	case "":
		return badRequest(errors.New("model is required"))
	case "auto":
		m.RequestedProvider = provider.IDLLMGateway
		return r.resolveAuto(m, request)
	case "custom":
		return badRequest(errors.New("model \"custom\" must be addressed as <name>/<model>"))
	}

	if head, rest, found := strings.Cut(input, "/"); found {
		if _, known := r.registry.Provider(head); known {
			m.RequestedProvider = head
			return r.resolveExplicit(m, request, head, rest)
		}
		return r.resolveCustom(m, request, head, rest)
	}
	return r.resolveBare(m, request, input)
}

func (r *Router) resolveExplicit(m *meta.Meta, request *relaymodel.GeneralRequest, providerId, modelName string) *Error {
	mdl, mapping := r.registry.FindByProviderModel(providerId, modelName)
	if mdl == nil {
		return badRequest(errors.Errorf("unknown model %q for provider %q", modelName, providerId))
	}
	return r.finish(m, request, mdl, mapping)
}

func (r *Router) resolveBare(m *meta.Meta, request *relaymodel.GeneralRequest, name string) *Error {
	candidates := r.registry.FindBare(name)
	switch len(candidates) {
	case 0:
		return badRequest(errors.Errorf("unknown model %q", name))
	case 1:
	default:
		first := candidates[0]
		return badRequest(errors.Errorf(
			"model %q is served by multiple providers, address it explicitly, e.g. %s/%s",
			name, first.Mappings[0].ProviderID, first.ID))
	}

	mdl := candidates[0]
	if len(mdl.Mappings) == 1 {
		return r.finish(m, request, mdl, &mdl.Mappings[0])
	}
	mapping, routeErr := r.cheapestAvailable(m, mdl)
	if routeErr != nil {
		return routeErr
	}
	return r.finish(m, request, mdl, mapping)
}

func (r *Router) resolveCustom(m *meta.Meta, request *relaymodel.GeneralRequest, name, modelName string) *Error {
	m.RequestedProvider = provider.IDCustom
	if m.Project.Mode == model.ModeCredits {
		return badRequest(errors.New("custom providers are not available in credits mode"))
	}
	// Custom providers are a customer-key path and carry the same plan gate.
	if !r.planAllowsOwnKeys(m) {
		return &Error{
			StatusCode: http.StatusPaymentRequired,
			Type:       relaymodel.ErrTypePaymentRequired,
			Err:        errors.New("custom providers require the pro plan"),
		}
	}
	cp, err := r.getCustomProvider(m.Organization.Id, name)
	if err != nil {
		return gatewayError(errors.Wrap(err, "load custom provider"))
	}
	if cp == nil {
		return badRequest(errors.Errorf("unknown provider or custom provider %q", name))
	}
	p, _ := r.registry.Provider(provider.IDCustom)

	m.Model = nil
	m.Mapping = &provider.Mapping{ProviderID: provider.IDCustom, ModelName: modelName}
	m.Provider = p
	m.UpstreamModel = modelName
	m.BaseURL = cp.BaseUrl
	m.Token = cp.Token
	m.KeyMode = model.ModeAPIKeys
	m.Endpoint = BuildEndpoint(p, cp.BaseUrl, modelName, cp.Token, m.IsStream, false)
	return nil
}

// resolveAuto picks the cheapest allow-listed model whose context window fits
// the estimated prompt+completion budget, over the providers available under
// the project's mode.
func (r *Router) resolveAuto(m *meta.Meta, request *relaymodel.GeneralRequest) *Error {
	budget := tokenizer.Default().CountMessages(request.Messages, request.Tools) +
		request.EffectiveMaxTokens(config.DefaultMaxTokens)

	var (
		bestModel   *provider.Model
		bestMapping *provider.Mapping
		bestPrice   float64
	)
	now := time.Now()
	for _, id := range config.AutoEligibleModels {
		mdl, ok := r.registry.Model(id)
		if !ok || mdl.Deactivated(now) {
			continue
		}
		for i := range mdl.Mappings {
			mapping := &mdl.Mappings[i]
			if mapping.ContextSize < budget {
				continue
			}
			available, err := r.providerAvailable(m, mapping.ProviderID)
			if err != nil {
				return gatewayError(err)
			}
			if !available {
				continue
			}
			price := (mapping.InputPrice + mapping.OutputPrice) / 2
			if bestMapping == nil || price < bestPrice {
				bestModel, bestMapping, bestPrice = mdl, mapping, price
			}
		}
	}

	if bestMapping == nil {
		// Fall back to the first allow-list entry with its default provider.
		for _, id := range config.AutoEligibleModels {
			if mdl, ok := r.registry.Model(id); ok && len(mdl.Mappings) > 0 {
				bestModel, bestMapping = mdl, &mdl.Mappings[0]
				break
			}
		}
	}
	if bestMapping == nil {
		return badRequest(errors.New("no auto-eligible model is available"))
	}
	return r.finish(m, request, bestModel, bestMapping)
}

// cheapestAvailable disambiguates a multi-provider model by restricting to
// providers available under the project mode and minimising the mean token
// price; ties keep registry order.
func (r *Router) cheapestAvailable(m *meta.Meta, mdl *provider.Model) (*provider.Mapping, *Error) {
	var (
		best      *provider.Mapping
		bestPrice float64
	)
	for i := range mdl.Mappings {
		mapping := &mdl.Mappings[i]
		available, err := r.providerAvailable(m, mapping.ProviderID)
		if err != nil {
			return nil, gatewayError(err)
		}
		if !available {
			continue
		}
		price := (mapping.InputPrice + mapping.OutputPrice) / 2
		if best == nil || price < bestPrice {
			best, bestPrice = mapping, price
		}
	}
	if best == nil {
		return nil, badRequest(errors.Errorf("no provider available for model %q under project mode %q",
			mdl.ID, m.Project.Mode))
	}
	return best, nil
}

// providerAvailable reports whether the project can dispatch to the provider:
// a customer key in api-keys mode, a gateway env token in credits mode, either
// in hybrid.
func (r *Router) providerAvailable(m *meta.Meta, providerId string) (bool, error) {
	p, ok := r.registry.Provider(providerId)
	if !ok {
		return false, nil
	}
	switch m.Project.Mode {
	case model.ModeAPIKeys:
		return r.hasProviderKey(m.Organization.Id, providerId)
	case model.ModeCredits:
		return p.EnvToken() != "", nil
	default:
		has, err := r.hasProviderKey(m.Organization.Id, providerId)
		if err != nil {
			return false, err
		}
		return has || p.EnvToken() != "", nil
	}
}

// finish applies key resolution and endpoint construction for the selected
// mapping.
func (r *Router) finish(m *meta.Meta, request *relaymodel.GeneralRequest, mdl *provider.Model, mapping *provider.Mapping) *Error {
	p, ok := r.registry.Provider(mapping.ProviderID)
	if !ok {
		return gatewayError(errors.Errorf("provider %q missing from registry", mapping.ProviderID))
	}

	token, base, keyMode, routeErr := r.resolveKey(m, mdl, p)
	if routeErr != nil {
		return routeErr
	}

	m.Model = mdl
	m.Mapping = mapping
	m.Provider = p
	m.UpstreamModel = mapping.ModelName
	m.Token = token
	m.BaseURL = base
	m.KeyMode = keyMode
	m.UseResponsesAPI = p.ID == provider.IDOpenAI &&
		config.UseResponsesAPI &&
		mapping.SupportsResponsesAPI &&
		mapping.Reasoning &&
		!request.HasToolCallHistory()
	m.Endpoint = BuildEndpoint(p, base, mapping.ModelName, token, m.IsStream, m.UseResponsesAPI)
	return nil
}

func (r *Router) resolveKey(m *meta.Meta, mdl *provider.Model, p *provider.Provider) (token, base, keyMode string, routeErr *Error) {
	base = p.BaseURL
	if p.ID == provider.IDRouteWay && config.RouteWayDiscountBaseURL != "" {
		base = config.RouteWayDiscountBaseURL
	}

	switch m.Project.Mode {
	case model.ModeAPIKeys:
		return r.resolveProviderKey(m, p, base)

	case model.ModeCredits:
		return r.resolveCredits(m, mdl, p, base)

	default: // hybrid: prefer the customer key, fall back to credits.
		key, err := r.getProviderKey(m.Organization.Id, p.ID)
		if err != nil {
			return "", "", "", gatewayError(errors.Wrap(err, "load provider key"))
		}
		if key != nil && r.planAllowsOwnKeys(m) {
			if key.BaseUrl != nil && *key.BaseUrl != "" {
				base = *key.BaseUrl
			}
			return key.Token, base, model.ModeAPIKeys, nil
		}
		return r.resolveCredits(m, mdl, p, base)
	}
}

func (r *Router) resolveProviderKey(m *meta.Meta, p *provider.Provider, base string) (string, string, string, *Error) {
	if !r.planAllowsOwnKeys(m) {
		return "", "", "", &Error{
			StatusCode: http.StatusPaymentRequired,
			Type:       relaymodel.ErrTypePaymentRequired,
			Err:        errors.New("using your own provider keys requires the pro plan"),
		}
	}
	key, err := r.getProviderKey(m.Organization.Id, p.ID)
	if err != nil {
		return "", "", "", gatewayError(errors.Wrap(err, "load provider key"))
	}
	if key == nil {
		return "", "", "", badRequest(errors.Errorf("no provider key configured for %q", p.ID))
	}
	if key.BaseUrl != nil && *key.BaseUrl != "" {
		base = *key.BaseUrl
	}
	return key.Token, base, model.ModeAPIKeys, nil
}

func (r *Router) resolveCredits(m *meta.Meta, mdl *provider.Model, p *provider.Provider, base string) (string, string, string, *Error) {
	token := p.EnvToken()
	if token == "" {
		return "", "", "", badRequest(errors.Errorf("provider %q is not available", p.ID))
	}
	free := mdl != nil && mdl.Free
	if m.Organization.Credits <= 0 && !free {
		return "", "", "", &Error{
			StatusCode: http.StatusPaymentRequired,
			Type:       relaymodel.ErrTypePaymentRequired,
			Err:        errors.New("insufficient credits"),
		}
	}
	return token, base, model.ModeCredits, nil
}

// planAllowsOwnKeys enforces hosted+paid plan gating on customer provider keys.
func (r *Router) planAllowsOwnKeys(m *meta.Meta) bool {
	if !config.Hosted || !config.PaidMode {
		return true
	}
	return m.Organization.Plan == model.PlanPro
}

func badRequest(err error) *Error {
	return &Error{StatusCode: http.StatusBadRequest, Type: relaymodel.ErrTypeInvalidRequest, Err: err}
}

func gatewayError(err error) *Error {
	return &Error{StatusCode: http.StatusInternalServerError, Type: relaymodel.ErrTypeGatewayError, Err: err}
}
