package router

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmgateway/llmgateway/common/config"
	"github.com/llmgateway/llmgateway/model"
	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/provider"
)

func testRegistry() *provider.Registry {
	provs := []provider.Provider{
		{ID: provider.IDOpenAI, Name: "OpenAI", Streaming: true, Cancellation: true,
			EnvKey: "TEST_OPENAI_KEY", BaseURL: "https://api.openai.com"},
		{ID: provider.IDAnthropic, Name: "Anthropic", Streaming: true, Cancellation: true,
			EnvKey: "TEST_ANTHROPIC_KEY", BaseURL: "https://api.anthropic.com"},
		{ID: provider.IDCustom, Name: "Custom", Streaming: true, Cancellation: true},
	}
	mods := []provider.Model{
		{ID: "solo", Mappings: []provider.Mapping{
			{ProviderID: provider.IDOpenAI, ModelName: "solo-1",
				InputPrice: 2e-6, OutputPrice: 4e-6, ContextSize: 128000},
		}},
		{ID: "duo", Mappings: []provider.Mapping{
			{ProviderID: provider.IDOpenAI, ModelName: "duo-oa",
				InputPrice: 2e-6, OutputPrice: 4e-6, ContextSize: 128000},
			{ProviderID: provider.IDAnthropic, ModelName: "duo-an",
				InputPrice: 1e-6, OutputPrice: 2e-6, ContextSize: 200000},
		}},
		{ID: "tie", Mappings: []provider.Mapping{
			{ProviderID: provider.IDOpenAI, ModelName: "tie-oa",
				InputPrice: 1e-6, OutputPrice: 1e-6, ContextSize: 128000},
			{ProviderID: provider.IDAnthropic, ModelName: "tie-an",
				InputPrice: 1e-6, OutputPrice: 1e-6, ContextSize: 128000},
		}},
		{ID: "twin-a", Mappings: []provider.Mapping{
			{ProviderID: provider.IDOpenAI, ModelName: "twin",
				InputPrice: 1e-6, OutputPrice: 1e-6, ContextSize: 128000},
		}},
		{ID: "twin-b", Mappings: []provider.Mapping{
			{ProviderID: provider.IDAnthropic, ModelName: "twin",
				InputPrice: 1e-6, OutputPrice: 1e-6, ContextSize: 128000},
		}},
	}
	return provider.NewRegistry(provs, mods)
}

func testRouter(t *testing.T) *Router {
	t.Helper()
	t.Setenv("TEST_OPENAI_KEY", "sk-oa")
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-an")
	r := New(testRegistry())
	r.hasProviderKey = func(orgId, providerId string) (bool, error) { return false, nil }
	r.getProviderKey = func(orgId, providerId string) (*model.ProviderKey, error) { return nil, nil }
	r.getCustomProvider = func(orgId, name string) (*model.CustomProvider, error) { return nil, nil }
	return r
}

func testMeta(mode string) *meta.Meta {
	return &meta.Meta{
		Organization: &model.Organization{Id: "org-1", Plan: model.PlanFree, Credits: 10},
		Project:      &model.Project{Id: "proj-1", Mode: mode},
	}
}

func chatRequest(modelName string) *relaymodel.GeneralRequest {
	return &relaymodel.GeneralRequest{
		Model:    modelName,
		Messages: []relaymodel.Message{{Role: relaymodel.RoleUser, Content: "hello"}},
	}
}

func TestResolveBareSingleProvider(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeCredits)

	routeErr := r.Resolve(m, chatRequest("solo"))
	require.Nil(t, routeErr)
	assert.Equal(t, "solo", m.Model.ID)
	assert.Equal(t, provider.IDOpenAI, m.Provider.ID)
	assert.Equal(t, "solo-1", m.UpstreamModel)
	assert.Equal(t, "sk-oa", m.Token)
	assert.Equal(t, model.ModeCredits, m.KeyMode)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", m.Endpoint)
}

func TestResolveBareUpstreamName(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeCredits)

	routeErr := r.Resolve(m, chatRequest("solo-1"))
	require.Nil(t, routeErr)
	assert.Equal(t, "solo", m.Model.ID)
}

func TestResolveUnknownModel(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeCredits)

	routeErr := r.Resolve(m, chatRequest("nope"))
	require.NotNil(t, routeErr)
	assert.Equal(t, http.StatusBadRequest, routeErr.StatusCode)
	assert.Contains(t, routeErr.Err.Error(), "unknown model")
}

func TestResolveEmptyModel(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeCredits)

	routeErr := r.Resolve(m, chatRequest(""))
	require.NotNil(t, routeErr)
	assert.Equal(t, http.StatusBadRequest, routeErr.StatusCode)
}

func TestResolveBareAmbiguity(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeCredits)

	routeErr := r.Resolve(m, chatRequest("twin"))
	require.NotNil(t, routeErr)
	assert.Equal(t, http.StatusBadRequest, routeErr.StatusCode)
	assert.Contains(t, routeErr.Err.Error(), "multiple providers")
	assert.Contains(t, routeErr.Err.Error(), "openai/twin-a")
}

func TestResolveExplicitProviderModel(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeCredits)

	routeErr := r.Resolve(m, chatRequest("anthropic/duo-an"))
	require.Nil(t, routeErr)
	assert.Equal(t, provider.IDAnthropic, m.Provider.ID)
	assert.Equal(t, "anthropic", m.RequestedProvider)
	assert.Equal(t, "https://api.anthropic.com/v1/messages", m.Endpoint)
}

func TestResolveExplicitUnknownForProvider(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeCredits)

	routeErr := r.Resolve(m, chatRequest("openai/duo-an"))
	require.NotNil(t, routeErr)
	assert.Equal(t, http.StatusBadRequest, routeErr.StatusCode)
}

func TestResolveMultiProviderPicksCheapest(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeCredits)

	routeErr := r.Resolve(m, chatRequest("duo"))
	require.Nil(t, routeErr)
	assert.Equal(t, provider.IDAnthropic, m.Provider.ID)
	assert.Equal(t, "duo-an", m.UpstreamModel)
}

func TestResolveMultiProviderTieKeepsOrder(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeCredits)

	routeErr := r.Resolve(m, chatRequest("tie"))
	require.Nil(t, routeErr)
	assert.Equal(t, provider.IDOpenAI, m.Provider.ID)
}

func TestResolveMultiProviderSkipsUnavailable(t *testing.T) {
	r := testRouter(t)
	t.Setenv("TEST_ANTHROPIC_KEY", "")
	m := testMeta(model.ModeCredits)

	routeErr := r.Resolve(m, chatRequest("duo"))
	require.Nil(t, routeErr)
	assert.Equal(t, provider.IDOpenAI, m.Provider.ID)
}

func TestResolveCustomProvider(t *testing.T) {
	r := testRouter(t)
	r.getCustomProvider = func(orgId, name string) (*model.CustomProvider, error) {
		require.Equal(t, "org-1", orgId)
		require.Equal(t, "mycp", name)
		return &model.CustomProvider{Name: "mycp", BaseUrl: "https://my.llm.example", Token: "tok-1"}, nil
	}
	m := testMeta(model.ModeAPIKeys)

	routeErr := r.Resolve(m, chatRequest("mycp/llama-3"))
	require.Nil(t, routeErr)
	assert.Nil(t, m.Model)
	assert.Equal(t, provider.IDCustom, m.Mapping.ProviderID)
	assert.Equal(t, "llama-3", m.UpstreamModel)
	assert.Equal(t, "tok-1", m.Token)
	assert.Equal(t, model.ModeAPIKeys, m.KeyMode)
	assert.Equal(t, "https://my.llm.example/v1/chat/completions", m.Endpoint)
}

func TestResolveCustomProviderCreditsMode(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeCredits)

	routeErr := r.Resolve(m, chatRequest("mycp/llama-3"))
	require.NotNil(t, routeErr)
	assert.Equal(t, http.StatusBadRequest, routeErr.StatusCode)
	assert.Contains(t, routeErr.Err.Error(), "credits mode")
}

func TestResolveCustomProviderPlanGate(t *testing.T) {
	r := testRouter(t)
	r.getCustomProvider = func(orgId, name string) (*model.CustomProvider, error) {
		t.Fatal("custom provider loaded despite plan gate")
		return nil, nil
	}
	origHosted, origPaid := config.Hosted, config.PaidMode
	config.Hosted, config.PaidMode = true, true
	defer func() { config.Hosted, config.PaidMode = origHosted, origPaid }()

	m := testMeta(model.ModeAPIKeys)
	m.Organization.Plan = model.PlanFree

	routeErr := r.Resolve(m, chatRequest("mycp/llama-3"))
	require.NotNil(t, routeErr)
	assert.Equal(t, http.StatusPaymentRequired, routeErr.StatusCode)
	assert.Contains(t, routeErr.Err.Error(), "pro plan")
}

func TestResolveCustomProviderProPlanAllowed(t *testing.T) {
	r := testRouter(t)
	r.getCustomProvider = func(orgId, name string) (*model.CustomProvider, error) {
		return &model.CustomProvider{Name: "mycp", BaseUrl: "https://my.llm.example", Token: "tok-1"}, nil
	}
	origHosted, origPaid := config.Hosted, config.PaidMode
	config.Hosted, config.PaidMode = true, true
	defer func() { config.Hosted, config.PaidMode = origHosted, origPaid }()

	m := testMeta(model.ModeAPIKeys)
	m.Organization.Plan = model.PlanPro

	routeErr := r.Resolve(m, chatRequest("mycp/llama-3"))
	require.Nil(t, routeErr)
	assert.Equal(t, "tok-1", m.Token)
}

func TestResolveCustomBareKeyword(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeAPIKeys)

	routeErr := r.Resolve(m, chatRequest("custom"))
	require.NotNil(t, routeErr)
	assert.Equal(t, http.StatusBadRequest, routeErr.StatusCode)
}

func TestResolveCustomProviderUnknownName(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeAPIKeys)

	routeErr := r.Resolve(m, chatRequest("nosuch/llama-3"))
	require.NotNil(t, routeErr)
	assert.Equal(t, http.StatusBadRequest, routeErr.StatusCode)
	assert.Contains(t, routeErr.Err.Error(), "nosuch")
}

func TestResolveAutoPicksCheapestFit(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeCredits)

	orig := config.AutoEligibleModels
	config.AutoEligibleModels = []string{"solo", "duo"}
	defer func() { config.AutoEligibleModels = orig }()

	routeErr := r.Resolve(m, chatRequest("auto"))
	require.Nil(t, routeErr)
	assert.Equal(t, provider.IDLLMGateway, m.RequestedProvider)
	assert.Equal(t, "duo", m.Model.ID)
	assert.Equal(t, provider.IDAnthropic, m.Provider.ID)

	// Same inputs, same answer.
	m2 := testMeta(model.ModeCredits)
	require.Nil(t, r.Resolve(m2, chatRequest("auto")))
	assert.Equal(t, m.Provider.ID, m2.Provider.ID)
	assert.Equal(t, m.Model.ID, m2.Model.ID)
}

func TestResolveAutoFallsBackWhenNothingFits(t *testing.T) {
	r := testRouter(t)
	t.Setenv("TEST_OPENAI_KEY", "")
	t.Setenv("TEST_ANTHROPIC_KEY", "")
	m := testMeta(model.ModeCredits)
	m.Organization.Credits = 10

	orig := config.AutoEligibleModels
	config.AutoEligibleModels = []string{"solo"}
	defer func() { config.AutoEligibleModels = orig }()

	// No provider is available, so the fallback picks the first allow-list
	// entry; key resolution then fails with a routable error.
	routeErr := r.Resolve(m, chatRequest("auto"))
	require.NotNil(t, routeErr)
	assert.Equal(t, http.StatusBadRequest, routeErr.StatusCode)
}

func TestResolveInsufficientCredits(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeCredits)
	m.Organization.Credits = 0

	routeErr := r.Resolve(m, chatRequest("solo"))
	require.NotNil(t, routeErr)
	assert.Equal(t, http.StatusPaymentRequired, routeErr.StatusCode)
	assert.Equal(t, relaymodel.ErrTypePaymentRequired, routeErr.Type)
}

func TestResolveFreeModelIgnoresCredits(t *testing.T) {
	reg := provider.NewRegistry([]provider.Provider{
		{ID: provider.IDOpenAI, Streaming: true, EnvKey: "TEST_OPENAI_KEY", BaseURL: "https://api.openai.com"},
	}, []provider.Model{
		{ID: "freebie", Free: true, Mappings: []provider.Mapping{
			{ProviderID: provider.IDOpenAI, ModelName: "freebie", ContextSize: 8192},
		}},
	})
	t.Setenv("TEST_OPENAI_KEY", "sk-oa")
	r := New(reg)
	r.hasProviderKey = func(string, string) (bool, error) { return false, nil }
	m := testMeta(model.ModeCredits)
	m.Organization.Credits = 0

	routeErr := r.Resolve(m, chatRequest("freebie"))
	require.Nil(t, routeErr)
	assert.Equal(t, "sk-oa", m.Token)
}

func TestResolveAPIKeysModeUsesCustomerKey(t *testing.T) {
	r := testRouter(t)
	base := "https://proxy.example"
	r.hasProviderKey = func(string, string) (bool, error) { return true, nil }
	r.getProviderKey = func(orgId, providerId string) (*model.ProviderKey, error) {
		return &model.ProviderKey{Provider: providerId, Token: "sk-customer", BaseUrl: &base}, nil
	}
	m := testMeta(model.ModeAPIKeys)

	routeErr := r.Resolve(m, chatRequest("solo"))
	require.Nil(t, routeErr)
	assert.Equal(t, "sk-customer", m.Token)
	assert.Equal(t, model.ModeAPIKeys, m.KeyMode)
	assert.Equal(t, "https://proxy.example/v1/chat/completions", m.Endpoint)
}

func TestResolveAPIKeysModeMissingKey(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeAPIKeys)

	routeErr := r.Resolve(m, chatRequest("solo"))
	require.NotNil(t, routeErr)
	assert.Equal(t, http.StatusBadRequest, routeErr.StatusCode)
	assert.Contains(t, routeErr.Err.Error(), "no provider key")
}

func TestResolveAPIKeysModePlanGate(t *testing.T) {
	r := testRouter(t)
	origHosted, origPaid := config.Hosted, config.PaidMode
	config.Hosted, config.PaidMode = true, true
	defer func() { config.Hosted, config.PaidMode = origHosted, origPaid }()

	m := testMeta(model.ModeAPIKeys)
	m.Organization.Plan = model.PlanFree

	routeErr := r.Resolve(m, chatRequest("solo"))
	require.NotNil(t, routeErr)
	assert.Equal(t, http.StatusPaymentRequired, routeErr.StatusCode)
	assert.Contains(t, routeErr.Err.Error(), "pro plan")
}

func TestResolveHybridPrefersCustomerKey(t *testing.T) {
	r := testRouter(t)
	r.getProviderKey = func(orgId, providerId string) (*model.ProviderKey, error) {
		return &model.ProviderKey{Provider: providerId, Token: "sk-customer"}, nil
	}
	m := testMeta(model.ModeHybrid)

	routeErr := r.Resolve(m, chatRequest("solo"))
	require.Nil(t, routeErr)
	assert.Equal(t, "sk-customer", m.Token)
	assert.Equal(t, model.ModeAPIKeys, m.KeyMode)
}

func TestResolveHybridFallsBackToCredits(t *testing.T) {
	r := testRouter(t)
	m := testMeta(model.ModeHybrid)

	routeErr := r.Resolve(m, chatRequest("solo"))
	require.Nil(t, routeErr)
	assert.Equal(t, "sk-oa", m.Token)
	assert.Equal(t, model.ModeCredits, m.KeyMode)
}

func TestResolveResponsesAPIGate(t *testing.T) {
	reg := provider.NewRegistry([]provider.Provider{
		{ID: provider.IDOpenAI, Streaming: true, EnvKey: "TEST_OPENAI_KEY", BaseURL: "https://api.openai.com"},
	}, []provider.Model{
		{ID: "thinker", Mappings: []provider.Mapping{
			{ProviderID: provider.IDOpenAI, ModelName: "thinker", ContextSize: 128000,
				Reasoning: true, SupportsResponsesAPI: true},
		}},
	})
	t.Setenv("TEST_OPENAI_KEY", "sk-oa")
	orig := config.UseResponsesAPI
	config.UseResponsesAPI = true
	defer func() { config.UseResponsesAPI = orig }()

	r := New(reg)
	m := testMeta(model.ModeCredits)
	require.Nil(t, r.Resolve(m, chatRequest("thinker")))
	assert.True(t, m.UseResponsesAPI)
	assert.Equal(t, "https://api.openai.com/v1/responses", m.Endpoint)

	// Tool-call history forces the chat completions route.
	m2 := testMeta(model.ModeCredits)
	req := chatRequest("thinker")
	req.Messages = append(req.Messages, relaymodel.Message{
		Role: relaymodel.RoleTool, ToolCallID: "call_1", Content: "42",
	})
	require.Nil(t, r.Resolve(m2, req))
	assert.False(t, m2.UseResponsesAPI)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", m2.Endpoint)
}
