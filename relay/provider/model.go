package provider

import "time"

// Stability levels a model or mapping may advertise.
const (
	StabilityStable       = "stable"
	StabilityBeta         = "beta"
	StabilityUnstable     = "unstable"
	StabilityExperimental = "experimental"
)

// ReasoningOutput controls whether reasoning content is emitted to callers.
const (
	ReasoningEmit = "emit"
	ReasoningOmit = "omit"
)

// Mapping binds a model to one way to obtain it from a provider.
// Prices are USD per token; RequestPrice is USD per request.
type Mapping struct {
	ProviderID       string
	ModelName        string
	InputPrice       float64
	OutputPrice      float64
	CachedInputPrice float64
	RequestPrice     float64
	ContextSize      int
	MaxOutput        int
	// Streaming overrides the provider default when non-nil.
	Streaming            *bool
	Vision               bool
	Tools                bool
	Reasoning            bool
	ReasoningOutput      string
	SupportsResponsesAPI bool
	// Discount scales the final cost, in (0, 1]. Zero means no discount.
	Discount  float64
	Stability string
	// QuirkToolCallFixup enables the workaround for upstreams that re-emit
	// tool calls after a tool result turn (observed on some Z.ai models).
	QuirkToolCallFixup bool
}

// Model is one entry of the static model registry.
type Model struct {
	ID            string
	Family        string
	Mappings      []Mapping
	Stability     string
	Free          bool
	DeactivatedAt *time.Time
	// Output lists extra output capabilities, e.g. "image".
	Output     []string
	JSONOutput bool
}

// Deactivated reports whether the model is past its deactivation date.
func (m *Model) Deactivated(now time.Time) bool {
	return m.DeactivatedAt != nil && m.DeactivatedAt.Before(now)
}

// SupportsReasoning reports whether any provider mapping offers reasoning.
func (m *Model) SupportsReasoning() bool {
	for i := range m.Mappings {
		if m.Mappings[i].Reasoning {
			return true
		}
	}
	return false
}

// SupportsImageOutput reports whether the model can return images.
func (m *Model) SupportsImageOutput() bool {
	for _, o := range m.Output {
		if o == "image" {
			return true
		}
	}
	return false
}

// Per-million helpers keep the price tables readable.
func perM(usdPerMillion float64) float64 { return usdPerMillion / 1e6 }

var models = []Model{
	{
		ID: "gpt-5-nano", Family: "openai", JSONOutput: true,
		Mappings: []Mapping{{
			ProviderID: IDOpenAI, ModelName: "gpt-5-nano",
			InputPrice: perM(0.05), OutputPrice: perM(0.40), CachedInputPrice: perM(0.005),
			ContextSize: 400_000, MaxOutput: 128_000, Tools: true, Vision: true,
			Reasoning: true, ReasoningOutput: ReasoningOmit, SupportsResponsesAPI: true,
		}},
	},
	{
		ID: "gpt-4.1-nano", Family: "openai", JSONOutput: true,
		Mappings: []Mapping{{
			ProviderID: IDOpenAI, ModelName: "gpt-4.1-nano",
			InputPrice: perM(0.10), OutputPrice: perM(0.40), CachedInputPrice: perM(0.025),
			ContextSize: 1_047_576, MaxOutput: 32_768, Tools: true, Vision: true,
		}},
	},
	{
		ID: "gpt-4o-mini", Family: "openai", JSONOutput: true,
		Mappings: []Mapping{{
			ProviderID: IDOpenAI, ModelName: "gpt-4o-mini",
			InputPrice: perM(0.15), OutputPrice: perM(0.60), CachedInputPrice: perM(0.075),
			ContextSize: 128_000, MaxOutput: 16_384, Tools: true, Vision: true,
		}},
	},
	{
		ID: "gpt-5", Family: "openai", JSONOutput: true,
		Mappings: []Mapping{{
			ProviderID: IDOpenAI, ModelName: "gpt-5",
			InputPrice: perM(1.25), OutputPrice: perM(10.0), CachedInputPrice: perM(0.125),
			ContextSize: 400_000, MaxOutput: 128_000, Tools: true, Vision: true,
			Reasoning: true, ReasoningOutput: ReasoningOmit, SupportsResponsesAPI: true,
		}},
	},
	{
		ID: "claude-3-5-sonnet-20241022", Family: "anthropic",
		Mappings: []Mapping{{
			ProviderID: IDAnthropic, ModelName: "claude-3-5-sonnet-20241022",
			InputPrice: perM(3.0), OutputPrice: perM(15.0), CachedInputPrice: perM(0.30),
			ContextSize: 200_000, MaxOutput: 8_192, Tools: true, Vision: true,
		}},
	},
	{
		ID: "claude-sonnet-4-20250514", Family: "anthropic",
		Mappings: []Mapping{{
			ProviderID: IDAnthropic, ModelName: "claude-sonnet-4-20250514",
			InputPrice: perM(3.0), OutputPrice: perM(15.0), CachedInputPrice: perM(0.30),
			ContextSize: 200_000, MaxOutput: 64_000, Tools: true, Vision: true,
			Reasoning: true, ReasoningOutput: ReasoningEmit,
		}},
	},
	{
		ID: "gemini-2.0-flash", Family: "google", JSONOutput: true, Output: []string{"image"},
		Mappings: []Mapping{{
			ProviderID: IDGoogleAIStudio, ModelName: "gemini-2.0-flash",
			InputPrice: perM(0.10), OutputPrice: perM(0.40),
			ContextSize: 1_048_576, MaxOutput: 8_192, Tools: true, Vision: true,
		}},
	},
	{
		ID: "gemini-2.5-pro", Family: "google", JSONOutput: true,
		Mappings: []Mapping{{
			ProviderID: IDGoogleAIStudio, ModelName: "gemini-2.5-pro",
			InputPrice: perM(1.25), OutputPrice: perM(10.0),
			ContextSize: 1_048_576, MaxOutput: 65_536, Tools: true, Vision: true,
			Reasoning: true, ReasoningOutput: ReasoningEmit,
		}},
	},
	{
		ID: "mistral-small-latest", Family: "mistral", JSONOutput: true,
		Mappings: []Mapping{{
			ProviderID: IDMistral, ModelName: "mistral-small-latest",
			InputPrice: perM(0.10), OutputPrice: perM(0.30),
			ContextSize: 128_000, MaxOutput: 128_000, Tools: true,
		}},
	},
	{
		ID: "deepseek-chat", Family: "deepseek", JSONOutput: true,
		Mappings: []Mapping{{
			ProviderID: IDDeepSeek, ModelName: "deepseek-chat",
			InputPrice: perM(0.27), OutputPrice: perM(1.10), CachedInputPrice: perM(0.07),
			ContextSize: 64_000, MaxOutput: 8_192, Tools: true,
		}},
	},
	{
		ID: "deepseek-reasoner", Family: "deepseek",
		Mappings: []Mapping{{
			ProviderID: IDDeepSeek, ModelName: "deepseek-reasoner",
			InputPrice: perM(0.55), OutputPrice: perM(2.19),
			ContextSize: 64_000, MaxOutput: 65_536,
			Reasoning: true, ReasoningOutput: ReasoningEmit,
		}},
	},
	{
		ID: "glm-4.5-airx", Family: "zai",
		Mappings: []Mapping{{
			ProviderID: IDZAI, ModelName: "glm-4.5-airx",
			InputPrice: perM(1.10), OutputPrice: perM(4.50),
			ContextSize: 128_000, MaxOutput: 96_000, Tools: true,
			QuirkToolCallFixup: true,
		}},
	},
	{
		ID: "glm-4.5-flash", Family: "zai", Free: true,
		Mappings: []Mapping{{
			ProviderID: IDZAI, ModelName: "glm-4.5-flash",
			ContextSize: 128_000, MaxOutput: 96_000, Tools: true,
			QuirkToolCallFixup: true,
		}},
	},
	{
		ID: "grok-3-mini", Family: "xai",
		Mappings: []Mapping{{
			ProviderID: IDXAI, ModelName: "grok-3-mini",
			InputPrice: perM(0.30), OutputPrice: perM(0.50),
			ContextSize: 131_072, MaxOutput: 131_072, Tools: true,
			Reasoning: true, ReasoningOutput: ReasoningEmit,
		}},
	},
	{
		ID: "sonar", Family: "perplexity",
		Mappings: []Mapping{{
			ProviderID: IDPerplexity, ModelName: "sonar",
			InputPrice: perM(1.0), OutputPrice: perM(1.0), RequestPrice: 0.005,
			ContextSize: 127_000, MaxOutput: 8_000,
		}},
	},
	{
		ID: "kimi-k2", Family: "moonshot",
		Mappings: []Mapping{
			{
				ProviderID: IDMoonshot, ModelName: "kimi-k2-0711-preview",
				InputPrice: perM(0.60), OutputPrice: perM(2.50),
				ContextSize: 131_072, MaxOutput: 16_384, Tools: true,
			},
			{
				ProviderID: IDGroq, ModelName: "moonshotai/kimi-k2-instruct",
				InputPrice: perM(1.0), OutputPrice: perM(3.0),
				ContextSize: 131_072, MaxOutput: 16_384, Tools: true,
			},
		},
	},
	{
		ID: "llama-3.1-8b-instruct", Family: "meta", Stability: StabilityBeta,
		Mappings: []Mapping{
			{
				ProviderID: IDGroq, ModelName: "llama-3.1-8b-instant",
				InputPrice: perM(0.05), OutputPrice: perM(0.08),
				ContextSize: 131_072, MaxOutput: 8_192, Tools: true,
			},
			{
				ProviderID: IDTogether, ModelName: "meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo",
				InputPrice: perM(0.18), OutputPrice: perM(0.18),
				ContextSize: 131_072, MaxOutput: 8_192, Tools: true,
			},
			{
				ProviderID: IDNovita, ModelName: "meta-llama/llama-3.1-8b-instruct",
				InputPrice: perM(0.05), OutputPrice: perM(0.05),
				ContextSize: 16_384, MaxOutput: 16_384,
			},
			{
				ProviderID: IDNebius, ModelName: "meta-llama/Meta-Llama-3.1-8B-Instruct",
				InputPrice: perM(0.02), OutputPrice: perM(0.06),
				ContextSize: 131_072, MaxOutput: 8_192,
			},
			{
				ProviderID: IDInferenceNet, ModelName: "meta-llama/llama-3.1-8b-instruct/fp-8",
				InputPrice: perM(0.025), OutputPrice: perM(0.025),
				ContextSize: 16_384, MaxOutput: 16_384,
			},
			{
				ProviderID: IDCloudRift, ModelName: "llama-3.1-8b-instruct",
				InputPrice: perM(0.03), OutputPrice: perM(0.03),
				ContextSize: 131_072, MaxOutput: 8_192,
			},
		},
	},
	{
		ID: "qwen-turbo", Family: "alibaba", JSONOutput: true,
		Mappings: []Mapping{{
			ProviderID: IDAlibaba, ModelName: "qwen-turbo",
			InputPrice: perM(0.05), OutputPrice: perM(0.20),
			ContextSize: 1_000_000, MaxOutput: 8_192, Tools: true,
		}},
	},
	{
		ID: "routeway/gpt-4o-mini", Family: "openai", JSONOutput: true, Stability: StabilityExperimental,
		Mappings: []Mapping{{
			ProviderID: IDRouteWay, ModelName: "gpt-4o-mini",
			InputPrice: perM(0.15), OutputPrice: perM(0.60),
			ContextSize: 128_000, MaxOutput: 16_384, Tools: true,
			Discount: 0.8,
		}},
	},
}
