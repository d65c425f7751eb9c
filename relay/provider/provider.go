package provider

// Provider describes one upstream in the static registry. The set is closed
// at build time; "custom" and "llmgateway" are pseudo-providers.
type Provider struct {
	ID   string
	Name string
	// Streaming is the default streaming capability of the provider.
	Streaming bool
	// Cancellation reports whether an in-flight upstream call can be aborted
	// safely. When false the upstream runs to completion and its output is
	// discarded on client cancel.
	Cancellation bool
	// EnvKey names the environment variable holding the gateway-owned API key.
	EnvKey string
	// BaseURL is the default upstream base; user provider keys may override it.
	BaseURL string
}

const (
	IDOpenAI         = "openai"
	IDAnthropic      = "anthropic"
	IDGoogleAIStudio = "google-ai-studio"
	IDVertex         = "google-vertex"
	IDMistral        = "mistral"
	IDGroq           = "groq"
	IDXAI            = "xai"
	IDDeepSeek       = "deepseek"
	IDPerplexity     = "perplexity"
	IDMoonshot       = "moonshot"
	IDNovita         = "novita"
	IDAlibaba        = "alibaba"
	IDNebius         = "nebius"
	IDZAI            = "zai"
	IDTogether       = "together"
	IDCloudRift      = "cloudrift"
	IDInferenceNet   = "inference.net"
	IDRouteWay       = "routeway"
	IDLLMGateway     = "llmgateway"
	IDCustom         = "custom"
)

var providers = []Provider{
	{ID: IDOpenAI, Name: "OpenAI", Streaming: true, Cancellation: true, EnvKey: "OPENAI_API_KEY", BaseURL: "https://api.openai.com"},
	{ID: IDAnthropic, Name: "Anthropic", Streaming: true, Cancellation: true, EnvKey: "ANTHROPIC_API_KEY", BaseURL: "https://api.anthropic.com"},
	{ID: IDGoogleAIStudio, Name: "Google AI Studio", Streaming: true, Cancellation: false, EnvKey: "GOOGLE_AI_STUDIO_API_KEY", BaseURL: "https://generativelanguage.googleapis.com"},
	{ID: IDVertex, Name: "Google Vertex", Streaming: true, Cancellation: false, EnvKey: "VERTEX_API_KEY", BaseURL: "https://generativelanguage.googleapis.com"},
	{ID: IDMistral, Name: "Mistral", Streaming: true, Cancellation: true, EnvKey: "MISTRAL_API_KEY", BaseURL: "https://api.mistral.ai"},
	{ID: IDGroq, Name: "Groq", Streaming: true, Cancellation: true, EnvKey: "GROQ_API_KEY", BaseURL: "https://api.groq.com/openai"},
	{ID: IDXAI, Name: "xAI", Streaming: true, Cancellation: true, EnvKey: "X_AI_API_KEY", BaseURL: "https://api.x.ai"},
	{ID: IDDeepSeek, Name: "DeepSeek", Streaming: true, Cancellation: true, EnvKey: "DEEPSEEK_API_KEY", BaseURL: "https://api.deepseek.com"},
	{ID: IDPerplexity, Name: "Perplexity", Streaming: true, Cancellation: true, EnvKey: "PERPLEXITY_API_KEY", BaseURL: "https://api.perplexity.ai"},
	{ID: IDMoonshot, Name: "Moonshot", Streaming: true, Cancellation: true, EnvKey: "MOONSHOT_API_KEY", BaseURL: "https://api.moonshot.ai"},
	{ID: IDNovita, Name: "Novita AI", Streaming: true, Cancellation: true, EnvKey: "NOVITA_AI_API_KEY", BaseURL: "https://api.novita.ai/v3/openai"},
	{ID: IDAlibaba, Name: "Alibaba", Streaming: true, Cancellation: true, EnvKey: "ALIBABA_API_KEY", BaseURL: "https://dashscope-intl.aliyuncs.com/compatible-mode"},
	{ID: IDNebius, Name: "Nebius", Streaming: true, Cancellation: true, EnvKey: "NEBIUS_API_KEY", BaseURL: "https://api.studio.nebius.ai"},
	{ID: IDZAI, Name: "Z.ai", Streaming: true, Cancellation: true, EnvKey: "Z_AI_API_KEY", BaseURL: "https://api.z.ai"},
	{ID: IDTogether, Name: "Together AI", Streaming: true, Cancellation: true, EnvKey: "TOGETHER_AI_API_KEY", BaseURL: "https://api.together.xyz"},
	{ID: IDCloudRift, Name: "CloudRift", Streaming: true, Cancellation: true, EnvKey: "CLOUD_RIFT_API_KEY", BaseURL: "https://inference.cloudrift.ai"},
	{ID: IDInferenceNet, Name: "inference.net", Streaming: true, Cancellation: true, EnvKey: "INFERENCE_NET_API_KEY", BaseURL: "https://api.inference.net"},
	{ID: IDRouteWay, Name: "RouteWay", Streaming: true, Cancellation: true, EnvKey: "LLMGATEWAY_API_KEY", BaseURL: "https://api.routeway.ai"},
	{ID: IDLLMGateway, Name: "LLM Gateway", Streaming: true, Cancellation: true, EnvKey: "LLMGATEWAY_API_KEY"},
	{ID: IDCustom, Name: "Custom", Streaming: true, Cancellation: true},
}
