package ctxkey

const (
	// RequestId is the per-request unique identifier, echoed back to callers.
	// Set in: middleware/request-id. Read in: relay/meta and error envelopes.
	RequestId = "X-Request-Id"

	// KeyRequestBody caches the raw request body so it can be re-read.
	// Set/read in: common.GetRequestBody.
	KeyRequestBody = "key_request_body"

	// ApiKey holds the authenticated *model.ApiKey for the request.
	// Set in: middleware/auth.TokenAuth.
	ApiKey = "api_key"

	// Project holds the *model.Project owning the authenticated key.
	Project = "project"

	// Organization holds the *model.Organization owning the project.
	Organization = "organization"

	// Meta caches the assembled *meta.Meta so it is built once per request.
	Meta = "meta"

	// Source is the normalised x-source header value, persisted on the log.
	Source = "source"

	// CustomHeaders collects x-llmgateway-* headers preserved verbatim.
	CustomHeaders = "custom_headers"

	// DebugMode is true when the caller sent x-debug: true; enables raw
	// request/response capture on the log record.
	DebugMode = "debug_mode"
)
