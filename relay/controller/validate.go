package controller

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/llmgateway/llmgateway/common/config"
	"github.com/llmgateway/llmgateway/model"
	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/router"
)

var sourcePattern = regexp.MustCompile(`^[A-Za-z0-9./-]+$`)

// validateRequest runs the schema-level admission checks that do not depend
// on the routing decision.
func validateRequest(request *relaymodel.GeneralRequest) *router.Error {
	if request.Model == "" {
		return admissionError(errors.New("model is required"))
	}
	if len(request.Messages) == 0 {
		return admissionError(errors.New("messages must not be empty"))
	}
	for i := range request.Messages {
		switch request.Messages[i].Role {
		case relaymodel.RoleSystem, relaymodel.RoleUser, relaymodel.RoleAssistant, relaymodel.RoleTool:
		default:
			return admissionError(errors.Errorf("invalid message role %q", request.Messages[i].Role))
		}
	}
	if rf := request.ResponseFormat; rf != nil {
		if rf.Type != relaymodel.ResponseFormatText && rf.Type != relaymodel.ResponseFormatJSONObject {
			return admissionError(errors.Errorf("invalid response_format type %q", rf.Type))
		}
	}
	switch request.ReasoningEffort {
	case "", "low", "medium", "high":
	default:
		return admissionError(errors.Errorf("invalid reasoning_effort %q", request.ReasoningEffort))
	}
	return nil
}

// normalizeSource strips the scheme and leading www from the x-source header
// and rejects anything outside the allowed character set.
func normalizeSource(raw string) (string, error) {
	source := strings.TrimSpace(raw)
	if source == "" {
		return "", nil
	}
	source = strings.TrimPrefix(source, "https://")
	source = strings.TrimPrefix(source, "http://")
	source = strings.TrimPrefix(source, "www.")
	if !sourcePattern.MatchString(source) {
		return "", errors.Errorf("invalid x-source header %q", raw)
	}
	return source, nil
}

// validatePolicy runs the admission checks that need identity and, where
// noted, the routing result.
func validatePolicy(m *meta.Meta, request *relaymodel.GeneralRequest) *router.Error {
	normalized, err := normalizeSource(m.Source)
	if err != nil {
		return admissionError(err)
	}
	m.Source = normalized

	if len(m.CustomHeaders) > 0 && config.Hosted && config.PaidMode &&
		m.Organization.Plan != model.PlanPro {
		return &router.Error{
			StatusCode: http.StatusPaymentRequired,
			Type:       relaymodel.ErrTypePaymentRequired,
			Err:        errors.New("custom headers require the pro plan"),
		}
	}
	return nil
}

// validateSelection runs the admission checks that depend on the selected
// model and mapping.
func validateSelection(m *meta.Meta, request *relaymodel.GeneralRequest) *router.Error {
	if request.ResponseFormat != nil &&
		request.ResponseFormat.Type == relaymodel.ResponseFormatJSONObject {
		if m.Model != nil && !m.Model.JSONOutput {
			return admissionError(errors.Errorf("model %q does not support JSON output mode", m.RequestedModel))
		}
	}

	if request.ReasoningEffort != "" && m.Model != nil && !m.Model.SupportsReasoning() {
		return admissionError(errors.Errorf("model %q does not support reasoning_effort", m.RequestedModel))
	}

	if m.Model != nil && m.Model.Deactivated(time.Now()) {
		return &router.Error{
			StatusCode: http.StatusGone,
			Type:       relaymodel.ErrTypeGone,
			Err:        errors.Errorf("model %q has been deactivated", m.Model.ID),
		}
	}

	if m.Mapping != nil && m.Mapping.MaxOutput > 0 {
		maxTokens := request.EffectiveMaxTokens(config.DefaultMaxTokens)
		if maxTokens > m.Mapping.MaxOutput {
			return admissionError(errors.Errorf(
				"max_tokens %d exceeds the model limit of %d", maxTokens, m.Mapping.MaxOutput))
		}
	}

	if m.IsStream && m.Provider != nil && m.Mapping != nil &&
		!m.Mapping.SupportsStreaming(m.Provider) {
		return admissionError(errors.Errorf("model %q does not support streaming", m.RequestedModel))
	}
	return nil
}

func admissionError(err error) *router.Error {
	return &router.Error{
		StatusCode: http.StatusBadRequest,
		Type:       relaymodel.ErrTypeInvalidRequest,
		Err:        err,
	}
}
