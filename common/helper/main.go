package helper

import (
	"fmt"

	"github.com/llmgateway/llmgateway/common/random"
)

const RequestIdKey = "X-Request-Id"

// GenRequestID produces the 40-character request identifier used when the
// caller does not supply an x-request-id header.
func GenRequestID() string {
	return random.GetRandomString(40)
}

// MessageWithRequestId appends the request id so callers can report it.
func MessageWithRequestId(message string, id string) string {
	if id == "" {
		return message
	}
	return fmt.Sprintf("%s (request id: %s)", message, id)
}
