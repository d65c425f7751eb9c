package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"
)

// StringData writes a single SSE line (already prefixed, e.g. "data: {...}")
// and flushes it to the client immediately.
func StringData(c *gin.Context, str string) {
	str = strings.TrimPrefix(str, "data:")
	str = strings.TrimSuffix(str, "\r")
	str = strings.TrimSpace(str)
	c.Render(-1, customEvent{Data: "data: " + str})
	c.Writer.Flush()
}

// ObjectData marshals the object and writes it as an SSE data frame.
func ObjectData(c *gin.Context, object any) error {
	jsonData, err := json.Marshal(object)
	if err != nil {
		return errors.Wrap(err, "error marshalling object")
	}
	StringData(c, string(jsonData))
	return nil
}

// Event writes a named SSE event (e.g. "event: done") followed by its data.
func Event(c *gin.Context, event string, data string) {
	c.Render(-1, customEvent{Data: fmt.Sprintf("event: %s\ndata: %s", event, data)})
	c.Writer.Flush()
}

// Done emits the terminal done event and [DONE] sentinel.
func Done(c *gin.Context) {
	Event(c, "done", "[DONE]")
}
