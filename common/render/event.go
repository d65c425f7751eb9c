package render

import "net/http"

// customEvent renders a raw SSE frame without gin's default event encoding,
// which would escape the payload.
type customEvent struct {
	Data string
}

var contentType = []string{"text/event-stream"}
var noCache = []string{"no-cache"}

func (r customEvent) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	_, err := w.Write([]byte(r.Data + "\n\n"))
	return err
}

func (r customEvent) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	header["Content-Type"] = contentType
	if _, exist := header["Cache-Control"]; !exist {
		header["Cache-Control"] = noCache
	}
}
