package router

// Error is a routing failure carrying the HTTP status and wire error type.
type Error struct {
	StatusCode int
	Type       string
	Err        error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "routing error"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
