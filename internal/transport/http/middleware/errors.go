package middleware

import "net/http"

// WriteErrFunc renders an error response; response.WriteError in production.
type WriteErrFunc func(http.ResponseWriter, *http.Request, error)
