// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by the presence agent. Pings are fire-and-forget, so
// a slow server costs one tick, never the loop.
var HTTPClient = &http.Client{
	Timeout: 10 * time.Second,
}
