// Package api exposes the check pipeline as JSON over HTTP.
//
// Routes:
//
//	POST /api/v1/check   check a code fragment (also mounted at /check)
//	GET  /api/v1/languages list canonical languages and their aliases
//	GET  /health          liveness plus a timestamp, no API key needed
//
// Every request gets a correlation id from the X-Request-Id header or a fresh
// uuid. Non-health routes require the configured API key header to be
// present; the key itself is not validated here.
package api
