/*
Package api provides the HTTP surface of relay's write path.

Routes:

	POST   /content                     create content (201, 400, 500)
	GET    /content                     latest content, newest first
	GET    /content/{id}                single content record (404 if absent)
	POST   /content/{id}/like           add one like (404 if absent)
	DELETE /cache/{namespace}           purge a cache namespace
	DELETE /cache/{namespace}/{pattern} purge keys matching a glob in a namespace
	GET    /health, /ready, /live       probes
	GET    /metrics                     Prometheus metrics

Every error response has the body {"error": "..."}. The router is built on
chi with CORS, panic recovery and a request-scoped zerolog logger.
*/
package api
