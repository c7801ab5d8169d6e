// Package httpserver provides the HTTP API of the EmberTalk key server.
//
// The protocol surface is three routes:
//
//	POST /challenge  - request an enrollment challenge for a public key
//	POST /response   - answer a challenge and claim a name
//	GET  /key/{name} - look up the public key registered under a name
//
// The server additionally exposes operational endpoints (/livez, /readyz,
// /drain, /undrain, optional pprof under /debug) and runs a separate
// Prometheus metrics listener.
package httpserver
