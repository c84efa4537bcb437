// Package api exposes medication search over HTTP.
//
// Routes:
//
//	GET  /api/medications?query=<text>&k=<n>[&mode=single]
//	POST /api/catalog/refresh
//
// Search responses are {"results": [...]}. Failures are {"error": "..."} with
// 400 for invalid arguments, 502 when the document store or embedding service
// fails, 503 when the request was cancelled and 500 otherwise.
package api
