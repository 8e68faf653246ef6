// Package api implements the HTTP handlers for the queue server: the
// OpenAI-compatible client endpoints, the task polling endpoints, and the
// worker claim/report endpoints. Handlers translate between wire shapes and
// the queue engine; none of them hold state of their own.
package api
