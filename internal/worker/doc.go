// Package worker implements the inference worker: a loop that claims tasks
// from the queue server over HTTP, executes them against the Ollama backend,
// and reports success or failure exactly once per claim. Workers are
// stateless; any number of them can run against the same server.
package worker
