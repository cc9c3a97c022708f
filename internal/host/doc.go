// Package host is an in-memory rendering host: a transactional environment,
// scripted templates and results, views, and the nodes they render into.
// It stands in for a real surface when driving the scheduler from the CLI,
// the debug server and tests.
package host
