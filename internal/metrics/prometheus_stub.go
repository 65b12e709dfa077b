//go:build noprom

package metrics

// Builds tagged noprom keep the noop recorder and skip the exporter.
func enablePrometheus(addr string) error { return nil }
