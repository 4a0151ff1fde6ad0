package log

// Logger receives protocol events as connections produce them.
// Events arrive from transport, wire and exchange code paths
// concurrently, so implementations must be safe for concurrent use.
// Log runs on the connection's own goroutines; slow sinks should
// queue events rather than block.
type Logger interface {
	Log(event Event)
}

// LoggerFunc adapts a function to the Logger interface.
type LoggerFunc func(event Event)

// Log calls f with the event.
func (f LoggerFunc) Log(event Event) { f(event) }

// NoopLogger drops every event. The zero value is ready to use and
// stands in wherever capture is disabled.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction checks.
var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
)
