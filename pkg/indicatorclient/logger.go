package indicatorclient

import "time"

// Logger defines the logging surface the client relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}

// Observer receives one callback per HTTP round trip and per status poll.
// statusCode is 0 when no response was received.
type Observer interface {
	ObserveRequest(method, path string, statusCode int, elapsed time.Duration, err error)
	ObservePoll(taskID TaskHandle, status TaskStatus)
}
