package ports

// Notifier is the user-facing notification sink.
type Notifier interface {
	Info(msg string)
	Warning(msg string)
	Error(msg string)
}
