package core

// Logger is any service that can log & report application events.
//
// Expected args: error, map[string]interface{} (extra data), or the acting user (reported as the
// affected person by implementations that support it).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the user an event is reported for.
type Person struct {
	ID       string
	Username string
	Email    string
}
