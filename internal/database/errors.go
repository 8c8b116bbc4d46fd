package database

// ConfigError reports a connection string that can never work, so callers
// fail fast instead of retrying.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "database config: " + e.Msg
}
