package config

type LogConfig interface {
	GetLogLevel() string
	GetLogFile() string
}

var _ LogConfig = EnvVars{}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetLogFile() string {
	return e.LogFile
}
