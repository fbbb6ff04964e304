package config

import (
	"strings"
	"time"
)

const (
	callbackPortEnvVar = "OAUTH_CALLBACK_PORT"
	timeoutEnvVar      = "OAUTH_CALLBACK_TIMEOUT"
)

// EnvVars holds the raw environment values. Unset variables fall back to envDefault.
type EnvVars struct {
	AppName         string `env:"APP_NAME" envDefault:"OAuth Callback"`
	Env             string `env:"ENV" envDefault:"DEV"`
	CallbackAddress string `env:"OAUTH_CALLBACK_ADDRESS" envDefault:"127.0.0.1"`
	CallbackPort    int    `env:"OAUTH_CALLBACK_PORT" envDefault:"2501"`
	LaunchCommand   string `env:"OAUTH_CALLBACK_COMMAND"`
	TimeoutSeconds  int    `env:"OAUTH_CALLBACK_TIMEOUT" envDefault:"0"`
	Title           string `env:"OAUTH_CALLBACK_TITLE" envDefault:"OAuth Authorization"`
	TemplateFile    string `env:"OAUTH_CALLBACK_TEMPLATE"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile         string `env:"LOG_FILE"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.Env)
}

func (e EnvVars) IsDev() bool {
	return e.GetEnv() == "DEV"
}

func (e EnvVars) GetTimeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}
