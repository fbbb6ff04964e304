package config

import "time"

type CallbackConfig interface {
	GetCallbackAddress() string
	GetCallbackPort() int
	GetLaunchCommand() string
	GetTimeout() time.Duration
	GetTitle() string
	GetTemplateFile() string
}

var _ CallbackConfig = EnvVars{}

func (e EnvVars) GetCallbackAddress() string {
	return e.CallbackAddress
}

func (e EnvVars) GetCallbackPort() int {
	return e.CallbackPort
}

// GetLaunchCommand returns the configured launch template, or "" for the platform default.
func (e EnvVars) GetLaunchCommand() string {
	return e.LaunchCommand
}

func (e EnvVars) GetTitle() string {
	return e.Title
}

func (e EnvVars) GetTemplateFile() string {
	return e.TemplateFile
}
