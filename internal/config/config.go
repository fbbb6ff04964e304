package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	apperrors "github.com/jrsteele09/go-oauth-callback/internal/errors"
)

type Config interface {
	EnvConfig
	CallbackConfig
	LogConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	IsDev() bool
}

type mainConfig struct {
	EnvVars
}

// New loads the configuration from the environment.
func New() (Config, error) {
	var vars EnvVars
	if err := env.Parse(&vars); err != nil {
		return nil, fmt.Errorf("[config New] parse env: %w", err)
	}
	if err := vars.validate(); err != nil {
		return nil, err
	}
	return mainConfig{EnvVars: vars}, nil
}

func (e EnvVars) validate() error {
	if e.CallbackPort < 0 || e.CallbackPort > 65535 {
		return apperrors.Wrapf(apperrors.ErrInvalidPort, "[config] %s=%d", callbackPortEnvVar, e.CallbackPort)
	}
	if e.TimeoutSeconds < 0 {
		return apperrors.Wrapf(apperrors.ErrInvalidTimeout, "[config] %s=%d", timeoutEnvVar, e.TimeoutSeconds)
	}
	return nil
}
