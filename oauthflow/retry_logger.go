package oauthflow

import (
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
)

// retryLogger sends retryablehttp logs to zerolog. Request level chatter goes to debug.
type retryLogger struct{}

var _ retryablehttp.LeveledLogger = retryLogger{}

func (retryLogger) Error(msg string, keysAndValues ...interface{}) {
	log.Error().Fields(keysAndValues).Msg(msg)
}

func (retryLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	log.Warn().Fields(keysAndValues).Msg(msg)
}
