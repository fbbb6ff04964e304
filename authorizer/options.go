package authorizer

import (
	"context"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/jrsteele09/go-oauth-callback/render"
)

const (
	DefaultAddress         = "127.0.0.1"
	DefaultPort            = 2501
	DefaultTitle           = "OAuth Authorization"
	DefaultShutdownTimeout = 5 * time.Second

	// TokenParam is the query parameter read by DefaultTokenExtractor.
	TokenParam = "oauth_token"
)

// TokenExtractor returns the token carried by a callback request. An empty token
// means the authorization was denied; an error fails the session.
type TokenExtractor func(r *http.Request) (string, error)

// DefaultTokenExtractor reads the oauth_token query parameter.
func DefaultTokenExtractor(r *http.Request) (string, error) {
	return r.URL.Query().Get(TokenParam), nil
}

// Launcher presents the authorization URL to the user.
type Launcher interface {
	Launch(ctx context.Context, url string) error
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, url string) error

func (f LauncherFunc) Launch(ctx context.Context, url string) error {
	return f(ctx, url)
}

// DefaultSignals are the termination signals intercepted while a session runs.
// SIGKILL cannot be caught and is not part of the set.
func DefaultSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}

// Option configures a Session in New.
type Option func(*Session)

// WithAddress sets the address the callback listener binds to.
func WithAddress(address string) Option {
	return func(s *Session) { s.address = address }
}

// WithPort sets the callback port. 0 binds an ephemeral port.
func WithPort(port int) Option {
	return func(s *Session) { s.port = port }
}

// WithCommand sets the launch command template; {{URL}} is replaced with the authorization URL.
func WithCommand(command string) Option {
	return func(s *Session) { s.command = command }
}

// WithTitle sets the title of the response page.
func WithTitle(title string) Option {
	return func(s *Session) { s.title = title }
}

// WithTemplate sets an html/template used for the callback response page.
func WithTemplate(text string) Option {
	return func(s *Session) { s.template = text }
}

// WithTimeout sets how long to wait for the callback. Zero or negative disables the timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Session) { s.timeout = timeout }
}

// WithTimeoutSeconds is WithTimeout in whole seconds.
func WithTimeoutSeconds(seconds int) Option {
	return WithTimeout(time.Duration(seconds) * time.Second)
}

// WithTokenExtractor replaces DefaultTokenExtractor.
func WithTokenExtractor(extract TokenExtractor) Option {
	return func(s *Session) { s.extract = extract }
}

// WithLauncher replaces the command launcher.
func WithLauncher(l Launcher) Option {
	return func(s *Session) { s.launcher = l }
}

// WithRenderer replaces the template based response renderer. It takes precedence over WithTemplate.
func WithRenderer(r render.Renderer) Option {
	return func(s *Session) { s.renderer = r }
}

// WithSignals replaces the intercepted signals. No signals disables interception.
func WithSignals(signals ...os.Signal) Option {
	return func(s *Session) { s.signals = signals }
}

// WithShutdownTimeout bounds how long teardown waits for in-flight responses.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Session) { s.shutdownTimeout = timeout }
}
