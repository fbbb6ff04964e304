// Package authorizer runs the interactive "open browser, wait for redirect" authorization flow.
//
// A Session binds a local callback listener, launches the authorization URL and blocks
// until the provider redirects back with a token, the user denies access, the timeout
// expires or the process receives a termination signal. Sessions are single-use.
package authorizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-oauth-callback/internal/errors"
	"github.com/jrsteele09/go-oauth-callback/launcher"
	"github.com/jrsteele09/go-oauth-callback/render"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Session is one authorization attempt. Configuration is fixed by New.
type Session struct {
	id              string
	url             string
	address         string
	port            int
	command         string
	title           string
	template        string
	timeout         time.Duration
	shutdownTimeout time.Duration
	signals         []os.Signal
	extract         TokenExtractor
	launcher        Launcher
	renderer        render.Renderer

	used  atomic.Bool
	state state

	mu          sync.RWMutex
	callbackURL string
}

// New creates a session for the authorization URL.
func New(url string, opts ...Option) (*Session, error) {
	if url == "" {
		return nil, apperrors.ErrMissingURL
	}

	s := &Session{
		id:              uuid.NewString(),
		url:             url,
		address:         DefaultAddress,
		port:            DefaultPort,
		title:           DefaultTitle,
		shutdownTimeout: DefaultShutdownTimeout,
		signals:         DefaultSignals(),
		extract:         DefaultTokenExtractor,
		state:           state{status: StatusWaiting},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.port < 0 || s.port > 65535 {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidPort, "[authorizer New] port %d", s.port)
	}
	if s.address == "" {
		s.address = DefaultAddress
	}
	if s.title == "" {
		s.title = DefaultTitle
	}
	if s.timeout < 0 {
		s.timeout = 0
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = DefaultShutdownTimeout
	}
	if s.extract == nil {
		s.extract = DefaultTokenExtractor
	}
	if s.command == "" {
		s.command = launcher.DefaultCommand()
	}
	if s.launcher == nil {
		s.launcher = launcher.Command{Template: s.command}
	}
	if s.renderer == nil {
		if s.template == "" {
			s.renderer = render.Default()
		} else {
			tmpl, err := render.Parse(s.template)
			if err != nil {
				return nil, fmt.Errorf("[authorizer New] invalid template: %w", err)
			}
			s.renderer = tmpl
		}
	}
	return s, nil
}

// ID identifies the session in log lines.
func (s *Session) ID() string { return s.id }

// URL returns the authorization URL the session launches.
func (s *Session) URL() string { return s.url }

// Timeout returns the effective timeout; 0 means the session waits indefinitely.
func (s *Session) Timeout() time.Duration { return s.timeout }

// Status returns the current status of the session.
func (s *Session) Status() Status {
	status, _, _ := s.state.snapshot()
	return status
}

// Token returns the token received by a successful callback.
func (s *Session) Token() string {
	_, token, _ := s.state.snapshot()
	return token
}

// CallbackURL returns the URL the provider must redirect to. It is empty until Authorize has bound the listener.
func (s *Session) CallbackURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callbackURL
}

// Authorize launches the authorization URL and waits for the outcome. It returns the
// token on success, ErrAuthorizationDenied, ErrTimeout, or a *FailureError. Cancelling
// ctx stops the session like a termination signal.
func (s *Session) Authorize(ctx context.Context) (token string, err error) {
	if !s.used.CompareAndSwap(false, true) {
		return "", ErrSessionUsed
	}
	s.state.reset()
	logger := log.Logger.With().Str("session_id", s.id).Logger()

	defer func() {
		if r := recover(); r != nil {
			cause := &FailureError{Op: "authorize", Err: fmt.Errorf("panic: %v", r)}
			s.state.commit(StatusFailure, "", cause)
			token, err = "", cause
		}
		logger.Info().Str("status", string(s.Status())).AnErr("result", err).Msg("Authorization finished")
	}()

	var l *listener
	stop := func() { l.Shutdown() }
	handler := chainMiddleware(s.handleCallback(logger, stop),
		loggingMiddleware(logger),
		recoverMiddleware(func(err error) {
			s.state.commit(StatusFailure, "", &FailureError{Op: "callback", Err: err})
			// Resolved either by this commit or before the panic, so the listener must stop.
			stop()
		}),
		frameSecurityMiddleware,
	)
	l, err = listen(s.address, s.port, handler, s.shutdownTimeout, logger)
	if err != nil {
		cause := &FailureError{Op: "listen", Err: err}
		s.state.commit(StatusFailure, "", cause)
		return "", cause
	}

	var (
		wd *watchdog
		ih *interruptHandler
	)
	defer func() {
		wd.Stop()
		l.Shutdown()
		<-l.Done()
		ih.Restore()
	}()

	s.setCallbackURL(l.Addr())
	l.serve()
	logger.Info().Str("addr", l.Addr().String()).Msg("Waiting for authorization callback")

	ih = installInterruptHandler(s.signals, func(sig os.Signal) {
		logger.Warn().Str("signal", sig.String()).Msg("Authorization interrupted")
		l.Shutdown()
	})
	if s.timeout > 0 {
		wd = startWatchdog(s.timeout, func() {
			logger.Warn().Dur("timeout", s.timeout).Msg("Authorization timed out")
			l.Shutdown()
		})
	}

	if err := s.launcher.Launch(ctx, s.url); err != nil {
		cause := &FailureError{Op: "launch", Err: err}
		s.state.commit(StatusFailure, "", cause)
		return "", cause
	}

	select {
	case <-l.Done():
	case <-ctx.Done():
		l.Shutdown()
		<-l.Done()
	}

	// The watchdog flag wins over any status committed in the meantime.
	if wd.Expired() {
		s.state.commit(StatusFailure, "", ErrTimeout)
		return "", ErrTimeout
	}

	status, token, cause := s.state.snapshot()
	if status == StatusWaiting {
		s.state.commit(StatusFailure, "", s.stopCause(ctx, ih, l))
		status, token, cause = s.state.snapshot()
	}
	return outcome(status, token, cause)
}

func outcome(status Status, token string, cause error) (string, error) {
	switch status {
	case StatusSuccess:
		return token, nil
	case StatusDenied:
		return "", ErrAuthorizationDenied
	default:
		var failure *FailureError
		if apperrors.As(cause, &failure) || apperrors.Is(cause, ErrTimeout) {
			return "", cause
		}
		return "", &FailureError{Op: "wait", Err: cause}
	}
}

// stopCause explains why the listener stopped while the session was still waiting.
func (s *Session) stopCause(ctx context.Context, ih *interruptHandler, l *listener) error {
	if sig := ih.Signal(); sig != nil {
		return &FailureError{Op: "wait", Err: fmt.Errorf("%w: %s", ErrInterrupted, sig)}
	}
	if err := ctx.Err(); err != nil {
		return &FailureError{Op: "wait", Err: err}
	}
	if err := l.Err(); err != nil {
		return &FailureError{Op: "serve", Err: err}
	}
	return &FailureError{Op: "wait", Err: errors.New("callback listener stopped")}
}

func (s *Session) setCallbackURL(addr *net.TCPAddr) {
	host := s.address
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		host = "localhost"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbackURL = "http://" + net.JoinHostPort(host, strconv.Itoa(addr.Port)) + "/"
}

// handleCallback commits the outcome of the first request and then calls stop.
func (s *Session) handleCallback(logger zerolog.Logger, stop func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := s.extractToken(r)

		var committed bool
		switch {
		case err != nil:
			committed = s.state.commit(StatusFailure, "", &FailureError{Op: "callback", Err: err})
		case token != "":
			committed = s.state.commit(StatusSuccess, token, nil)
		default:
			committed = s.state.commit(StatusDenied, "", nil)
		}

		status, current, cause := s.state.snapshot()
		if committed {
			// Deferred so a panicking renderer still releases the listener.
			defer stop()
			logger.Info().Str("status", string(status)).Msg("Authorization callback handled")
			if err != nil {
				logger.Err(err).Msg("Token extraction failed")
			}
		} else {
			logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("Ignoring callback, session already resolved")
		}
		s.respond(w, logger, status, current, cause)
	}
}

func (s *Session) extractToken(r *http.Request) (token string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("token extractor panicked: %v", rec)
		}
	}()
	return s.extract(r)
}

func (s *Session) respond(w http.ResponseWriter, logger zerolog.Logger, status Status, token string, cause error) {
	code := http.StatusOK
	if status != StatusSuccess {
		code = http.StatusInternalServerError
	}

	view := render.View{Title: s.title, Status: string(status), Token: token}
	if cause != nil {
		view.Error = cause.Error()
	}
	var body bytes.Buffer
	if err := s.renderer.Render(&body, view); err != nil {
		logger.Err(err).Msg("Failed to render callback response")
		body.Reset()
		body.WriteString(http.StatusText(code))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write(body.Bytes()); err != nil {
		logger.Warn().Err(err).Msg("Failed to write callback response")
	}
}
