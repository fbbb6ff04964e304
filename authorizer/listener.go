package authorizer

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// listener serves the callback route until Shutdown. Done closes once the server has stopped.
type listener struct {
	ln              net.Listener
	server          *http.Server
	shutdownTimeout time.Duration
	logger          zerolog.Logger

	once sync.Once
	done chan struct{}

	mu       sync.Mutex
	serveErr error
}

func listen(address string, port int, handler http.Handler, shutdownTimeout time.Duration, logger zerolog.Logger) (*listener, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/", handler)

	return &listener{
		ln: ln,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
		done:            make(chan struct{}),
	}, nil
}

func (l *listener) serve() {
	go func() {
		l.logger.Debug().Str("addr", l.ln.Addr().String()).Msg("Callback listener serving")
		if err := l.server.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.mu.Lock()
			l.serveErr = err
			l.mu.Unlock()
			l.Shutdown()
		}
	}()
}

// Shutdown stops the server in the background. Safe to call from a request handler and more than once.
func (l *listener) Shutdown() {
	l.once.Do(func() {
		go func() {
			defer close(l.done)
			ctx, cancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
			defer cancel()
			if err := l.server.Shutdown(ctx); err != nil {
				l.logger.Warn().Err(err).Msg("Callback listener did not shut down in time, closing")
				_ = l.server.Close()
			}
			_ = l.ln.Close()
			l.logger.Debug().Msg("Callback listener stopped")
		}()
	})
}

func (l *listener) Done() <-chan struct{} {
	return l.done
}

func (l *listener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.serveErr
}

func (l *listener) Addr() *net.TCPAddr {
	addr, _ := l.ln.Addr().(*net.TCPAddr)
	return addr
}
