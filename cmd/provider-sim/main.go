package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/jrsteele09/go-oauth-callback/internal/logging"
	"github.com/jrsteele09/go-oauth-callback/internal/providersim"
	"github.com/rs/zerolog/log"
)

type options struct {
	Addr     string `long:"addr" description:"Address to listen on (default 0.0.0.0:7779)"`
	LogLevel string `long:"log-level" default:"debug" description:"Log level"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
	if _, err := logging.Setup(logging.Options{Level: opts.LogLevel}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if opts.Addr == "" {
		opts.Addr = providersim.DefaultAddr
	}
	server := &http.Server{Addr: opts.Addr, Handler: providersim.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go listenAndServe(server)
	waitForStopSignal()
	if err := shutdown(server); err != nil {
		log.Err(err).Msg("Provider simulator did not stop cleanly")
		os.Exit(1)
	}
	log.Info().Msg("Provider simulator stopped")
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("Provide a token for a success, otherwise a failure will be triggered")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
