package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/common-nighthawk/go-figure"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jessevdk/go-flags"
	"github.com/jrsteele09/go-oauth-callback/authorizer"
	"github.com/jrsteele09/go-oauth-callback/internal/config"
	"github.com/jrsteele09/go-oauth-callback/internal/logging"
	"github.com/jrsteele09/go-oauth-callback/oauthflow"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	exitOK = iota
	exitFailure
	exitDenied
	exitTimeout
	exitUsage
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			exitCode = exitFailure
		}
	}()

	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, err)
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	c, err := config.New()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	level, file := opts.LogLevel, opts.LogFile
	if level == "" {
		level = c.GetLogLevel()
	}
	if file == "" {
		file = c.GetLogFile()
	}
	closeLog, err := logging.Setup(logging.Options{Level: level, File: file, Console: stderr})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer closeLog()

	if !opts.Quiet {
		displayAppname(stderr, c.GetAppName())
	}

	switch parser.Active.Name {
	case "token":
		err = runToken(ctx, c, opts.Token, stdout)
	case "code":
		err = runCode(ctx, c, opts.Code, stdout)
	}
	if err != nil {
		log.Err(err).Msg("Authorization failed")
	}
	return exitCodeFor(err)
}

func runToken(ctx context.Context, c config.Config, cmd tokenCommand, stdout io.Writer) error {
	opts, err := cmd.sessionOpts(c)
	if err != nil {
		return err
	}
	session, err := authorizer.New(cmd.Args.URL, opts...)
	if err != nil {
		return err
	}
	token, err := session.Authorize(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}

func runCode(ctx context.Context, c config.Config, cmd codeCommand, stdout io.Writer) error {
	oauthConfig := &oauth2.Config{
		ClientID:     cmd.ClientID,
		ClientSecret: cmd.ClientSecret,
		Scopes:       cmd.Scopes,
		Endpoint:     oauth2.Endpoint{AuthURL: cmd.AuthURL, TokenURL: cmd.TokenURL},
	}

	var verifier *oidc.IDTokenVerifier
	if cmd.Issuer != "" {
		provider, err := oidc.NewProvider(ctx, cmd.Issuer)
		if err != nil {
			return fmt.Errorf("oidc discovery: %w", err)
		}
		oauthConfig.Endpoint = provider.Endpoint()
		if len(oauthConfig.Scopes) == 0 {
			oauthConfig.Scopes = []string{oidc.ScopeOpenID, "profile", "email"}
		}
		verifier = provider.Verifier(&oidc.Config{ClientID: cmd.ClientID})
	}
	if oauthConfig.Endpoint.AuthURL == "" || oauthConfig.Endpoint.TokenURL == "" {
		return errors.New("--auth-url and --token-url are required without --issuer")
	}

	extra, err := cmd.templateOpts(c)
	if err != nil {
		return err
	}

	result, err := oauthflow.Run(ctx, oauthflow.Config{
		OAuth2:   oauthConfig,
		Address:  cmd.address(c),
		Port:     cmd.port(c),
		Timeout:  cmd.timeout(c),
		Title:    cmd.title(c),
		Launcher: cmd.launcher(c),
		Verifier: verifier,
		Retries:  cmd.Retries,
		Options:  extra,
	})
	if err != nil {
		return err
	}

	if cmd.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Token)
	}
	fmt.Fprintln(stdout, result.Token.AccessToken)
	return nil
}

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, authorizer.ErrAuthorizationDenied):
		return exitDenied
	case errors.Is(err, authorizer.ErrTimeout):
		return exitTimeout
	default:
		return exitFailure
	}
}

func displayAppname(w io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(w, myFigure.String())
}
