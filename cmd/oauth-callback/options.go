package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jrsteele09/go-oauth-callback/authorizer"
	"github.com/jrsteele09/go-oauth-callback/internal/config"
	"github.com/jrsteele09/go-oauth-callback/launcher"
)

const unset = -1

type options struct {
	LogLevel string `long:"log-level" description:"Log level (debug, info, warn, error); overrides LOG_LEVEL"`
	LogFile  string `long:"log-file" description:"Also write logs to this file, rotated; overrides LOG_FILE"`
	Quiet    bool   `short:"q" long:"quiet" description:"Do not print the banner"`

	Token tokenCommand `command:"token" description:"Wait for a redirect carrying an oauth_token and print it"`
	Code  codeCommand  `command:"code" description:"Run the OAuth2 authorization code flow with PKCE and print the access token"`
}

// sessionOptions are shared by both commands. Unset values fall back to the environment configuration.
type sessionOptions struct {
	Address      string `short:"a" long:"address" description:"Address the callback listener binds to"`
	Port         int    `short:"p" long:"port" default:"-1" description:"Callback port, 0 picks a free port"`
	Command      string `short:"c" long:"command" description:"Launch command, {{URL}} is replaced with the authorization URL"`
	Browser      bool   `short:"b" long:"browser" description:"Open the system browser instead of running a launch command"`
	Timeout      int    `short:"t" long:"timeout" default:"-1" description:"Seconds to wait for the callback, 0 waits forever"`
	Title        string `long:"title" description:"Title of the response page"`
	TemplateFile string `long:"template" description:"html/template file used for the response page"`
}

type tokenCommand struct {
	sessionOptions
	Args struct {
		URL string `positional-arg-name:"url" description:"Authorization URL"`
	} `positional-args:"yes" required:"yes"`
}

type codeCommand struct {
	sessionOptions
	ClientID     string   `long:"client-id" required:"yes" description:"OAuth2 client ID"`
	ClientSecret string   `long:"client-secret" description:"OAuth2 client secret, empty for public clients"`
	Issuer       string   `long:"issuer" description:"OIDC issuer; discovers the endpoints and verifies the ID token"`
	AuthURL      string   `long:"auth-url" description:"Authorization endpoint, required without --issuer"`
	TokenURL     string   `long:"token-url" description:"Token endpoint, required without --issuer"`
	Scopes       []string `long:"scope" description:"Scope to request, repeatable"`
	Retries      int      `long:"retries" default:"3" description:"Retries for the token exchange"`
	JSON         bool     `long:"json" description:"Print the full token response as JSON"`
}

func (o sessionOptions) address(cfg config.CallbackConfig) string {
	if o.Address != "" {
		return o.Address
	}
	return cfg.GetCallbackAddress()
}

func (o sessionOptions) port(cfg config.CallbackConfig) int {
	if o.Port != unset {
		return o.Port
	}
	return cfg.GetCallbackPort()
}

func (o sessionOptions) timeout(cfg config.CallbackConfig) time.Duration {
	if o.Timeout != unset {
		return time.Duration(o.Timeout) * time.Second
	}
	return cfg.GetTimeout()
}

func (o sessionOptions) title(cfg config.CallbackConfig) string {
	if o.Title != "" {
		return o.Title
	}
	return cfg.GetTitle()
}

func (o sessionOptions) launcher(cfg config.CallbackConfig) authorizer.Launcher {
	if o.Browser {
		return launcher.Browser{}
	}
	command := o.Command
	if command == "" {
		command = cfg.GetLaunchCommand()
	}
	if command == "" {
		command = launcher.DefaultCommand()
	}
	return launcher.Command{Template: command}
}

// sessionOpts converts the flags and configuration into authorizer options.
func (o sessionOptions) sessionOpts(cfg config.CallbackConfig) ([]authorizer.Option, error) {
	opts := []authorizer.Option{
		authorizer.WithAddress(o.address(cfg)),
		authorizer.WithPort(o.port(cfg)),
		authorizer.WithTimeout(o.timeout(cfg)),
		authorizer.WithTitle(o.title(cfg)),
		authorizer.WithLauncher(o.launcher(cfg)),
	}
	templateOpts, err := o.templateOpts(cfg)
	if err != nil {
		return nil, err
	}
	return append(opts, templateOpts...), nil
}

func (o sessionOptions) templateOpts(cfg config.CallbackConfig) ([]authorizer.Option, error) {
	templateFile := o.TemplateFile
	if templateFile == "" {
		templateFile = cfg.GetTemplateFile()
	}
	if templateFile == "" {
		return nil, nil
	}
	content, err := os.ReadFile(templateFile)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return []authorizer.Option{authorizer.WithTemplate(string(content))}, nil
}
