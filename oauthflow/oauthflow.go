// Package oauthflow runs the OAuth2 authorization code flow with PKCE on top of an
// authorizer.Session: the session receives the redirect, the code is then exchanged
// for tokens and, when a verifier is configured, the ID token is verified.
package oauthflow

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/jrsteele09/go-oauth-callback/authorizer"
	apperrors "github.com/jrsteele09/go-oauth-callback/internal/errors"
	"github.com/jrsteele09/go-oauth-callback/launcher"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	DefaultCallbackPath = "/callback"
	DefaultRetries      = 3
)

// Config describes one code flow run.
type Config struct {
	// OAuth2 holds the client ID, endpoint and scopes. RedirectURL is derived from the callback listener.
	OAuth2 *oauth2.Config

	Address      string
	Port         int
	CallbackPath string
	Timeout      time.Duration
	Title        string
	Launcher     authorizer.Launcher
	// Options are applied to the underlying session after the fields above.
	Options []authorizer.Option

	// Verifier enables ID token verification and a nonce in the authorization request.
	Verifier *oidc.IDTokenVerifier

	// HTTPClient is used for the token exchange. Defaults to a retrying client.
	HTTPClient *http.Client
	// Retries is the retry budget of the default client. 0 uses DefaultRetries, negative disables retries.
	Retries      int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Result carries the tokens returned by the provider.
type Result struct {
	Token   *oauth2.Token
	IDToken *oidc.IDToken
}

// callback records what the provider sent to the callback listener.
type callback struct {
	mu               sync.Mutex
	errorCode        string
	errorDescription string
}

func (c *callback) denial() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errorCode == "" {
		return authorizer.ErrAuthorizationDenied
	}
	if c.errorDescription == "" {
		return fmt.Errorf("%w: %s", authorizer.ErrAuthorizationDenied, c.errorCode)
	}
	return fmt.Errorf("%w: %s: %s", authorizer.ErrAuthorizationDenied, c.errorCode, c.errorDescription)
}

// Run opens the authorization page, waits for the redirect and exchanges the code.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.OAuth2 == nil || cfg.OAuth2.Endpoint.AuthURL == "" {
		return nil, apperrors.Wrapf(apperrors.ErrMissingURL, "[oauthflow Run]")
	}
	oc := *cfg.OAuth2
	callbackPath := cfg.CallbackPath
	if callbackPath == "" {
		callbackPath = DefaultCallbackPath
	}

	state := uuid.NewString()
	nonce := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	received := &callback{}

	inner := cfg.Launcher
	if inner == nil {
		inner = launcher.Command{Template: launcher.DefaultCommand()}
	}
	var session *authorizer.Session
	launch := authorizer.LauncherFunc(func(ctx context.Context, _ string) error {
		oc.RedirectURL = strings.TrimSuffix(session.CallbackURL(), "/") + callbackPath
		opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
		if cfg.Verifier != nil {
			opts = append(opts, oidc.Nonce(nonce))
		}
		authURL := oc.AuthCodeURL(state, opts...)
		log.Debug().Str("redirect_uri", oc.RedirectURL).Msg("Starting authorization code flow")
		return inner.Launch(ctx, authURL)
	})

	opts := []authorizer.Option{
		authorizer.WithAddress(cfg.Address),
		authorizer.WithPort(cfg.Port),
		authorizer.WithTimeout(cfg.Timeout),
		authorizer.WithTitle(cfg.Title),
		authorizer.WithTokenExtractor(codeExtractor(state, received)),
		authorizer.WithLauncher(launch),
	}
	opts = append(opts, cfg.Options...)

	session, err := authorizer.New(oc.Endpoint.AuthURL, opts...)
	if err != nil {
		return nil, err
	}

	code, err := session.Authorize(ctx)
	if err != nil {
		if apperrors.Is(err, authorizer.ErrAuthorizationDenied) {
			return nil, received.denial()
		}
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.httpClient())
	token, err := oc.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, apperrors.Wrapf(err, "[oauthflow Run] token exchange")
	}
	result := &Result{Token: token}

	if cfg.Verifier != nil {
		idToken, err := verifyIDToken(ctx, cfg.Verifier, token, nonce)
		if err != nil {
			return nil, err
		}
		result.IDToken = idToken
	}
	return result, nil
}

// codeExtractor validates the state and returns the authorization code. A provider
// error response or a missing code counts as a denial.
func codeExtractor(state string, received *callback) authorizer.TokenExtractor {
	return func(r *http.Request) (string, error) {
		query := r.URL.Query()
		if query.Get("state") != state {
			return "", apperrors.ErrStateMismatch
		}
		if errorCode := query.Get("error"); errorCode != "" {
			received.mu.Lock()
			received.errorCode = errorCode
			received.errorDescription = query.Get("error_description")
			received.mu.Unlock()
			return "", nil
		}
		return query.Get("code"), nil
	}
}

func verifyIDToken(ctx context.Context, verifier *oidc.IDTokenVerifier, token *oauth2.Token, nonce string) (*oidc.IDToken, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, apperrors.ErrMissingIDToken
	}
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "[oauthflow] id token verification: %v", err)
	}
	if idToken.Nonce != nonce {
		return nil, apperrors.ErrNonceMismatch
	}
	return idToken, nil
}

func (cfg Config) httpClient() *http.Client {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}
	client := retryablehttp.NewClient()
	switch {
	case cfg.Retries == 0:
		client.RetryMax = DefaultRetries
	case cfg.Retries < 0:
		client.RetryMax = 0
	default:
		client.RetryMax = cfg.Retries
	}
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}
	client.Logger = retryLogger{}
	return client.StandardClient()
}
