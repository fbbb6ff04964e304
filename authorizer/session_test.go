package authorizer_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-oauth-callback/authorizer"
	apperrors "github.com/jrsteele09/go-oauth-callback/internal/errors"
	"github.com/jrsteele09/go-oauth-callback/internal/providersim"
	"github.com/jrsteele09/go-oauth-callback/render"
	"github.com/stretchr/testify/require"
)

const testAuthURL = "https://provider/auth"

type callbackResult struct {
	code int
	body string
	err  error
}

// fixture wires a session to a launcher that calls the session's own callback URL.
type fixture struct {
	session  *authorizer.Session
	results  chan callbackResult
	launched chan string
}

func newFixture(t *testing.T, query string, opts ...authorizer.Option) *fixture {
	t.Helper()

	f := &fixture{results: make(chan callbackResult, 1), launched: make(chan string, 1)}
	launch := authorizer.LauncherFunc(func(_ context.Context, authURL string) error {
		f.launched <- authURL
		if query != "" {
			go f.get(f.session.CallbackURL() + "?" + query)
		}
		return nil
	})

	base := []authorizer.Option{authorizer.WithPort(0), authorizer.WithSignals(), authorizer.WithLauncher(launch)}
	s, err := authorizer.New(testAuthURL, append(base, opts...)...)
	require.NoError(t, err)
	f.session = s
	return f
}

func (f *fixture) get(target string) {
	resp, err := http.Get(target)
	if err != nil {
		f.results <- callbackResult{err: err}
		return
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	f.results <- callbackResult{code: resp.StatusCode, body: string(body), err: err}
}

func (f *fixture) result(t *testing.T) callbackResult {
	t.Helper()
	select {
	case r := <-f.results:
		require.NoError(t, r.err)
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("callback request did not complete")
		return callbackResult{}
	}
}

func requirePortReleased(t *testing.T, callbackURL string) {
	t.Helper()
	u, err := url.Parse(callbackURL)
	require.NoError(t, err)
	ln, err := net.Listen("tcp", u.Host)
	require.NoError(t, err, "callback port still bound")
	require.NoError(t, ln.Close())
}

func TestNew(t *testing.T) {
	t.Run("missing url", func(t *testing.T) {
		_, err := authorizer.New("")
		require.ErrorIs(t, err, apperrors.ErrMissingURL)
	})
	t.Run("invalid port", func(t *testing.T) {
		_, err := authorizer.New(testAuthURL, authorizer.WithPort(-1))
		require.ErrorIs(t, err, apperrors.ErrInvalidPort)
		_, err = authorizer.New(testAuthURL, authorizer.WithPort(65536))
		require.ErrorIs(t, err, apperrors.ErrInvalidPort)
	})
	t.Run("invalid template", func(t *testing.T) {
		_, err := authorizer.New(testAuthURL, authorizer.WithTemplate("{{.Title"))
		require.Error(t, err)
	})
	t.Run("defaults", func(t *testing.T) {
		s, err := authorizer.New(testAuthURL, authorizer.WithTimeoutSeconds(-5))
		require.NoError(t, err)
		require.Equal(t, testAuthURL, s.URL())
		require.Equal(t, time.Duration(0), s.Timeout())
		require.Equal(t, authorizer.StatusWaiting, s.Status())
		require.Empty(t, s.Token())
		require.Empty(t, s.CallbackURL())
		require.NotEmpty(t, s.ID())
	})
	t.Run("unique ids", func(t *testing.T) {
		a, err := authorizer.New(testAuthURL)
		require.NoError(t, err)
		b, err := authorizer.New(testAuthURL)
		require.NoError(t, err)
		require.NotEqual(t, a.ID(), b.ID())
	})
}

func TestDefaultTokenExtractor(t *testing.T) {
	token, err := authorizer.DefaultTokenExtractor(httptest.NewRequest(http.MethodGet, "/?oauth_token=abc123", nil))
	require.NoError(t, err)
	require.Equal(t, "abc123", token)

	token, err = authorizer.DefaultTokenExtractor(httptest.NewRequest(http.MethodGet, "/?failure=FAILURE", nil))
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestAuthorize_Success(t *testing.T) {
	f := newFixture(t, "oauth_token=abc123", authorizer.WithTitle("Test Login"))

	token, err := f.session.Authorize(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc123", token)
	require.Equal(t, authorizer.StatusSuccess, f.session.Status())
	require.Equal(t, "abc123", f.session.Token())
	require.Equal(t, testAuthURL, <-f.launched)

	r := f.result(t)
	require.Equal(t, http.StatusOK, r.code)
	require.Contains(t, r.body, "Test Login")
	requirePortReleased(t, f.session.CallbackURL())
}

func TestAuthorize_AnyPathAndMethod(t *testing.T) {
	var s *authorizer.Session
	s, err := authorizer.New(testAuthURL,
		authorizer.WithPort(0),
		authorizer.WithSignals(),
		authorizer.WithLauncher(authorizer.LauncherFunc(func(context.Context, string) error {
			go func() {
				resp, err := http.Post(s.CallbackURL()+"oauth/done?oauth_token=xyz", "text/plain", strings.NewReader(""))
				if err == nil {
					resp.Body.Close()
				}
			}()
			return nil
		})),
	)
	require.NoError(t, err)

	token, err := s.Authorize(context.Background())
	require.NoError(t, err)
	require.Equal(t, "xyz", token)
}

func TestAuthorize_Denied(t *testing.T) {
	f := newFixture(t, "failure=FAILURE")

	token, err := f.session.Authorize(context.Background())
	require.ErrorIs(t, err, authorizer.ErrAuthorizationDenied)
	require.False(t, errors.Is(err, authorizer.ErrFailure))
	require.Empty(t, token)
	require.Equal(t, authorizer.StatusDenied, f.session.Status())

	r := f.result(t)
	require.Equal(t, http.StatusInternalServerError, r.code)
	require.Contains(t, r.body, "Authorization denied")
	requirePortReleased(t, f.session.CallbackURL())
}

func TestAuthorize_CustomExtractor(t *testing.T) {
	extract := func(r *http.Request) (string, error) {
		return r.URL.Query().Get("code"), nil
	}
	f := newFixture(t, "code=from-code&oauth_token=ignored", authorizer.WithTokenExtractor(extract))

	token, err := f.session.Authorize(context.Background())
	require.NoError(t, err)
	require.Equal(t, "from-code", token)
}

func TestAuthorize_ExtractorFailure(t *testing.T) {
	tests := []struct {
		name    string
		extract authorizer.TokenExtractor
		message string
	}{
		{
			name:    "error",
			extract: func(*http.Request) (string, error) { return "", errors.New("bad signature") },
			message: "bad signature",
		},
		{
			name:    "panic",
			extract: func(*http.Request) (string, error) { panic("boom") },
			message: "token extractor panicked: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "oauth_token=abc", authorizer.WithTokenExtractor(tt.extract))

			_, err := f.session.Authorize(context.Background())
			require.ErrorIs(t, err, authorizer.ErrFailure)
			require.NotErrorIs(t, err, authorizer.ErrAuthorizationDenied)

			var failure *authorizer.FailureError
			require.ErrorAs(t, err, &failure)
			require.Equal(t, "callback", failure.Op)
			require.Contains(t, err.Error(), tt.message)
			require.Equal(t, authorizer.StatusFailure, f.session.Status())

			require.Equal(t, http.StatusInternalServerError, f.result(t).code)
		})
	}
}

func TestAuthorize_Timeout(t *testing.T) {
	f := newFixture(t, "", authorizer.WithTimeoutSeconds(1))

	start := time.Now()
	token, err := f.session.Authorize(context.Background())
	elapsed := time.Since(start)

	require.ErrorIs(t, err, authorizer.ErrTimeout)
	require.NotErrorIs(t, err, authorizer.ErrFailure)
	require.Empty(t, token)
	require.Equal(t, authorizer.StatusFailure, f.session.Status())
	require.GreaterOrEqual(t, elapsed, time.Second)
	require.Less(t, elapsed, 3*time.Second)
	requirePortReleased(t, f.session.CallbackURL())
}

func TestAuthorize_TimeoutWinsOverLateSuccess(t *testing.T) {
	slow := func(r *http.Request) (string, error) {
		time.Sleep(300 * time.Millisecond)
		return authorizer.DefaultTokenExtractor(r)
	}
	f := newFixture(t, "oauth_token=too-late", authorizer.WithTimeout(100*time.Millisecond), authorizer.WithTokenExtractor(slow))

	token, err := f.session.Authorize(context.Background())
	require.ErrorIs(t, err, authorizer.ErrTimeout)
	require.Empty(t, token)
	// The committed status is never overwritten, only the outcome reports the timeout.
	require.Equal(t, authorizer.StatusSuccess, f.session.Status())
	require.Equal(t, http.StatusOK, f.result(t).code)
}

func TestAuthorize_CallbackBeforeTimeout(t *testing.T) {
	f := newFixture(t, "oauth_token=fast", authorizer.WithTimeout(10*time.Second))

	token, err := f.session.Authorize(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fast", token)
}

func TestAuthorize_ListenFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()
	port := occupied.Addr().(*net.TCPAddr).Port

	launched := false
	s, err := authorizer.New(testAuthURL,
		authorizer.WithPort(port),
		authorizer.WithSignals(),
		authorizer.WithLauncher(authorizer.LauncherFunc(func(context.Context, string) error {
			launched = true
			return nil
		})),
	)
	require.NoError(t, err)

	_, err = s.Authorize(context.Background())
	var failure *authorizer.FailureError
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "listen", failure.Op)
	require.ErrorIs(t, err, authorizer.ErrFailure)
	require.False(t, launched)
	require.Equal(t, authorizer.StatusFailure, s.Status())
}

func TestAuthorize_LaunchFailure(t *testing.T) {
	s, err := authorizer.New(testAuthURL,
		authorizer.WithPort(0),
		authorizer.WithSignals(),
		authorizer.WithTimeout(time.Hour),
		authorizer.WithLauncher(authorizer.LauncherFunc(func(context.Context, string) error {
			return errors.New("no browser")
		})),
	)
	require.NoError(t, err)

	_, err = s.Authorize(context.Background())
	var failure *authorizer.FailureError
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "launch", failure.Op)
	require.Contains(t, err.Error(), "no browser")
	requirePortReleased(t, s.CallbackURL())
}

func TestAuthorize_LaunchCommandFailure(t *testing.T) {
	s, err := authorizer.New(testAuthURL,
		authorizer.WithPort(0),
		authorizer.WithSignals(),
		authorizer.WithCommand("   "),
	)
	require.NoError(t, err)

	_, err = s.Authorize(context.Background())
	require.ErrorIs(t, err, authorizer.ErrFailure)
	require.ErrorIs(t, err, apperrors.ErrEmptyCommand)
}

func TestAuthorize_LauncherPanic(t *testing.T) {
	s, err := authorizer.New(testAuthURL,
		authorizer.WithPort(0),
		authorizer.WithSignals(),
		authorizer.WithLauncher(authorizer.LauncherFunc(func(context.Context, string) error {
			panic("launcher exploded")
		})),
	)
	require.NoError(t, err)

	_, err = s.Authorize(context.Background())
	var failure *authorizer.FailureError
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "authorize", failure.Op)
	requirePortReleased(t, s.CallbackURL())
}

func TestAuthorize_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := authorizer.New(testAuthURL,
		authorizer.WithPort(0),
		authorizer.WithSignals(),
		authorizer.WithLauncher(authorizer.LauncherFunc(func(context.Context, string) error {
			cancel()
			return nil
		})),
	)
	require.NoError(t, err)

	_, err = s.Authorize(ctx)
	require.ErrorIs(t, err, authorizer.ErrFailure)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, authorizer.StatusFailure, s.Status())
	requirePortReleased(t, s.CallbackURL())
}

func TestAuthorize_SingleUse(t *testing.T) {
	f := newFixture(t, "oauth_token=once")

	_, err := f.session.Authorize(context.Background())
	require.NoError(t, err)

	_, err = f.session.Authorize(context.Background())
	require.ErrorIs(t, err, authorizer.ErrSessionUsed)
	require.Equal(t, "once", f.session.Token())
}

func TestAuthorize_CustomRendering(t *testing.T) {
	t.Run("template", func(t *testing.T) {
		f := newFixture(t, "oauth_token=abc", authorizer.WithTitle("Custom"), authorizer.WithTemplate("{{.Title}}:{{.Status}}:{{.Token}}"))
		_, err := f.session.Authorize(context.Background())
		require.NoError(t, err)
		require.Equal(t, "Custom:success:abc", f.result(t).body)
	})
	t.Run("renderer error falls back to status text", func(t *testing.T) {
		f := newFixture(t, "oauth_token=abc", authorizer.WithRenderer(failingRenderer{}))
		_, err := f.session.Authorize(context.Background())
		require.NoError(t, err)
		r := f.result(t)
		require.Equal(t, http.StatusOK, r.code)
		require.Equal(t, http.StatusText(http.StatusOK), r.body)
	})
}

type failingRenderer struct{}

func (failingRenderer) Render(io.Writer, render.View) error { return errors.New("render failed") }

func TestAuthorize_ThroughSimulatedProvider(t *testing.T) {
	provider := httptest.NewServer(providersim.Handler())
	defer provider.Close()

	tests := []struct {
		name      string
		token     string
		wantToken string
		wantErr   error
	}{
		{name: "token granted", token: "abc123", wantToken: "abc123"},
		{name: "no token", wantErr: authorizer.ErrAuthorizationDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s *authorizer.Session
			s, err := authorizer.New(provider.URL,
				authorizer.WithPort(0),
				authorizer.WithSignals(),
				authorizer.WithTimeout(10*time.Second),
				authorizer.WithLauncher(authorizer.LauncherFunc(func(_ context.Context, authURL string) error {
					target := providersim.AuthorizeURL(authURL, s.CallbackURL(), tt.token, 0)
					go func() {
						// The provider redirects the client to the callback listener.
						resp, err := http.Get(target)
						if err == nil {
							resp.Body.Close()
						}
					}()
					return nil
				})),
			)
			require.NoError(t, err)

			token, err := s.Authorize(context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantToken, token)
		})
	}
}

func TestAuthorize_DefaultPort(t *testing.T) {
	probe, err := net.Listen("tcp", net.JoinHostPort(authorizer.DefaultAddress, "2501"))
	if err != nil {
		t.Skipf("default port unavailable: %v", err)
	}
	require.NoError(t, probe.Close())

	f := &fixture{results: make(chan callbackResult, 1)}
	s, err := authorizer.New(testAuthURL,
		authorizer.WithSignals(),
		authorizer.WithLauncher(authorizer.LauncherFunc(func(context.Context, string) error {
			go f.get(f.session.CallbackURL() + "?oauth_token=abc123")
			return nil
		})),
	)
	require.NoError(t, err)
	f.session = s

	token, err := s.Authorize(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc123", token)
	require.Equal(t, "http://127.0.0.1:2501/", s.CallbackURL())
	requirePortReleased(t, s.CallbackURL())
}

type panickingRenderer struct{}

func (panickingRenderer) Render(io.Writer, render.View) error { panic("renderer exploded") }

func TestAuthorize_RendererPanicAfterCommit(t *testing.T) {
	f := newFixture(t, "oauth_token=abc123", authorizer.WithRenderer(panickingRenderer{}))

	done := make(chan struct{})
	var (
		token string
		err   error
	)
	go func() {
		defer close(done)
		token, err = f.session.Authorize(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Authorize still waiting after the callback, status %s", f.session.Status())
	}

	// The token was committed before rendering, so it stands.
	require.NoError(t, err)
	require.Equal(t, "abc123", token)
	require.Equal(t, authorizer.StatusSuccess, f.session.Status())
	require.Equal(t, http.StatusInternalServerError, f.result(t).code)
	requirePortReleased(t, f.session.CallbackURL())
}
