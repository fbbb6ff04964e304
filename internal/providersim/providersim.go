// Package providersim simulates an authorization provider: it redirects the browser
// to a callback URL with either a token or a failure marker.
package providersim

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	ParamCallback = "oauth_callback"
	ParamToken    = "token"
	ParamWait     = "wait"

	// DefaultAddr is where cmd/provider-sim listens.
	DefaultAddr = "0.0.0.0:7779"
)

// Handler serves GET /?oauth_callback=URL[&token=T][&wait=N]. With a token it redirects to
// URL?oauth_token=T, otherwise to URL?failure=FAILURE, after waiting N seconds.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		callback := query.Get(ParamCallback)
		if callback == "" {
			http.Error(w, "missing "+ParamCallback, http.StatusBadRequest)
			return
		}
		target, err := url.Parse(callback)
		if err != nil {
			http.Error(w, "invalid "+ParamCallback, http.StatusBadRequest)
			return
		}

		if wait, _ := strconv.Atoi(query.Get(ParamWait)); wait > 0 {
			select {
			case <-time.After(time.Duration(wait) * time.Second):
			case <-r.Context().Done():
				return
			}
		}

		params := target.Query()
		if token := query.Get(ParamToken); token != "" {
			params.Set("oauth_token", token)
		} else {
			params.Set("failure", "FAILURE")
		}
		target.RawQuery = params.Encode()

		log.Debug().Str("callback", target.String()).Msg("Redirecting to callback")
		http.Redirect(w, r, target.String(), http.StatusFound)
	})
}

// AuthorizeURL builds a request URL for the simulator at base.
func AuthorizeURL(base, callback, token string, wait int) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	params := u.Query()
	params.Set(ParamCallback, callback)
	if token != "" {
		params.Set(ParamToken, token)
	}
	if wait > 0 {
		params.Set(ParamWait, strconv.Itoa(wait))
	}
	u.RawQuery = params.Encode()
	return u.String()
}
