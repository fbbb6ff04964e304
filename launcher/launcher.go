// Package launcher presents an authorization URL to the user, normally by opening a browser.
package launcher

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	apperrors "github.com/jrsteele09/go-oauth-callback/internal/errors"
	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
)

// URLPlaceholder is replaced with the authorization URL in command templates.
const URLPlaceholder = "{{URL}}"

// Command runs a shell command built from Template. The launch is fire-and-forget:
// only a failure to start the process is reported.
type Command struct {
	Template string
	// Shell is the interpreter and flag the expanded command is passed to. Defaults to the platform shell.
	Shell []string
}

// DefaultCommand returns the open command of the current platform.
func DefaultCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return `open "` + URLPlaceholder + `"`
	case "windows":
		return `start "" "` + URLPlaceholder + `"`
	default:
		return `xdg-open "` + URLPlaceholder + `"`
	}
}

func defaultShell() []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C"}
	}
	return []string{"/bin/sh", "-c"}
}

// Expand substitutes url into the template.
func (c Command) Expand(url string) string {
	return strings.ReplaceAll(c.Template, URLPlaceholder, url)
}

func (c Command) Launch(ctx context.Context, url string) error {
	if strings.TrimSpace(c.Template) == "" {
		return apperrors.ErrEmptyCommand
	}
	shell := c.Shell
	if len(shell) == 0 {
		shell = defaultShell()
	}
	line := c.Expand(url)
	args := append(append([]string{}, shell[1:]...), line)

	// Not bound to ctx: the browser must outlive the session.
	cmd := exec.Command(shell[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %q: %w", line, err)
	}
	log.Debug().Str("command", line).Int("pid", cmd.Process.Pid).Msg("Launched authorization command")

	go func() {
		if err := cmd.Wait(); err != nil {
			log.Warn().Err(err).Str("command", line).Msg("Authorization command exited with error")
		}
	}()
	return nil
}

// Browser opens the URL with the system browser.
type Browser struct{}

func (Browser) Launch(_ context.Context, url string) error {
	if err := browser.OpenURL(url); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
