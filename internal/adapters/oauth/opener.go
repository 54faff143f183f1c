package oauth

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// BrowserOpener presents the authorization URL to the user.
type BrowserOpener interface {
	Open(ctx context.Context, url string) error
}

// PrintOpener writes the URL for the user to open manually.
type PrintOpener struct {
	W io.Writer
}

// Open implements BrowserOpener.
func (p PrintOpener) Open(_ context.Context, url string) error {
	_, err := fmt.Fprintf(p.W, "\nOpen this URL to authorize the application:\n\n  %s\n\n", url)
	return err
}

// SystemOpener prints the URL and then asks the desktop to open it.
// A launch failure is returned but the URL has already been printed.
type SystemOpener struct {
	W io.Writer
}

// Open implements BrowserOpener.
func (s SystemOpener) Open(ctx context.Context, url string) error {
	if err := (PrintOpener{W: s.W}).Open(ctx, url); err != nil {
		return err
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
