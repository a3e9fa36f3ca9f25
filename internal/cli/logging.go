package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// newLogger builds the text logger described by the configuration.
// Logs go to the configured file if there is one, and to fallback otherwise.
// The returned close function releases the file.
func (a *app) newLogger(fallback io.Writer) (*slog.Logger, func() error, error) {
	lvl, err := a.cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}

	w := fallback
	closeFn := func() error { return nil }

	if a.cfg.LogFile != "" {
		f, err := os.OpenFile(a.cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closeFn = f.Close
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(h), closeFn, nil
}
