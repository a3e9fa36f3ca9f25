package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/stagehand-audio/stagehand"
	"github.com/stagehand-audio/stagehand/internal/dashboard"
	"github.com/stagehand-audio/stagehand/saddr"
	"github.com/stagehand-audio/stagehand/sstatus"
	"golang.org/x/sync/errgroup"
)

func (a *app) newMonitorCommand() *cobra.Command {
	var (
		metricsAddr string
		refresh     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Show live host status in the terminal",
		Long: `Subscribe to the host and show its transport, cue, and health status.

Keys:
  c connect   d disconnect   tab switch view   q quit
  space start/stop   . next cue   , previous cue   0 zero
  v toggle jump mode   + / - change playrate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if metricsAddr != "" {
				a.cfg.MetricsAddr = metricsAddr
			}
			if refresh > 0 {
				a.cfg.RefreshInterval = refresh
			}
			return a.runMonitor(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&refresh, "refresh", 0, "dashboard refresh interval")

	return cmd
}

func (a *app) runMonitor(ctx context.Context) error {
	// The dashboard owns the terminal.
	log, closeLog, err := a.newLogger(io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	tr, err := stagehand.NewTransport(log.With("sys", "transport"), a.cfg.TransportConfig())
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := tr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start transport: %w", err)
	}

	host, haveHost := a.configuredHost()
	hostIdent := saddr.NewIdentifier(a.cfg.HostIdentifier)
	if haveHost {
		if _, err := tr.Connect(tr.Local().Identifier, host); err != nil {
			log.Warn("Failed to connect to configured host", "host", a.cfg.Host, "err", err)
		}
	}

	model := dashboard.New(log.With("sys", "dashboard"), dashboard.Config{
		Link:            tr,
		Reducer:         sstatus.NewReducer(log.With("sys", "reducer"), a.cfg.ReducerConfig()),
		Host:            host,
		HostIdentifier:  hostIdent,
		RefreshInterval: a.cfg.RefreshInterval,
	})

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           newMetricsHandler(tr),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()

		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("dashboard: %w", err)
		}
		return nil
	})

	runErr := g.Wait()

	if haveHost {
		if err := a.cfg.Save(a.configPath()); err != nil {
			log.Warn("Failed to save configuration", "err", err)
		}
	}

	return runErr
}

// configuredHost parses the configured host, if any.
// Load has already validated it.
func (a *app) configuredHost() (saddr.IPAddress, bool) {
	if a.cfg.Host == "" {
		return saddr.IPAddress{}, false
	}
	addr, err := saddr.ParseIPAddress(a.cfg.Host)
	if err != nil {
		return saddr.IPAddress{}, false
	}
	return addr, true
}
