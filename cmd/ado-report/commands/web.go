package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goblinsan/ado-report/pkg/azure"
	"github.com/goblinsan/ado-report/pkg/config"
	"github.com/goblinsan/ado-report/pkg/web"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(webCmd)
	webCmd.Flags().String(config.KeyHTTPAddr, "", "listen address (default :8080)")
	webCmd.Flags().String(config.KeyRefreshCron, "", "refresh on this cron schedule, e.g. \"*/30 7-19 * * 1-5\"")
	webCmd.Flags().Bool("debug", false, "run gin in debug mode")
	viper.BindPFlag(config.KeyHTTPAddr, webCmd.Flags().Lookup(config.KeyHTTPAddr))
	viper.BindPFlag(config.KeyRefreshCron, webCmd.Flags().Lookup(config.KeyRefreshCron))
}

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the reports as a JSON API",
	Long: `Refresh the snapshot once and serve it over HTTP: state distribution, the
overview, budgets, hours, tickets, comments and related bugs. POST /refresh
pulls a new snapshot; with --refresh-cron it is also refreshed on a schedule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if _, err := a.Refresh(ctx); err != nil {
			if errors.Is(err, azure.ErrAuthInvalid) {
				return err
			}
			// the API answers 409 until a refresh succeeds
			a.log.Error().Err(err).Msg("initial refresh failed")
		}

		if a.cfg.RefreshCron != "" {
			cr, err := web.NewCron(a.cfg.RefreshCron, a.cfg.Location(), a, a.log)
			if err != nil {
				return err
			}
			cr.Start()
			defer cr.Stop()
			a.log.Info().Str("schedule", a.cfg.RefreshCron).Msg("scheduled refresh enabled")
		}

		debug, _ := cmd.Flags().GetBool("debug")
		router := web.NewRouter(a, web.Options{Logger: a.log, Location: a.cfg.Location(), Debug: debug})
		srv := &http.Server{Addr: a.cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info().Str("addr", a.cfg.HTTPAddr).Msg("listening")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("http server: %w", err)
		case <-ctx.Done():
		}
		a.log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
