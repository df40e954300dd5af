package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ChaseHampton/memorease/internal/api"
	"github.com/ChaseHampton/memorease/internal/db"
	"github.com/ChaseHampton/memorease/internal/lots"
	"github.com/ChaseHampton/memorease/internal/processor"
	"github.com/ChaseHampton/memorease/internal/search"
	"github.com/ChaseHampton/memorease/internal/source"
	"github.com/spf13/cobra"
)

func newInitCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the local store if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := a.store.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Local store ready (%d records)\n", count)
			return nil
		},
	}
}

func newSyncCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh the local store from the remote records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, cleanup, err := a.newSyncer()
			if err != nil {
				return err
			}
			defer cleanup()

			out := syncer.Sync(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), out.Message())
			if out.Kind != processor.Failed {
				return nil
			}
			if source.IsUnauthorized(out.Err) {
				fmt.Fprintln(cmd.ErrOrStderr(), "The park API rejected the token; check remote.token.")
			}
			return fmt.Errorf("%s: %w", out.Reason, out.Err)
		},
	}
}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [query]",
		Short: "Print stored records, optionally filtered by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.readRecords(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				records = lots.SearchByName(records, args[0])
			}

			w := cmd.OutOrStdout()
			for _, rec := range records {
				lot := "-"
				if rec.Lot != nil && rec.Lot.LotNumber != nil {
					lot = *rec.Lot.LotNumber
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", rec.ID, rec.DisplayName(), lot, search.Deref(rec.DeathDate))
			}
			fmt.Fprintf(w, "%d records\n", len(records))
			return nil
		},
	}
}

func newLotsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lots",
		Short: "Print plottable lots and who rests in them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.readRecords(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, g := range lots.GroupByLot(records) {
				names := make([]string, 0, len(g.Deceased))
				for _, rec := range g.Deceased {
					names = append(names, rec.DisplayName())
				}
				fmt.Fprintf(w, "lot %d (%s) at %.6f,%.6f: %s\n",
					g.LotID, g.LotNumber, lots.Lat(g.Center), lots.Lon(g.Center), strings.Join(names, ", "))
			}
			return nil
		},
	}
}

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the local store to the map UI over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, cleanup, err := a.newSyncer()
			if err != nil {
				return err
			}
			defer cleanup()

			handlers := api.NewHandlers(a.store, syncer, a.logger)
			server := &http.Server{
				Addr:    a.cfg.ServerConfig.Addr,
				Handler: api.NewRouter(handlers, a.registry),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info().Str("addr", server.Addr).Msg("serving")
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("failed to serve: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ServerConfig.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shut down: %w", err)
			}
			return nil
		},
	}
}

func (a *app) readRecords(ctx context.Context) ([]search.DeceasedRecord, error) {
	rows, err := a.store.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	records, malformed := db.ConvertRows(rows)
	if malformed > 0 {
		a.logger.Warn().Int("malformed", malformed).Msg("some lots have unreadable coordinates")
	}
	return records, nil
}
