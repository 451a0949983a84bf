package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/qabot/internal/app"
	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/repository"
)

var (
	marketsClient string
	runsClient    string
	runsLimit     int
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "List the clients (workbook tabs) that have rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := app.NewSource(cfg.Rules, logger)
		if err != nil {
			return err
		}
		clients, err := src.Clients(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range clients {
			fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	},
}

var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List the markets named in a client's rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(marketsClient) == "" {
			return common.NewValidationError("Please select a client.")
		}
		src, err := app.NewSource(cfg.Rules, logger)
		if err != nil {
			return err
		}
		markets, err := src.Markets(cmd.Context(), marketsClient)
		if err != nil {
			return err
		}
		for _, m := range markets {
			fmt.Fprintln(cmd.OutOrStdout(), m)
		}
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent checks from the run log",
	Long: `Show recent checks from the run log (newest first).

The run log is enabled by setting DB_URL (or database.dsn in the config file)
to a sqlite file path or a postgres:// URL.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.DSN == "" {
			return common.NewAppError(common.CodeConfig, "run log is disabled (set DB_URL)", nil)
		}
		db, err := repository.Open(cmd.Context(), repository.Config{
			DSN:         cfg.Database.DSN,
			DialTimeout: cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			return err
		}
		defer db.Close(logger)

		runs, err := repository.NewCheckRunRepository(db, logger).List(cmd.Context(), repository.ListFilter{Client: runsClient, Limit: runsLimit})
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tCLIENT\tMARKET\tDOCUMENT\tMODE\tSTATUS\tVIOLATIONS\tID")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				r.StartedAt.Local().Format(time.DateTime), r.Client, r.Market, r.DocumentName, r.Mode, r.Status, r.ViolationCount, r.ID)
		}
		return tw.Flush()
	},
}

func init() {
	marketsCmd.Flags().StringVarP(&marketsClient, "client", "c", "", "Client (workbook tab)")
	runsCmd.Flags().StringVarP(&runsClient, "client", "c", "", "Only runs for this client")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs")
}
