package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/extract"
	"github.com/joseph-ayodele/qabot/internal/report"
	"github.com/joseph-ayodele/qabot/internal/services/check"
)

var (
	batchClient string
	batchMarket string
	batchMode   string
	batchOutDir string
	batchHidden bool
)

var batchCmd = &cobra.Command{
	Use:   "batch DIR",
	Short: "Check every document in a directory",
	Long: `Check every .docx, .pdf, .txt and .md file under DIR against the same client and market.

A failed document does not stop the batch. With --out-dir, one XLSX report per
document is written there as <name>.report.xlsx. The command exits non-zero if
any document failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchClient, "client", "c", "", "Client (workbook tab)")
	batchCmd.Flags().StringVarP(&batchMarket, "market", "m", "", "Market")
	batchCmd.Flags().StringVar(&batchMode, "mode", "", "Check mode (default from config)")
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "", "Write an XLSX report per document into this directory")
	batchCmd.Flags().BoolVar(&batchHidden, "include-hidden", false, "Also check hidden files and directories")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if err := common.NewValidator().
		Field("client", batchClient, common.RequiredMsg("Please select a client.")).
		Field("market", batchMarket, common.RequiredMsg("Please select a market.")).
		Error(); err != nil {
		return err
	}

	paths, stats, err := extract.ScanDir(args[0], !batchHidden)
	if err != nil {
		return err
	}
	logger.Info("batch.scan.ok", "dir", args[0], "scanned", stats.Scanned, "matched", stats.Matched, "skipped", stats.Skipped)
	if len(paths) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no documents found under %s\n", args[0])
		return nil
	}
	if batchOutDir != "" {
		if err := os.MkdirAll(batchOutDir, 0o755); err != nil {
			return err
		}
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	xlsx := report.NewXLSX(logger)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tSTATUS\tVIOLATIONS\tDETAIL")
	failures := 0
	for i, p := range paths {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s\n", i+1, len(paths), p)

		data, err := os.ReadFile(p)
		if err != nil {
			failures++
			fmt.Fprintf(tw, "%s\tFAILED\t-\t%v\n", p, err)
			continue
		}
		res, err := a.Service.Check(cmd.Context(), check.Request{
			Client:       batchClient,
			Market:       batchMarket,
			DocumentName: filepath.Base(p),
			Document:     data,
			Mode:         batchMode,
		}, nil)
		if err != nil {
			failures++
			fmt.Fprintf(tw, "%s\tFAILED\t-\t%s\n", p, oneLine(err.Error()))
			continue
		}

		detail := ""
		if batchOutDir != "" {
			dest := filepath.Join(batchOutDir, strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))+".report.xlsx")
			b, err := xlsx.Build(res.Meta, res.Report)
			if err == nil {
				err = os.WriteFile(dest, b, 0o644)
			}
			if err != nil {
				failures++
				detail = "report not written: " + oneLine(err.Error())
			} else {
				detail = dest
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p, res.Report.Status, len(res.Report.Violations), detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d document(s) failed", failures, len(paths))
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
