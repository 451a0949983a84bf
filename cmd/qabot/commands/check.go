package commands

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/qabot/constants"
	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/entity"
	"github.com/joseph-ayodele/qabot/internal/report"
	"github.com/joseph-ayodele/qabot/internal/server"
	"github.com/joseph-ayodele/qabot/internal/services/check"
)

var (
	checkClient  string
	checkMarket  string
	checkMode    string
	checkOutput  string
	checkOutFile string
	checkServer  string
	checkQuiet   bool
)

var checkCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Check a document against a client's rules",
	Long: `Check a document (.docx, .pdf, .txt or .md) against the rules for a client and market.

Modes:
  per-rule    one model call per rule; the reply is "Compliant" or the explanation
  single      every rule in one call
  chunked     rules in batches of --batch-size (default 20), numbering continues across batches
  structured  like chunked, but the model answers in JSON

Output Formats:
  text  - numbered violations (default)
  json  - the full report as one JSON object
  xlsx  - a spreadsheet written to --out

Examples:
  qabot check --client Acme --market UK brochure.docx
  qabot check --client Acme --market UK --mode per-rule -o json brochure.docx | jq .violations
  qabot check --client Acme --market UK -o xlsx --out report.xlsx brochure.docx
  qabot check --server localhost:8080 --client Acme --market UK brochure.docx`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkClient, "client", "c", "", "Client (workbook tab)")
	checkCmd.Flags().StringVarP(&checkMarket, "market", "m", "", "Market")
	checkCmd.Flags().StringVar(&checkMode, "mode", "", "Check mode: per-rule, single, chunked, structured (default from config)")
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "text", "Output format: text, json or xlsx")
	checkCmd.Flags().StringVar(&checkOutFile, "out", "", "Output file (required for xlsx, optional otherwise)")
	checkCmd.Flags().StringVar(&checkServer, "server", "", "Run the check on a qabotd daemon at this address")
	checkCmd.Flags().BoolVarP(&checkQuiet, "quiet", "q", false, "Do not print progress")
	checkCmd.Flags().Int("batch-size", 0, "Rules per model call in chunked/structured mode")
	checkCmd.Flags().Int("concurrency", 0, "Parallel model calls")
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := common.NewValidator().
		Field("output", checkOutput, common.OneOf("text", "json", "xlsx")).
		Field("mode", checkMode, common.OneOf(constants.Modes...)).
		Error(); err != nil {
		return err
	}
	if strings.EqualFold(checkOutput, "xlsx") && checkOutFile == "" {
		return common.NewValidationError("--out is required for xlsx output.")
	}
	if n, _ := cmd.Flags().GetInt("batch-size"); n > 0 {
		cfg.Check.MaxBatchSize = n
	}
	if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
		cfg.Check.Concurrency = n
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	req := check.Request{
		Client:       checkClient,
		Market:       checkMarket,
		DocumentName: filepath.Base(path),
		Document:     data,
		Mode:         checkMode,
	}

	var (
		meta report.Meta
		rep  entity.ComplianceReport
	)
	if checkServer != "" {
		meta, rep, err = checkRemote(cmd, req)
	} else {
		meta, rep, err = checkLocal(cmd, req)
	}
	if err != nil {
		return err
	}
	if !checkQuiet {
		printVerdict(cmd.ErrOrStderr(), rep)
	}
	return writeReport(cmd, meta, rep)
}

func checkLocal(cmd *cobra.Command, req check.Request) (report.Meta, entity.ComplianceReport, error) {
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return report.Meta{}, entity.ComplianceReport{}, err
	}
	defer a.Close()

	progress := func(i, total int) {
		if !checkQuiet {
			printProgress(cmd.ErrOrStderr(), i, total)
		}
	}
	res, err := a.Service.Check(cmd.Context(), req, progress)
	if err != nil {
		return report.Meta{}, entity.ComplianceReport{}, err
	}
	return res.Meta, res.Report, nil
}

// checkRemote sends the document to a qabotd daemon and rebuilds the report from its reply.
func checkRemote(cmd *cobra.Command, req check.Request) (report.Meta, entity.ComplianceReport, error) {
	conn, err := grpc.NewClient(checkServer, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return report.Meta{}, entity.ComplianceReport{}, fmt.Errorf("connect %s: %w", checkServer, err)
	}
	defer conn.Close()

	in, err := structpb.NewStruct(map[string]any{
		"client":        req.Client,
		"market":        req.Market,
		"document_name": req.DocumentName,
		"document":      base64.StdEncoding.EncodeToString(req.Document),
		"mode":          req.Mode,
	})
	if err != nil {
		return report.Meta{}, entity.ComplianceReport{}, err
	}
	out, err := server.NewClient(conn).Check(cmd.Context(), in)
	if err != nil {
		return report.Meta{}, entity.ComplianceReport{}, err
	}
	return reportFromStruct(out, req)
}

func reportFromStruct(out *structpb.Struct, req check.Request) (report.Meta, entity.ComplianceReport, error) {
	f := out.GetFields()
	rep := entity.ComplianceReport{
		Status:     constants.ComplianceStatus(f["status"].GetStringValue()),
		RuleCount:  int(f["rule_count"].GetNumberValue()),
		BatchCount: int(f["batch_count"].GetNumberValue()),
		Violations: []entity.ViolationEntry{},
	}
	for _, v := range f["violations"].GetListValue().GetValues() {
		vf := v.GetStructValue().GetFields()
		rep.Violations = append(rep.Violations, entity.ViolationEntry{
			Sequence: int(vf["sequence"].GetNumberValue()),
			Text:     vf["text"].GetStringValue(),
		})
	}
	if rep.Status != constants.StatusCompliant && rep.Status != constants.StatusNonCompliant {
		return report.Meta{}, entity.ComplianceReport{}, fmt.Errorf("unexpected status %q from server", rep.Status)
	}
	meta := report.Meta{
		RunID:     f["run_id"].GetStringValue(),
		Client:    req.Client,
		Market:    req.Market,
		Document:  req.DocumentName,
		Mode:      f["mode"].GetStringValue(),
		CheckedAt: time.Now().UTC(),
	}
	return meta, rep, nil
}

func writeReport(cmd *cobra.Command, meta report.Meta, rep entity.ComplianceReport) error {
	if strings.EqualFold(checkOutput, "xlsx") {
		b, err := report.NewXLSX(logger).Build(meta, rep)
		if err != nil {
			return err
		}
		if err := os.WriteFile(checkOutFile, b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", checkOutFile, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d violation(s)) written to %s\n", rep.Status, len(rep.Violations), checkOutFile)
		return nil
	}

	var w io.Writer = cmd.OutOrStdout()
	if checkOutFile != "" {
		f, err := os.Create(checkOutFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if strings.EqualFold(checkOutput, "json") {
		return report.WriteJSON(w, meta, rep)
	}
	return report.WriteText(w, meta, rep)
}
