package server

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/entity"
	"github.com/joseph-ayodele/qabot/internal/repository"
	"github.com/joseph-ayodele/qabot/internal/services/check"
)

// maxDocumentBytes bounds the decoded upload.
const maxDocumentBytes = 20 << 20

type ComplianceService struct {
	svc    *check.Service
	logger *zap.Logger
}

func NewComplianceService(svc *check.Service, logger *zap.Logger) *ComplianceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplianceService{svc: svc, logger: logger}
}

var _ ComplianceServer = (*ComplianceService)(nil)

// Check runs one compliance check.
//
// Request fields: client, market, document_name (strings), document (base64 string), mode (optional).
// Response fields: run_id, status, mode, rule_count, batch_count, violations [{sequence, text}].
func (s *ComplianceService) Check(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := in.GetFields()
	docB64 := f["document"].GetStringValue()
	if base64.StdEncoding.DecodedLen(len(docB64)) > maxDocumentBytes {
		return nil, status.Errorf(codes.InvalidArgument, "document exceeds %d bytes", maxDocumentBytes)
	}
	doc, err := base64.StdEncoding.DecodeString(docB64)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "document must be base64-encoded")
	}

	res, err := s.svc.Check(ctx, check.Request{
		Client:       f["client"].GetStringValue(),
		Market:       f["market"].GetStringValue(),
		DocumentName: f["document_name"].GetStringValue(),
		Document:     doc,
		Mode:         f["mode"].GetStringValue(),
	}, nil)
	if err != nil {
		s.logger.Warn("check failed", zap.Error(err))
		return nil, common.ToGRPCStatus(err)
	}

	violations := make([]any, 0, len(res.Report.Violations))
	for _, v := range res.Report.Violations {
		violations = append(violations, map[string]any{"sequence": v.Sequence, "text": v.Text})
	}
	return toStruct(map[string]any{
		"run_id":      res.RunID.String(),
		"status":      string(res.Report.Status),
		"mode":        res.Meta.Mode,
		"rule_count":  res.Report.RuleCount,
		"batch_count": res.Report.BatchCount,
		"violations":  violations,
	})
}

// ListClients returns {clients: [...]}.
func (s *ComplianceService) ListClients(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	clients, err := s.svc.Clients(ctx)
	if err != nil {
		s.logger.Warn("list clients failed", zap.Error(err))
		return nil, common.ToGRPCStatus(err)
	}
	return toStruct(map[string]any{"clients": stringsToAny(clients)})
}

// ListMarkets takes {client} and returns {markets: [...]}.
func (s *ComplianceService) ListMarkets(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	client := in.GetFields()["client"].GetStringValue()
	markets, err := s.svc.Markets(ctx, client)
	if err != nil {
		s.logger.Warn("list markets failed", zap.String("client", client), zap.Error(err))
		return nil, common.ToGRPCStatus(err)
	}
	return toStruct(map[string]any{"markets": stringsToAny(markets)})
}

// ListRuns takes {client?, limit?} and returns {runs: [...]} newest first.
func (s *ComplianceService) ListRuns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := in.GetFields()
	runs, err := s.svc.Runs(ctx, repository.ListFilter{
		Client: strings.TrimSpace(f["client"].GetStringValue()),
		Limit:  int(f["limit"].GetNumberValue()),
	})
	if err != nil {
		s.logger.Warn("list runs failed", zap.Error(err))
		return nil, common.ToGRPCStatus(err)
	}
	out := make([]any, 0, len(runs))
	for _, r := range runs {
		out = append(out, runToMap(r))
	}
	return toStruct(map[string]any{"runs": out})
}

func runToMap(r *entity.CheckRun) map[string]any {
	m := map[string]any{
		"id":              r.ID.String(),
		"client":          r.Client,
		"market":          r.Market,
		"document_name":   r.DocumentName,
		"mode":            r.Mode,
		"status":          r.Status,
		"rule_count":      r.RuleCount,
		"batch_count":     r.BatchCount,
		"violation_count": r.ViolationCount,
		"started_at":      r.StartedAt.Format(time.RFC3339Nano),
	}
	if r.ErrorMessage != nil {
		m["error_message"] = *r.ErrorMessage
	}
	if r.FinishedAt != nil {
		m["finished_at"] = r.FinishedAt.Format(time.RFC3339Nano)
	}
	return m
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return st, nil
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
