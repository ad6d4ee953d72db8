package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/matcert-extractor/constants"
	"github.com/joseph-ayodele/matcert-extractor/internal/common"
	"github.com/joseph-ayodele/matcert-extractor/internal/composition"
	"github.com/joseph-ayodele/matcert-extractor/internal/entity"
	"github.com/joseph-ayodele/matcert-extractor/internal/export"
	"github.com/joseph-ayodele/matcert-extractor/internal/extract"
	"github.com/joseph-ayodele/matcert-extractor/internal/ingest"
	"github.com/joseph-ayodele/matcert-extractor/internal/repository"
)

// MaxTextLength caps the OCR text accepted by ParseText, in characters.
const MaxTextLength = 2 << 20

// CompositionService implements CompositionServer. Store and Ingestor are
// optional; methods that need them answer FailedPrecondition when unset.
type CompositionService struct {
	parser   extract.CompositionParser
	store    repository.Store
	ingestor ingest.Ingestor
	exporter *export.Service
	logger   *slog.Logger
	now      func() time.Time
}

func NewCompositionService(parser extract.CompositionParser, store repository.Store, ing ingest.Ingestor, exporter *export.Service, logger *slog.Logger) *CompositionService {
	if logger == nil {
		logger = slog.Default()
	}
	if exporter == nil {
		exporter = export.NewService(logger)
	}
	return &CompositionService{
		parser:   parser,
		store:    store,
		ingestor: ing,
		exporter: exporter,
		logger:   logger,
		now:      time.Now,
	}
}

// ParseText parses {text} without persisting anything.
func (s *CompositionService) ParseText(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text := stringField(req, "text")
	v := common.NewValidator().Field("text", text, common.Required, common.MaxLength(MaxTextLength))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	res := s.parser.Parse(text)
	common.LoggerFromContext(ctx).Info("parse_text.ok", "records", len(res.Records), "table_found", res.Table.Found)

	return newStruct(map[string]any{
		"records":     recordsList(res.Records),
		"alloy":       res.Metadata.Alloy,
		"heat_no":     res.Metadata.HeatNo,
		"table_found": res.Table.Found,
		"balance":     res.Balance,
	})
}

// SubmitFile hands {path, force?} to the ingestor, which hashes it,
// deduplicates against earlier runs and queues it for processing.
func (s *CompositionService) SubmitFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.ingestor == nil {
		return nil, status.Error(codes.FailedPrecondition, "file processing is not enabled")
	}
	path := strings.TrimSpace(stringField(req, "path"))
	if err := common.ValidateAndReturnError(common.NewValidator().Field("path", path, common.Required)); err != nil {
		return nil, err
	}
	if fsi, ok := s.ingestor.(*ingest.FSIngestor); ok && boolField(req, "force") {
		// force applies to this call only
		clone := *fsi
		clone.Force = true
		return s.submit(ctx, &clone, path)
	}
	return s.submit(ctx, s.ingestor, path)
}

func (s *CompositionService) submit(ctx context.Context, ing ingest.Ingestor, path string) (*structpb.Struct, error) {
	r, err := ing.IngestPath(ctx, path)
	if err != nil {
		s.logger.Warn("submit_file.failed", "path", path, "error", err)
		return nil, common.ToStatus(err)
	}
	s.logger.Info("submit_file.ok", "path", r.SourcePath, "deduplicated", r.Deduplicated, "enqueued", r.Enqueued)
	return newStruct(map[string]any{
		"source_path":      r.SourcePath,
		"content_hash_hex": r.HashHex,
		"file_ext":         r.FileExt,
		"size":             r.Size,
		"deduplicated":     r.Deduplicated,
		"prior_run_id":     r.PriorRunID,
		"enqueued":         r.Enqueued,
	})
}

// GetRun returns {run_id} with its status, OCR summary and metadata.
func (s *CompositionService) GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.store == nil {
		return nil, status.Error(codes.FailedPrecondition, "persistence is not configured")
	}
	runID, err := runIDField(req)
	if err != nil {
		return nil, err
	}
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return newStruct(runMap(run, boolField(req, "include_text")))
}

// ListRuns returns the latest {limit?} runs, newest first.
func (s *CompositionService) ListRuns(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.store == nil {
		return nil, status.Error(codes.FailedPrecondition, "persistence is not configured")
	}
	limit := int(numberField(req, "limit"))
	if err := common.ValidateAndReturnError(common.NewValidator().Field("limit", limit, common.IntRange(0, 1000))); err != nil {
		return nil, err
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		s.logger.Warn("list runs failed", "error", err)
		return nil, common.ToStatus(err)
	}
	out := make([]any, 0, len(runs))
	for _, r := range runs {
		out = append(out, runMap(r, false))
	}
	return newStruct(map[string]any{"runs": out})
}

// ListRecords returns the composition records of {run_id}.
func (s *CompositionService) ListRecords(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	recs, err := s.runRecords(ctx, req)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{
		"records": recordsList(recs),
		"summary": summaryMap(export.Summary(recs)),
	})
}

// ExportRecords renders the records of {run_id} as {format} (csv | xlsx |
// json) and returns the file base64 encoded.
func (s *CompositionService) ExportRecords(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	format := constants.FormatCSV
	if in := stringField(req, "format"); in != "" {
		f, ok := constants.CanonicalizeFormat(in)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "unsupported format %q", in)
		}
		format = f
	}
	recs, err := s.runRecords(ctx, req)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := s.exporter.Write(&buf, format, recs); err != nil {
		s.logger.Error("export.failed", "format", format, "err", err)
		return nil, status.Error(codes.Internal, err.Error())
	}
	return newStruct(map[string]any{
		"file_name":      export.DefaultFileName(s.now(), format),
		"format":         string(format),
		"content_base64": base64.StdEncoding.EncodeToString(buf.Bytes()),
		"records":        len(recs),
	})
}

func (s *CompositionService) runRecords(ctx context.Context, req *structpb.Struct) ([]composition.Record, error) {
	if s.store == nil {
		return nil, status.Error(codes.FailedPrecondition, "persistence is not configured")
	}
	runID, err := runIDField(req)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, common.ToStatus(err)
	}
	recs, err := s.store.ListRecords(ctx, runID)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return recs, nil
}

func runIDField(req *structpb.Struct) (uuid.UUID, error) {
	raw := strings.TrimSpace(stringField(req, "run_id"))
	if err := common.ValidateAndReturnError(common.NewValidator().Field("run_id", raw, common.Required, common.UUID)); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func boolField(s *structpb.Struct, key string) bool {
	return s.GetFields()[key].GetBoolValue()
}

func numberField(s *structpb.Struct, key string) float64 {
	return s.GetFields()[key].GetNumberValue()
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

func recordsList(recs []composition.Record) []any {
	out := make([]any, 0, len(recs))
	for _, r := range recs {
		out = append(out, map[string]any{
			"element_symbol":  r.ElementSymbol,
			"element_name":    r.ElementName,
			"value":           floatOrNil(r.Value),
			"max_value":       floatOrNil(r.MaxValue),
			"unit":            r.Unit,
			"value_type":      string(r.ValueType),
			"sample_position": string(r.SamplePosition),
			"alloy":           r.Alloy,
			"heat_no":         r.HeatNo,
		})
	}
	return out
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func summaryMap(sum export.RecordSummary) map[string]any {
	elements := make([]any, 0, len(sum.Elements))
	for _, e := range sum.Elements {
		elements = append(elements, e)
	}
	return map[string]any{"entries": sum.Entries, "elements": elements}
}

func runMap(r *entity.Run, includeText bool) map[string]any {
	warnings := make([]any, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		warnings = append(warnings, w)
	}
	m := map[string]any{
		"run_id":        r.ID.String(),
		"source_path":   r.SourcePath,
		"content_hash":  r.ContentHash,
		"source_type":   r.SourceType,
		"pages":         r.Pages,
		"engine":        r.Engine,
		"method":        r.Method,
		"status":        string(r.Status),
		"confidence":    float64(r.Confidence),
		"warnings":      warnings,
		"record_count":  r.RecordCount,
		"alloy":         r.Alloy,
		"heat_no":       r.HeatNo,
		"error_message": r.ErrorMessage,
		"started_at":    r.StartedAt.UTC().Format(time.RFC3339Nano),
		"finished_at":   nil,
		"duration_ms":   r.Duration().Milliseconds(),
	}
	if r.FinishedAt != nil {
		m["finished_at"] = r.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	if includeText {
		m["ocr_text"] = r.OCRText
	}
	return m
}
