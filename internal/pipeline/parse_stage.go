package processor

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/matcert-extractor/constants"
	"github.com/joseph-ayodele/matcert-extractor/internal/common"
	"github.com/joseph-ayodele/matcert-extractor/internal/composition"
	"github.com/joseph-ayodele/matcert-extractor/internal/extract"
	"github.com/joseph-ayodele/matcert-extractor/internal/repository"
)

type ParseStage struct {
	Parser extract.CompositionParser
	Store  repository.Store // optional
	Logger *slog.Logger
}

func NewParseStage(parser extract.CompositionParser, store repository.Store, logger *slog.Logger) *ParseStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParseStage{Parser: parser, Store: store, Logger: logger}
}

// Run parses text into records and finishes the run as PARSED or NO_DATA.
// A result without records is returned together with common.ErrNoComposition.
func (p *ParseStage) Run(ctx context.Context, runID uuid.UUID, text string) (composition.Result, constants.JobStatus, error) {
	res := p.Parser.Parse(text)

	status := constants.JobStatusParsed
	if res.Empty() {
		status = constants.JobStatusNoData
	}

	p.Logger.Info("parse.done",
		"run_id", runID,
		"table_found", res.Table.Found,
		"rows", len(res.Table.Rows),
		"repeated_headers", res.Table.RepeatedHeaders,
		"records", len(res.Records),
		"balance", res.Balance,
		"alloy", res.Metadata.Alloy,
		"heat_no", res.Metadata.HeatNo,
	)

	if p.Store != nil && runID != uuid.Nil {
		if len(res.Records) > 0 {
			if err := p.Store.SaveRecords(ctx, runID, res.Records); err != nil {
				return res, constants.JobStatusFailed, err
			}
		}
		if err := p.Store.FinishRun(ctx, runID, status, res.Metadata, len(res.Records)); err != nil {
			return res, constants.JobStatusFailed, err
		}
	}

	if status == constants.JobStatusNoData {
		return res, status, common.ErrNoComposition
	}
	return res, status, nil
}
