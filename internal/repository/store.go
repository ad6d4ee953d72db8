package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/matcert-extractor/constants"
	"github.com/joseph-ayodele/matcert-extractor/internal/common"
	"github.com/joseph-ayodele/matcert-extractor/internal/composition"
	"github.com/joseph-ayodele/matcert-extractor/internal/entity"
)

// Store persists extraction runs and their composition records.
type Store interface {
	StartRun(ctx context.Context, sourcePath, contentHash string) (*entity.Run, error)
	FinishOCR(ctx context.Context, runID uuid.UUID, info entity.OCRInfo) error
	FinishRun(ctx context.Context, runID uuid.UUID, status constants.JobStatus, meta composition.Metadata, recordCount int) error
	FailRun(ctx context.Context, runID uuid.UUID, message string) error
	SaveRecords(ctx context.Context, runID uuid.UUID, recs []composition.Record) error
	GetRun(ctx context.Context, runID uuid.UUID) (*entity.Run, error)
	ListRecords(ctx context.Context, runID uuid.UUID) ([]composition.Record, error)
	ListRuns(ctx context.Context, limit int) ([]*entity.Run, error)
	FindParsedByHash(ctx context.Context, contentHash string) (*entity.Run, error)
}

// recordBatchSize bounds the rows of one INSERT; each row binds 11 parameters.
const recordBatchSize = 500

// timeLayout is fixed width so text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type sqlStore struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(db *DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &sqlStore{db: db, logger: logger, now: time.Now}
}

var runColumns = []string{
	"id", "source_path", "content_hash", "source_type", "pages", "engine", "method",
	"status", "ocr_text", "confidence", "warnings", "record_count", "alloy", "heat_no",
	"error_message", "started_at", "finished_at",
}

func (s *sqlStore) StartRun(ctx context.Context, sourcePath, contentHash string) (*entity.Run, error) {
	run := &entity.Run{
		ID:          uuid.New(),
		SourcePath:  sourcePath,
		ContentHash: contentHash,
		Status:      constants.JobStatusRunning,
		StartedAt:   s.now().UTC(),
	}
	query, args := s.db.builder().Insert(runTable).
		Columns("id", "source_path", "content_hash", "status", "started_at").
		Values(run.ID.String(), sourcePath, nullString(contentHash), string(run.Status), formatTime(run.StartedAt)).
		Query()
	if _, err := s.db.SQL.ExecContext(ctx, query, args...); err != nil {
		s.logger.Error("extraction_run start failed", "source_path", sourcePath, "error", err)
		return nil, common.NewAppError(common.CodeDatabase, "start run", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	s.logger.Info("extraction_run started", "run_id", run.ID, "source_path", sourcePath)
	return run, nil
}

func (s *sqlStore) FinishOCR(ctx context.Context, runID uuid.UUID, info entity.OCRInfo) error {
	upd := s.db.builder().Update(runTable).
		Set("status", string(constants.JobStatusOCROK)).
		Set("pages", info.Pages).
		Set("source_type", nullString(info.SourceType)).
		Set("engine", nullString(info.Engine)).
		Set("method", nullString(info.Method)).
		Set("ocr_text", info.Text).
		Set("confidence", float64(info.Confidence)).
		Set("warnings", nullString(strings.Join(info.Warnings, "\n"))).
		Where(entsql.EQ("id", runID.String()))
	if err := s.execOne(ctx, upd); err != nil {
		s.logger.Error("extraction_run finish(OCR_OK) failed", "run_id", runID, "error", err)
		return err
	}
	s.logger.Info("extraction_run OCR_OK", "run_id", runID, "pages", info.Pages, "engine", info.Engine)
	return nil
}

func (s *sqlStore) FinishRun(ctx context.Context, runID uuid.UUID, status constants.JobStatus, meta composition.Metadata, recordCount int) error {
	upd := s.db.builder().Update(runTable).
		Set("status", string(status)).
		Set("record_count", recordCount).
		Set("alloy", nullString(meta.Alloy)).
		Set("heat_no", nullString(meta.HeatNo)).
		Set("finished_at", formatTime(s.now())).
		Where(entsql.EQ("id", runID.String()))
	if err := s.execOne(ctx, upd); err != nil {
		s.logger.Error("extraction_run finish failed", "run_id", runID, "status", status, "error", err)
		return err
	}
	s.logger.Info("extraction_run finished", "run_id", runID, "status", status, "records", recordCount)
	return nil
}

func (s *sqlStore) FailRun(ctx context.Context, runID uuid.UUID, message string) error {
	upd := s.db.builder().Update(runTable).
		Set("status", string(constants.JobStatusFailed)).
		Set("error_message", message).
		Set("finished_at", formatTime(s.now())).
		Where(entsql.EQ("id", runID.String()))
	if err := s.execOne(ctx, upd); err != nil {
		s.logger.Error("extraction_run finish(FAILED) failed", "run_id", runID, "error", err)
		return err
	}
	s.logger.Warn("extraction_run finished (FAILED)", "run_id", runID, "error", message)
	return nil
}

// SaveRecords replaces the records of a run. seq keeps the given order.
func (s *sqlStore) SaveRecords(ctx context.Context, runID uuid.UUID, recs []composition.Record) error {
	tx, err := s.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return dbError("save records", err)
	}
	defer func() { _ = tx.Rollback() }()

	del, delArgs := s.db.builder().Delete(recordTable).Where(entsql.EQ("run_id", runID.String())).Query()
	if _, err := tx.ExecContext(ctx, del, delArgs...); err != nil {
		return dbError("save records", err)
	}
	for start := 0; start < len(recs); start += recordBatchSize {
		end := min(start+recordBatchSize, len(recs))
		ins := s.db.builder().Insert(recordTable).Columns(
			"run_id", "seq", "element_symbol", "element_name", "value", "max_value",
			"unit", "value_type", "sample_position", "alloy", "heat_no",
		)
		for i, r := range recs[start:end] {
			ins.Values(
				runID.String(), start+i, r.ElementSymbol, r.ElementName,
				nullFloat(r.Value), nullFloat(r.MaxValue),
				r.Unit, string(r.ValueType), string(r.SamplePosition),
				nullString(r.Alloy), nullString(r.HeatNo),
			)
		}
		query, args := ins.Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			s.logger.Error("composition_record insert failed", "run_id", runID, "offset", start, "count", end-start, "error", err)
			return dbError("save records", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return dbError("save records", err)
	}
	s.logger.Debug("composition_record saved", "run_id", runID, "count", len(recs))
	return nil
}

func (s *sqlStore) GetRun(ctx context.Context, runID uuid.UUID) (*entity.Run, error) {
	query, args := s.db.builder().Select(runColumns...).
		From(entsql.Table(runTable)).
		Where(entsql.EQ("id", runID.String())).
		Query()
	run, err := scanRun(s.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError(common.CodeNotFound, fmt.Sprintf("run %s", runID), common.ErrNotFound)
	}
	if err != nil {
		return nil, dbError("get run", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means 50.
func (s *sqlStore) ListRuns(ctx context.Context, limit int) ([]*entity.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query, args := s.db.builder().Select(runColumns...).
		From(entsql.Table(runTable)).
		OrderBy(entsql.Desc("started_at")).
		Limit(limit).
		Query()
	return s.queryRuns(ctx, "list runs", query, args)
}

// FindParsedByHash returns the latest PARSED run for a content hash, or
// ErrNotFound.
func (s *sqlStore) FindParsedByHash(ctx context.Context, contentHash string) (*entity.Run, error) {
	query, args := s.db.builder().Select(runColumns...).
		From(entsql.Table(runTable)).
		Where(entsql.And(
			entsql.EQ("content_hash", contentHash),
			entsql.EQ("status", string(constants.JobStatusParsed)),
		)).
		OrderBy(entsql.Desc("started_at")).
		Limit(1).
		Query()
	runs, err := s.queryRuns(ctx, "find run by hash", query, args)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, common.NewAppError(common.CodeNotFound, "run by hash", common.ErrNotFound)
	}
	return runs[0], nil
}

// ListRecords returns a run's records in saved order.
func (s *sqlStore) ListRecords(ctx context.Context, runID uuid.UUID) ([]composition.Record, error) {
	query, args := s.db.builder().Select(
		"element_symbol", "element_name", "value", "max_value",
		"unit", "value_type", "sample_position", "alloy", "heat_no",
	).
		From(entsql.Table(recordTable)).
		Where(entsql.EQ("run_id", runID.String())).
		OrderBy("seq").
		Query()
	rows, err := s.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("list records", err)
	}
	defer rows.Close()

	var out []composition.Record
	for rows.Next() {
		var (
			r                 composition.Record
			value, maxValue   sql.NullFloat64
			valueType, pos    string
			alloy, heatNumber sql.NullString
		)
		if err := rows.Scan(&r.ElementSymbol, &r.ElementName, &value, &maxValue,
			&r.Unit, &valueType, &pos, &alloy, &heatNumber); err != nil {
			return nil, dbError("list records", err)
		}
		r.Value = floatPtr(value)
		r.MaxValue = floatPtr(maxValue)
		r.ValueType = constants.ValueType(valueType)
		r.SamplePosition = constants.SamplePosition(pos)
		r.Alloy = alloy.String
		r.HeatNo = heatNumber.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list records", err)
	}
	return out, nil
}

func (s *sqlStore) queryRuns(ctx context.Context, op, query string, args []any) ([]*entity.Run, error) {
	rows, err := s.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(op, err)
	}
	defer rows.Close()
	var out []*entity.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, dbError(op, err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(op, err)
	}
	return out, nil
}

// execOne runs an update that must touch exactly one row.
func (s *sqlStore) execOne(ctx context.Context, q entsql.Querier) error {
	query, args := q.Query()
	res, err := s.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		return dbError("update run", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewAppError(common.CodeNotFound, "update run", common.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (*entity.Run, error) {
	var (
		run                                         entity.Run
		id, status, startedAt                       string
		hash, sourceType, engine, method, ocrText   sql.NullString
		warnings, alloy, heatNo, errMsg, finishedAt sql.NullString
		confidence                                  sql.NullFloat64
		pages, recordCount                          int64
	)
	if err := sc.Scan(&id, &run.SourcePath, &hash, &sourceType, &pages, &engine, &method,
		&status, &ocrText, &confidence, &warnings, &recordCount, &alloy, &heatNo,
		&errMsg, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("run id %q: %w", id, err)
	}
	run.ID = parsed
	run.ContentHash = hash.String
	run.SourceType = sourceType.String
	run.Pages = int(pages)
	run.Engine = engine.String
	run.Method = method.String
	run.Status = constants.JobStatus(status)
	run.OCRText = ocrText.String
	run.Confidence = float32(confidence.Float64)
	if warnings.String != "" {
		run.Warnings = strings.Split(warnings.String, "\n")
	}
	run.RecordCount = int(recordCount)
	run.Alloy = alloy.String
	run.HeatNo = heatNo.String
	run.ErrorMessage = errMsg.String
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		run.FinishedAt = &t
	}
	return &run, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func dbError(op string, err error) error {
	return common.NewAppError(common.CodeDatabase, op, fmt.Errorf("%w: %w", common.ErrDatabase, err))
}
