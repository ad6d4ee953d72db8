package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/matcert-extractor/constants"
	"github.com/joseph-ayodele/matcert-extractor/internal/common"
	"github.com/joseph-ayodele/matcert-extractor/internal/composition"
	"github.com/joseph-ayodele/matcert-extractor/internal/entity"
)

func f(v float64) *float64 { return &v }

func newTestStore(t *testing.T) (*sqlStore, *DB) {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{DSN: "file::memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { Close(db, nil) })
	require.NoError(t, Migrate(ctx, db))

	st := NewStore(db, nil).(*sqlStore)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return st, db
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:runs.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("runs.db"))
	assert.Equal(t, "file:/var/m.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("sqlite:///var/m.db"))
	assert.Equal(t, "file::memory:?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("file::memory:?cache=shared"))
	assert.Equal(t, "file:x.db?_pragma=journal_mode(WAL)", sqliteDSN("file:x.db?_pragma=journal_mode(WAL)"))
	assert.True(t, IsPostgresDSN("postgres://u@h/db"))
	assert.True(t, IsPostgresDSN("postgresql://u@h/db"))
	assert.False(t, IsPostgresDSN("runs.db"))
}

func TestMigrateIsIdempotent(t *testing.T) {
	_, db := newTestStore(t)
	assert.Equal(t, dialect.SQLite, db.Dialect)
	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, HealthCheck(context.Background(), db, time.Second, nil))

	var n int
	require.NoError(t, db.SQL.QueryRow(
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN (?, ?)", runTable, recordTable,
	).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestSchemaStatementsPerDialect(t *testing.T) {
	pg := schemaStatements(dialect.Postgres)
	assert.Contains(t, pg[0], "confidence DOUBLE PRECISION")
	assert.Contains(t, pg[1], "seq BIGINT NOT NULL")
	assert.Contains(t, pg[1], "REFERENCES extraction_run (id) ON DELETE CASCADE")

	lite := schemaStatements(dialect.SQLite)
	assert.Contains(t, lite[0], "pages INTEGER NOT NULL DEFAULT 0")
	assert.Contains(t, lite[1], "value REAL")
	assert.Len(t, lite, len(pg))
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	run, err := st.StartRun(ctx, "/in/cert.pdf", "abc123")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusRunning, run.Status)

	require.NoError(t, st.FinishOCR(ctx, run.ID, entity.OCRInfo{
		Pages:      2,
		SourceType: constants.PDF,
		Engine:     "deepseek",
		Method:     "pdf-ocr",
		Text:       "| C | Si | Mn |",
		Confidence: 0.75,
		Warnings:   []string{"page 2: empty text", "rotate failed"},
	}))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusOCROK, got.Status)
	assert.Equal(t, 2, got.Pages)
	assert.Equal(t, "| C | Si | Mn |", got.OCRText)
	assert.Equal(t, []string{"page 2: empty text", "rotate failed"}, got.Warnings)
	assert.InDelta(t, 0.75, got.Confidence, 1e-6)
	assert.Nil(t, got.FinishedAt)
	assert.False(t, got.Terminal())

	meta := composition.Metadata{Alloy: "TI-6AL-4V", HeatNo: "12345"}
	require.NoError(t, st.FinishRun(ctx, run.ID, constants.JobStatusParsed, meta, 4))

	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusParsed, got.Status)
	assert.Equal(t, 4, got.RecordCount)
	assert.Equal(t, "TI-6AL-4V", got.Alloy)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, time.Second, got.Duration())
	assert.True(t, got.Terminal())
}

func TestFailRun(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)
	run, err := st.StartRun(ctx, "/in/cert.pdf", "")
	require.NoError(t, err)

	require.NoError(t, st.FailRun(ctx, run.ID, "pdftoppm: exit status 1"))
	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Equal(t, "pdftoppm: exit status 1", got.ErrorMessage)
	assert.Empty(t, got.ContentHash)
}

func TestMissingRun(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	_, err := st.GetRun(ctx, uuid.New())
	assert.True(t, errors.Is(err, common.ErrNotFound))

	err = st.FailRun(ctx, uuid.New(), "x")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestSaveAndListRecords(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)
	run, err := st.StartRun(ctx, "/in/cert.pdf", "")
	require.NoError(t, err)

	recs := []composition.Record{
		{ElementSymbol: "C", ElementName: "Carbon", Value: f(0.01), Unit: "wt.%", ValueType: constants.ValueExact, SamplePosition: constants.PositionActual},
		{ElementSymbol: "FE", ElementName: "Iron", Value: f(0.1), MaxValue: f(0.3), Unit: "wt.%", ValueType: constants.ValueRange, SamplePosition: constants.PositionRequirement},
		{ElementSymbol: "TI", ElementName: "Titanium", Unit: "wt.%", ValueType: constants.ValueBalance, SamplePosition: constants.PositionActual},
	}
	composition.Metadata{Alloy: "TI-6AL-4V"}.Apply(recs)

	require.NoError(t, st.SaveRecords(ctx, run.ID, recs))
	got, err := st.ListRecords(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, recs, got)

	// saving again replaces
	require.NoError(t, st.SaveRecords(ctx, run.ID, recs[:1]))
	got, err = st.ListRecords(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = st.ListRecords(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveRecordsSpansInsertBatches(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)
	run, err := st.StartRun(ctx, "/in/long.pdf", "")
	require.NoError(t, err)

	recs := make([]composition.Record, 2*recordBatchSize+7)
	for i := range recs {
		recs[i] = composition.Record{
			ElementSymbol: "FE", ElementName: "Iron", Value: f(float64(i)), Unit: "wt.%",
			ValueType: constants.ValueExact, SamplePosition: constants.PositionActual,
		}
	}
	require.NoError(t, st.SaveRecords(ctx, run.ID, recs))

	got, err := st.ListRecords(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, len(recs))
	assert.Equal(t, 0.0, *got[0].Value)
	assert.Equal(t, float64(recordBatchSize), *got[recordBatchSize].Value)
	assert.Equal(t, float64(len(recs)-1), *got[len(recs)-1].Value)
}

func TestSaveRecordsUnknownRunFails(t *testing.T) {
	st, _ := newTestStore(t)
	err := st.SaveRecords(context.Background(), uuid.New(), []composition.Record{
		{ElementSymbol: "C", ElementName: "Carbon", Value: f(1), Unit: "wt.%", ValueType: constants.ValueExact, SamplePosition: constants.PositionActual},
	})
	require.Error(t, err, "foreign key enforced")
	assert.True(t, errors.Is(err, common.ErrDatabase))
}

func TestListRunsAndFindByHash(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	var ids []uuid.UUID
	for _, hash := range []string{"h1", "h2", "h1"} {
		run, err := st.StartRun(ctx, "/in/"+hash+".pdf", hash)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}
	require.NoError(t, st.FinishRun(ctx, ids[0], constants.JobStatusParsed, composition.Metadata{}, 1))
	require.NoError(t, st.FinishRun(ctx, ids[2], constants.JobStatusNoData, composition.Metadata{}, 0))

	runs, err := st.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID, "newest first")
	assert.Equal(t, ids[1], runs[1].ID)

	found, err := st.FindParsedByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, ids[0], found.ID)

	_, err = st.FindParsedByHash(ctx, "h2")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
