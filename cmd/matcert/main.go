package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/joseph-ayodele/matcert-extractor/constants"
	"github.com/joseph-ayodele/matcert-extractor/internal/app"
	"github.com/joseph-ayodele/matcert-extractor/internal/async"
	"github.com/joseph-ayodele/matcert-extractor/internal/common"
	"github.com/joseph-ayodele/matcert-extractor/internal/composition"
	"github.com/joseph-ayodele/matcert-extractor/internal/export"
	"github.com/joseph-ayodele/matcert-extractor/internal/ingest"
	processor "github.com/joseph-ayodele/matcert-extractor/internal/pipeline"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2

	previewRows = 20

	// how long in-flight files get to stop after an interrupt
	interruptGrace = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	output     string
	dpi        int
	format     string
	engine     string
	configPath string
	dbDSN      string
	saveOCR    bool
	dir        string
	workers    int
	maxPages   int
	keepImages bool
	force      bool
	logLevel   string
}

func newFlagSet(name string, stderr io.Writer, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.output, "o", "", "output directory (default from config, ./output)")
	fs.StringVar(&o.output, "output", "", "output directory (default from config, ./output)")
	fs.IntVar(&o.dpi, "dpi", 0, "rasterization DPI (default 400)")
	fs.StringVar(&o.format, "format", "", "export format: csv | xlsx | json")
	fs.StringVar(&o.engine, "engine", "", "OCR engine: deepseek | tesseract")
	fs.StringVar(&o.configPath, "config", "", "TOML config file (default $MATCERT_CONFIG)")
	fs.StringVar(&o.dbDSN, "db", "", "database DSN: sqlite path or postgres:// URL (empty disables persistence)")
	fs.BoolVar(&o.saveOCR, "save-ocr", true, "write merged_ocr.txt next to the export")
	fs.StringVar(&o.dir, "dir", "", "process every PDF and image under this directory")
	fs.IntVar(&o.workers, "workers", 0, "parallel files in --dir mode")
	fs.IntVar(&o.maxPages, "max-pages", 0, "only OCR the first N pages (0 = all)")
	fs.BoolVar(&o.keepImages, "keep-images", false, "keep rasterized page images in the images dir")
	fs.BoolVar(&o.force, "force", false, "reprocess files already parsed (needs --db)")
	fs.StringVar(&o.logLevel, "log-level", "", "debug | info | warn | error")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage:\n  matcert [flags] <certificate.pdf|image>\n  matcert [flags] --dir <folder>\n  matcert parse [flags] <merged_ocr.txt>\n\nflags:\n")
		fs.PrintDefaults()
	}
	return fs
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	mode := "ocr"
	if len(args) > 0 && args[0] == "parse" {
		mode = "parse"
		args = args[1:]
	}

	var o options
	fs := newFlagSet("matcert", stderr, &o)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	switch {
	case o.dir != "" && mode == "parse":
		fmt.Fprintln(stderr, "Error: --dir cannot be combined with parse")
		return exitUsage
	case o.dir != "" && fs.NArg() != 0:
		fmt.Fprintln(stderr, "Error: give either --dir or a single file")
		return exitUsage
	case o.dir == "" && fs.NArg() != 1:
		fs.Usage()
		return exitUsage
	}

	cfg, err := common.LoadConfig(o.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	applyFlags(cfg, o, set)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	format, _ := constants.CanonicalizeFormat(cfg.Export.Format)

	logger := common.NewLogger(stderr, cfg.Logging)
	slog.SetDefault(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return exitFail
	}
	defer a.Close()

	if o.dir != "" {
		return runBatch(ctx, a, o, format, stdout)
	}

	path := fs.Arg(0)
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFail
	}
	proc := a.Processor
	if mode == "parse" {
		proc = a.TextProcessor()
	}
	return runSingle(ctx, a, proc, path, format, stdout)
}

func applyFlags(cfg *common.Config, o options, set map[string]bool) {
	if o.output != "" {
		cfg.Export.OutputDir = o.output
	}
	if o.dpi != 0 {
		cfg.OCR.DPI = o.dpi
	}
	if o.format != "" {
		cfg.Export.Format = strings.ToLower(o.format)
	}
	if o.engine != "" {
		cfg.OCR.Engine = strings.ToLower(o.engine)
	}
	if o.dbDSN != "" {
		cfg.Database.DSN = o.dbDSN
	}
	if set["save-ocr"] {
		cfg.Export.SaveOCRText = o.saveOCR
	}
	if o.workers > 0 {
		cfg.Server.Workers = o.workers
	}
	if o.maxPages > 0 {
		cfg.OCR.MaxPages = o.maxPages
	}
	if set["keep-images"] {
		cfg.OCR.KeepImages = o.keepImages
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
}

func runSingle(ctx context.Context, a *app.App, proc *processor.Processor, path string, format constants.ExportFormat, stdout io.Writer) int {
	logger := a.Logger
	res, err := proc.ProcessFile(ctx, path)
	if errors.Is(err, common.ErrNoComposition) {
		logger.Warn("no chemical composition data found", "path", path, "pages", res.OCR.Pages)
		fmt.Fprintln(stdout, "No chemical composition data found.")
		return exitFail
	}
	if err != nil {
		logger.Error("processing failed", "path", path, "error", err)
		return exitFail
	}

	out := filepath.Join(a.Config.Export.OutputDir, export.DefaultFileName(time.Now(), format))
	if err := a.Exporter.WriteFile(ctx, out, format, res.Result.Records); err != nil {
		logger.Error("export failed", "path", out, "error", err)
		return exitFail
	}

	printPreview(stdout, res.Result.Records)
	logSummary(logger, res, out)
	return exitOK
}

func runBatch(ctx context.Context, a *app.App, o options, format constants.ExportFormat, stdout io.Writer) int {
	logger := a.Logger
	// every file would overwrite the same merged_ocr.txt
	a.Processor.OCR.SaveOCRText = false

	var (
		mu       sync.Mutex
		exported int
		noData   int
		failed   int
	)
	onResult := func(job async.Job, res processor.RunResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case errors.Is(err, common.ErrNoComposition):
			noData++
			fmt.Fprintf(stdout, "%s: no chemical composition data found\n", job.Path)
			return
		case err != nil:
			failed++
			fmt.Fprintf(stdout, "%s: failed: %v\n", job.Path, err)
			return
		}
		out := filepath.Join(a.Config.Export.OutputDir, export.SourceFileName(job.Path, format))
		if err := a.Exporter.WriteFile(ctx, out, format, res.Result.Records); err != nil {
			failed++
			logger.Error("export failed", "path", out, "error", err)
			return
		}
		exported++
		fmt.Fprintf(stdout, "%s: %d records -> %s\n", job.Path, len(res.Result.Records), out)
		logSummary(logger, res, out)
	}

	q := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(a.Config.Server.Workers),
		async.WithProcessTimeout(a.Config.Server.JobTimeout.Std()),
		async.WithResultHandler(onResult),
		async.WithBaseContext(ctx),
	)
	ing := ingest.NewFSIngestor(a.Store, q, logger)
	ing.Force = o.force

	results, stats, err := ing.IngestDirectory(ctx, o.dir, true)
	drainCtx, cancelDrain := context.WithCancel(context.Background())
	defer cancelDrain()
	stopGrace := context.AfterFunc(ctx, func() { time.AfterFunc(interruptGrace, cancelDrain) })
	q.Shutdown(drainCtx)
	stopGrace()

	mu.Lock()
	defer mu.Unlock()
	if ctx.Err() != nil {
		logger.Warn("batch interrupted", "dir", o.dir, "exported", exported)
		return exitFail
	}
	if err != nil {
		logger.Error("failed to ingest directory", "dir", o.dir, "error", err)
		return exitFail
	}
	deduped := 0
	for _, r := range results {
		if r.Deduplicated && !r.Enqueued {
			deduped++
			fmt.Fprintf(stdout, "%s: unchanged since run %s, skipped\n", r.SourcePath, r.PriorRunID)
		}
	}

	logger.Info("batch processing complete",
		"dir", o.dir,
		"matched", stats.Matched,
		"exported", exported,
		"no_data", noData,
		"deduplicated", deduped,
		"failed", failed+int(stats.Failed),
	)
	if failed > 0 || stats.Failed > 0 || exported+deduped == 0 {
		return exitFail
	}
	return exitOK
}

func printPreview(w io.Writer, recs []composition.Record) {
	n := len(recs)
	if n > previewRows {
		n = previewRows
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ELEMENT\tNAME\tVALUE\tMAX\tUNIT\tTYPE\tPOSITION")
	for _, r := range recs[:n] {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ElementSymbol, r.ElementName, fmtValue(r.Value), fmtValue(r.MaxValue),
			r.Unit, r.ValueType, r.SamplePosition)
	}
	_ = tw.Flush()
	if len(recs) > n {
		fmt.Fprintf(w, "... and %d more\n", len(recs)-n)
	}
}

func fmtValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}

func logSummary(logger *slog.Logger, res processor.RunResult, out string) {
	sum := export.Summary(res.Result.Records)
	logger.Info("extraction summary",
		"path", res.Path,
		"run_id", res.RunID,
		"output", out,
		"entries", sum.Entries,
		"elements", sum.Elements,
		"alloy", res.Result.Metadata.Alloy,
		"heat_no", res.Result.Metadata.HeatNo,
		"duration_ms", res.Duration.Milliseconds(),
	)
}
