package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/medilink/constants"
	"github.com/joseph-ayodele/medilink/internal/analysis"
	"github.com/joseph-ayodele/medilink/internal/app"
	"github.com/joseph-ayodele/medilink/internal/async"
	"github.com/joseph-ayodele/medilink/internal/common"
	"github.com/joseph-ayodele/medilink/internal/export"
	"github.com/joseph-ayodele/medilink/internal/ingest"
)

// summaryLen bounds the analysis excerpt written to the report.
const summaryLen = 300

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type row struct {
	File       string
	Status     constants.JobStatus
	DocType    string
	SessionID  string
	Chars      int
	Provenance string
	Summary    string
	Err        string
}

type report struct {
	mu   sync.Mutex
	rows []row
}

func (r *report) add(x row) {
	r.mu.Lock()
	r.rows = append(r.rows, x)
	r.mu.Unlock()
}

func (r *report) sheet() export.Sheet {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.Slice(r.rows, func(i, j int) bool { return r.rows[i].File < r.rows[j].File })

	sh := export.Sheet{
		Name: "Documents",
		Columns: []export.Column{
			{Header: "File", Width: 40},
			{Header: "Status", Width: 12},
			{Header: "Document Type", Width: 16},
			{Header: "Session", Width: 38},
			{Header: "Chars", Width: 10},
			{Header: "Provenance", Width: 28},
			{Header: "Summary / Error", Width: 80},
		},
	}
	for _, x := range r.rows {
		last := x.Summary
		if x.Err != "" {
			last = "ERROR: " + x.Err
		}
		sh.Rows = append(sh.Rows, []any{x.File, string(x.Status), x.DocType, x.SessionID, x.Chars, x.Provenance, last})
	}
	return sh
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory of medical documents to process (required)")
		out     = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		docType = flag.String("type", "lab_report", "document_type hint: prescription|lab_report|auto")
		watch   = flag.Bool("watch", false, "keep watching -dir for new documents until interrupted")
		workers = flag.Int("workers", 4, "documents analyzed concurrently")
		exts    = flag.String("ext", "", "comma separated extensions to include (default: every supported type)")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "medilink-report.xlsx")
	}
	hint, ok := constants.ParseHint(*docType)
	if !ok {
		printError("Error: invalid --type %q, use one of %s\n", *docType, strings.Join(constants.HintTypes(), ", "))
		os.Exit(1)
	}
	var extSet map[string]struct{}
	if *exts != "" {
		extSet = ingest.ExtSet(strings.Split(*exts, ","))
	}

	cfg := common.LoadConfig()
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	if cfg.LLM.APIKey == "" {
		logger.Error("GROQ_API_KEY env var is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := app.NewPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logger.Error("failed to close pipeline", "error", err)
		}
	}()

	rep := &report{}
	queue := async.NewQueue(func(ctx context.Context, job async.Job) error {
		return processOne(ctx, pipeline.Analysis, job, rep)
	}, logger,
		async.WithWorkers(*workers),
		async.WithQueueSize(64),
		async.WithProcessTimeout(5*time.Minute),
	)

	enqueue := func(path string) {
		job := async.Job{ID: uuid.NewString(), Path: path, Hint: string(hint)}
		if err := queue.Enqueue(ctx, job); err != nil {
			logger.Warn("batch.enqueue.failed", "path", path, "error", err)
		}
	}

	if *watch {
		events, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
			Roots:       []string{*dir},
			Exts:        extSet,
			InitialScan: true,
			Debounce:    500 * time.Millisecond,
			SkipHidden:  true,
		}, logger)
		if err != nil {
			logger.Error("failed to watch directory", "dir", *dir, "error", err)
			os.Exit(1)
		}
		logger.Info("watching for documents", "dir", *dir)
		go func() {
			for err := range errs {
				logger.Warn("batch.watch.error", "error", err)
			}
		}()
		for path := range events {
			enqueue(path)
		}
	} else {
		files, stats, err := ingest.ScanDirectory(ctx, *dir, ingest.ScanOptions{Exts: extSet, SkipHidden: true}, logger)
		if err != nil {
			logger.Error("failed to scan directory", "dir", *dir, "error", err)
			os.Exit(1)
		}
		logger.Info("scan complete",
			"matched", stats.Matched,
			"duplicates", stats.Duplicates,
			"failed", stats.Failed,
		)
		for _, f := range files {
			switch {
			case f.Err != "":
				rep.add(row{File: f.Path, Status: constants.JobStatusFailed, Err: f.Err})
			case f.Duplicate:
				logger.Info("batch.skip.duplicate", "path", f.Path, "sha256", f.HashHex)
				rep.add(row{File: f.Path, Status: constants.JobStatusDuplicate})
			default:
				enqueue(f.Path)
			}
		}
	}

	queue.Shutdown(context.Background())

	xlsx, err := export.NewService(logger).XLSX(rep.sheet())
	if err != nil {
		logger.Error("failed to build report", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
		logger.Error("failed to write report", "path", *out, "error", err)
		os.Exit(1)
	}
	logger.Info("report written", "path", *out, "documents", len(rep.rows))
}

func processOne(ctx context.Context, svc *analysis.Service, job async.Job, rep *report) error {
	ctx = common.WithRequestID(ctx, job.ID)
	body, err := os.ReadFile(job.Path)
	if err != nil {
		rep.add(row{File: job.Path, Status: constants.JobStatusFailed, Err: err.Error()})
		return err
	}
	res, err := svc.Analyze(ctx, analysis.Upload{
		Filename: filepath.Base(job.Path),
		Bytes:    body,
		Hint:     constants.DocType(job.Hint),
	})
	if err != nil {
		rep.add(row{File: job.Path, Status: constants.JobStatusFailed, Err: common.Detail(err)})
		return err
	}
	rep.add(row{
		File:       job.Path,
		Status:     constants.JobStatusAnalyzed,
		DocType:    string(res.DocType),
		SessionID:  res.SessionID,
		Chars:      len(res.Text),
		Provenance: res.Provenance,
		Summary:    excerpt(res.Analysis, summaryLen),
	})
	return nil
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
