// Package pipeline orchestrates the batch run of one document family:
// discover published datasets, download, extract, parse into per-table
// parquet artifacts, optionally load into a relational sink.
//
// Design goals:
//
//   - Deterministic enumeration: candidates are always ordered by embedded
//     date ascending, so progress and resumption are reproducible.
//   - Idempotent skip: a document whose target artifact exists is not
//     reprocessed; the artifact's presence is the only signal.
//   - Fail-fast: the first error cancels queued and not-yet-started work and
//     aborts the run. Completed documents keep their artifacts.
//   - Workers share no mutable state; each writes only files keyed by its
//     own document, so output needs no locking.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opendatalabcz/emissions-etl/internal/catalog"
	"github.com/opendatalabcz/emissions-etl/internal/dataset"
	"github.com/opendatalabcz/emissions-etl/internal/extract"
	"github.com/opendatalabcz/emissions-etl/internal/flatten"
	"github.com/opendatalabcz/emissions-etl/internal/metrics"
	"github.com/opendatalabcz/emissions-etl/internal/parser"
	"github.com/opendatalabcz/emissions-etl/internal/progress"
	"github.com/opendatalabcz/emissions-etl/internal/record"
	"github.com/opendatalabcz/emissions-etl/internal/storage"
	"github.com/opendatalabcz/emissions-etl/internal/tabular"
)

// ErrNoInput signals an empty candidate set on a run that required input.
var ErrNoInput = errors.New("pipeline: no input documents")

// State is the orchestrator's lifecycle phase.
type State string

const (
	StateIdle        State = "idle"
	StateDiscovering State = "discovering"
	StateDispatching State = "dispatching"
	StateRunning     State = "running"
	StateCompleted   State = "completed"
	StateAborted     State = "aborted"
)

// Options are the caller-supplied run knobs. Zero worker counts resolve to
// the stage defaults: download and extraction are I/O-bound, parsing is
// CPU/memory-bound and runs narrower.
type Options struct {
	DownloadWorkers int // default 30
	ExtractWorkers  int // default 30
	ParseWorkers    int // default 8

	// DeleteGz removes a .gz after its successful extraction; DeleteXML
	// removes a .xml after all its artifacts are written. Deletion policy is
	// independent of the idempotency contract.
	DeleteGz  bool
	DeleteXML bool

	// RequireInput makes an empty candidate enumeration an ErrNoInput
	// instead of a no-op success.
	RequireInput bool

	// Since/Until bound dataset discovery by embedded date. A zero Until
	// means no upper bound.
	Since time.Time
	Until time.Time
}

func (o Options) downloadWorkers() int { return defaultWorkers(o.DownloadWorkers, 30) }
func (o Options) extractWorkers() int  { return defaultWorkers(o.ExtractWorkers, 30) }
func (o Options) parseWorkers() int    { return defaultWorkers(o.ParseWorkers, 8) }

func defaultWorkers(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// Cataloger discovers the published datasets of a series.
type Cataloger interface {
	Datasets(ctx context.Context, seriesIRI string) ([]catalog.Dataset, error)
}

// Downloader fetches one dataset distribution to a local path.
type Downloader interface {
	Download(ctx context.Context, ds catalog.Dataset, dest string) (skipped bool, err error)
}

// Pipeline runs the batch for one document family.
type Pipeline struct {
	family parser.Family
	series string
	layout dataset.Layout

	cat    Cataloger
	dl     Downloader
	writer *tabular.Writer
	sink   storage.Sink // optional
	prog   *progress.Reporter
	opts   Options

	// test seams
	parseFn   func(path string, family parser.Family) (map[string]*record.Batch, error)
	extractFn func(ctx context.Context, src, dst string) (bool, error)

	mu        sync.Mutex
	state     State
	tableRows map[string]int64
}

// New builds a Pipeline. cat and dl may be nil when only the extract/parse
// stages will run; sink and prog are optional.
func New(family parser.Family, series string, layout dataset.Layout, cat Cataloger, dl Downloader, writer *tabular.Writer, sink storage.Sink, prog *progress.Reporter, opts Options) *Pipeline {
	return &Pipeline{
		family:    family,
		series:    series,
		layout:    layout,
		cat:       cat,
		dl:        dl,
		writer:    writer,
		sink:      sink,
		prog:      prog,
		opts:      opts,
		parseFn:   parser.ParseFile,
		extractFn: extract.File,
		state:     StateIdle,
		tableRows: make(map[string]int64),
	}
}

// State returns the orchestrator's current phase.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// finish translates the run outcome into the terminal state.
func (p *Pipeline) finish(err error) error {
	if err != nil {
		p.setState(StateAborted)
		return err
	}
	p.setState(StateCompleted)
	return nil
}

// Run executes discover, download, extract, and parse in order.
func (p *Pipeline) Run(ctx context.Context) error {
	datasets, err := p.Discover(ctx)
	if err != nil {
		return p.finish(err)
	}
	if err := p.Download(ctx, datasets); err != nil {
		return p.finish(err)
	}
	if err := p.Extract(ctx); err != nil {
		return p.finish(err)
	}
	return p.Parse(ctx)
}

// Discover lists the series' datasets not yet represented by any stage's
// file for their date, bounded to [Since, Until], date-ascending.
func (p *Pipeline) Discover(ctx context.Context) ([]catalog.Dataset, error) {
	p.setState(StateDiscovering)
	if p.cat == nil {
		return nil, fmt.Errorf("pipeline: no catalog configured")
	}
	p.prog.Bannerf("discovering %s datasets...", p.family)
	all, err := p.cat.Datasets(ctx, p.series)
	if err != nil {
		return nil, fmt.Errorf("pipeline: discover: %w", err)
	}
	done := dataset.ProcessedDates(
		p.layout.GzDir(),
		p.layout.XMLDir(),
		p.layout.TableDir(p.family.Primary()),
	)
	candidates := catalog.Filter(all, p.opts.Since, p.opts.Until, done)
	p.prog.Bannerf("discovered %d dataset(s), %d to fetch", len(all), len(candidates))
	return candidates, nil
}

// Download fetches every dataset into the gz stage directory.
func (p *Pipeline) Download(ctx context.Context, datasets []catalog.Dataset) error {
	if len(datasets) == 0 {
		return nil
	}
	if p.dl == nil {
		return fmt.Errorf("pipeline: no downloader configured")
	}
	if err := p.layout.EnsureStageDirs(); err != nil {
		return err
	}
	p.setState(StateDispatching)
	p.prog.Bannerf("downloading %d dataset(s) with %d worker(s)", len(datasets), p.opts.downloadWorkers())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.downloadWorkers())
	p.setState(StateRunning)
	for _, ds := range datasets {
		ds := ds
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dest := filepath.Join(p.layout.GzDir(), ds.Name+".xml.gz")
			start := time.Now()
			skipped, err := p.dl.Download(ctx, ds, dest)
			metrics.RecordStage("download", err, time.Since(start))
			switch {
			case err != nil:
				metrics.RecordDocuments("download", "failed", 1)
				return err
			case skipped:
				metrics.RecordDocuments("download", "skipped", 1)
				p.prog.Skip(ds.Name)
			default:
				metrics.RecordDocuments("download", "processed", 1)
				if fi, err := os.Stat(dest); err == nil {
					metrics.RecordBytes("downloaded", fi.Size())
				}
				p.prog.Mark(ds.Name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return p.finish(err)
	}
	p.prog.Bannerf("\nDOWNLOAD FINISHED")
	return nil
}

// Extract decompresses every staged .gz into the xml directory.
func (p *Pipeline) Extract(ctx context.Context) error {
	if err := p.layout.EnsureStageDirs(); err != nil {
		return err
	}
	files, err := dataset.ListByDate(p.layout.GzDir(), ".gz")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	p.prog.Bannerf("extracting %d file(s) with %d worker(s)", len(files), p.opts.extractWorkers())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.extractWorkers())
	p.setState(StateRunning)
	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dst := filepath.Join(p.layout.XMLDir(), f.Stem)
			start := time.Now()
			skipped, err := p.extractFn(ctx, f.Path, dst)
			metrics.RecordStage("extract", err, time.Since(start))
			if err != nil {
				metrics.RecordDocuments("extract", "failed", 1)
				return fmt.Errorf("extract %q: %w", f.Name, err)
			}
			if skipped {
				metrics.RecordDocuments("extract", "skipped", 1)
				p.prog.Skip(f.Stem)
			} else {
				metrics.RecordDocuments("extract", "processed", 1)
				p.prog.Mark(f.Stem)
			}
			if p.opts.DeleteGz {
				if err := os.Remove(f.Path); err != nil {
					return fmt.Errorf("delete %q: %w", f.Path, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return p.finish(err)
	}
	p.prog.Bannerf("\nEXTRACTION FINISHED")
	return nil
}

// Parse converts every staged .xml document into per-table artifacts.
// Documents whose primary-table artifact exists are skipped; remaining ones
// are dispatched to a bounded worker pool. The first error cancels the pool
// and aborts the run.
func (p *Pipeline) Parse(ctx context.Context) error {
	p.setState(StateDiscovering)
	files, err := dataset.ListByDate(p.layout.XMLDir(), ".xml")
	if err != nil {
		return p.finish(err)
	}
	if len(files) == 0 {
		if p.opts.RequireInput {
			return p.finish(fmt.Errorf("%w: no .xml documents in %q", ErrNoInput, p.layout.XMLDir()))
		}
		return p.finish(nil)
	}
	if err := p.writer.EnsureDirs(p.family.Tables()...); err != nil {
		return p.finish(err)
	}

	primary := p.family.Primary()
	pending := files[:0:0]
	for _, f := range files {
		if p.writer.Exists(primary, f.Stem) {
			metrics.RecordDocuments("parse", "skipped", 1)
			p.prog.Skip(f.Stem)
			continue
		}
		pending = append(pending, f)
	}
	p.setState(StateDispatching)
	p.prog.Bannerf("parsing %d of %d document(s) with %d worker(s)", len(pending), len(files), p.opts.parseWorkers())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.parseWorkers())
	p.setState(StateRunning)
	for _, f := range pending {
		f := f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := p.parseOne(ctx, f); err != nil {
				metrics.RecordDocuments("parse", "failed", 1)
				return err
			}
			metrics.RecordDocuments("parse", "processed", 1)
			p.prog.Mark(f.Stem)
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		p.prog.Bannerf("\nPARSING FINISHED")
		for _, table := range p.family.Tables() {
			p.prog.Bannerf("  %s: %d record(s)", table, p.rowTotal(table))
		}
	}
	return p.finish(err)
}

// rowTotal returns the records written so far for table.
func (p *Pipeline) rowTotal(table string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tableRows[table]
}

func (p *Pipeline) addRows(table string, n int64) {
	p.mu.Lock()
	p.tableRows[table] += n
	p.mu.Unlock()
}

// parseOne processes a single document: parse, write every table's artifact,
// optionally load the batches into the sink, optionally delete the source.
func (p *Pipeline) parseOne(ctx context.Context, f dataset.File) error {
	start := time.Now()
	batches, err := p.parseFn(f.Path, p.family)
	metrics.RecordStage("parse", err, time.Since(start))
	if err != nil {
		return err
	}

	// The primary artifact is the sole idempotency signal, so it is written
	// last: a run interrupted mid-document can never leave the document
	// skipped with child tables missing.
	for _, table := range writeOrder(p.family.Tables()) {
		res, err := p.writer.Write(table, f.Stem, batches[table])
		if err != nil {
			return err
		}
		if res.Rows > 0 {
			p.addRows(table, int64(res.Rows))
			metrics.RecordRows(table, int64(res.Rows))
			metrics.RecordBytes("written", res.Bytes)
			p.prog.Tracef("wrote %s/%s.parquet rows=%d bytes=%d checksum=%016x",
				table, f.Stem, res.Rows, res.Bytes, res.Checksum)
		}
	}

	if p.sink != nil {
		if err := p.load(ctx, batches); err != nil {
			return fmt.Errorf("load %q: %w", f.Stem, err)
		}
	}

	if p.opts.DeleteXML {
		if err := os.Remove(f.Path); err != nil {
			return fmt.Errorf("delete %q: %w", f.Path, err)
		}
	}
	return nil
}

// writeOrder moves the primary table from the head of tables to the tail.
func writeOrder(tables []string) []string {
	if len(tables) < 2 {
		return tables
	}
	ordered := make([]string, 0, len(tables))
	ordered = append(ordered, tables[1:]...)
	return append(ordered, tables[0])
}

// load pushes the document's batches into the relational sink.
func (p *Pipeline) load(ctx context.Context, batches map[string]*record.Batch) error {
	for _, table := range p.family.Tables() {
		b := batches[table]
		if b == nil || b.Empty() {
			continue
		}
		columns := flatten.Columns(table)
		rows := make([][]any, 0, b.Len())
		for _, r := range b.Records {
			rows = append(rows, r.Row(columns))
		}
		n, err := p.sink.Load(ctx, table, columns, rows)
		if err != nil {
			return err
		}
		log.Printf("pipeline: loaded table=%s rows=%d", table, n)
	}
	return nil
}

// EnsureSinkTables creates the family's tables in the sink.
func (p *Pipeline) EnsureSinkTables(ctx context.Context) error {
	if p.sink == nil {
		return nil
	}
	for _, table := range p.family.Tables() {
		if err := p.sink.EnsureTable(ctx, table, flatten.Columns(table)); err != nil {
			return err
		}
	}
	return nil
}
