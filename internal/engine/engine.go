// Package engine orchestrates the backup pipeline: permission preflight,
// pruned traversal, incremental diffing, parallel copy, verification and
// archiving.
//
// Exclusion rules and the incremental baseline are read-only shared state
// during the copy phase. The only mutable shared state is the run summary,
// which a single collector goroutine owns; workers communicate outcomes over
// a channel, so no per-file locking is needed.
package engine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jtarrant/dirsnap/internal/archive"
	"github.com/jtarrant/dirsnap/internal/errors"
	"github.com/jtarrant/dirsnap/internal/integrity"
	"github.com/jtarrant/dirsnap/internal/logging"
	"github.com/jtarrant/dirsnap/internal/manifest"
	"github.com/jtarrant/dirsnap/internal/permissions"
	"github.com/jtarrant/dirsnap/internal/rules"
	"github.com/jtarrant/dirsnap/internal/walker"
)

// copyBufferSize bounds per-worker memory during chunked copies.
const copyBufferSize = 128 * 1024

// timestampLayout names destinations; seconds granularity keeps names
// filesystem-safe and monotonically distinguishing.
const timestampLayout = "20060102-150405"

// Options configure a backup run. Flags compose independently.
type Options struct {
	// Workers is the copy pool size; 0 means available parallelism.
	Workers int

	// Compress folds the finished destination tree into a tar.gz archive.
	Compress bool

	// Incremental copies only entries that changed since the recorded
	// baseline manifest.
	Incremental bool

	// DryRun runs the full decision pipeline without touching the
	// destination.
	DryRun bool

	// Verify compares SHA-256 digests of source and copy after each file.
	Verify bool

	// CheckPermissions probes readability of every entry before copying.
	CheckPermissions bool
}

// Runner executes backup runs with one compiled rule set.
type Runner struct {
	rules *rules.Set
	log   *slog.Logger
	opts  Options

	// now is swappable for deterministic destination names in tests.
	now func() time.Time
}

// New creates a Runner. A nil logger discards all output.
func New(set *rules.Set, logger *slog.Logger, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Runner{rules: set, log: logger, opts: opts, now: time.Now}
}

type status int

const (
	statusCopied status = iota
	statusSkippedExcluded
	statusSkippedUnchanged
	statusFailed
	// statusDir marks a directory-creation outcome; directories do not
	// participate in the file tallies.
	statusDir
)

type verifyVerdict int

const (
	verifyNone verifyVerdict = iota
	verifyOK
	verifyMismatch
)

// outcome is one entry's result, sent from a worker to the collector.
type outcome struct {
	rel     string
	status  status
	bytes   int64
	size    int64
	modTime time.Time
	digest  string
	verify  verifyVerdict
	reason  string
}

// Run backs up sourceRoot into a fresh timestamped directory under
// targetDir. The returned Summary is non-nil whenever the pipeline started;
// a non-nil error alongside it means a fatal condition ended the run.
func (r *Runner) Run(ctx context.Context, sourceRoot, targetDir string) (*Summary, error) {
	start := r.now()

	absSource, err := filepath.Abs(sourceRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving source %s", sourceRoot)
	}

	// Preflight fails fast, before any traversal or destination mutation.
	if err := permissions.VerifySource(absSource); err != nil {
		return nil, err
	}
	if err := permissions.VerifyTarget(targetDir, !r.opts.DryRun); err != nil {
		return nil, err
	}

	destRoot := filepath.Join(targetDir, filepath.Base(absSource)+"_"+start.Format(timestampLayout))
	if _, err := os.Stat(destRoot); err == nil {
		return nil, errors.Wrapf(errors.ErrDestinationExists, "%s", destRoot)
	}
	if !r.opts.DryRun {
		if err := os.Mkdir(destRoot, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating destination root %s", destRoot)
		}
	}

	manifestPath := manifest.Path(targetDir, absSource)
	var baseline *manifest.Manifest
	if r.opts.Incremental {
		baseline, err = manifest.Load(manifestPath)
		if err != nil {
			return nil, err
		}
		// The sidecar is keyed by basename, so a different source sharing the
		// basename can land on the same file. Its baseline must not suppress
		// copies for this source.
		if baseline != nil && baseline.Source != absSource {
			r.log.Info("ignoring baseline recorded for a different source",
				"manifest", manifestPath,
				"recorded_source", baseline.Source,
			)
			baseline = nil
		}
	}
	next := manifest.New(absSource)

	var checker *permissions.Checker
	if r.opts.CheckPermissions {
		checker = permissions.NewChecker()
	}

	summary := &Summary{
		Source:      absSource,
		Destination: destRoot,
		DryRun:      r.opts.DryRun,
	}

	r.log.Info("starting backup",
		"source", absSource,
		"destination", destRoot,
		"workers", r.opts.Workers,
		"dry_run", r.opts.DryRun,
		"incremental", r.opts.Incremental,
	)

	// Single collector owns the summary and the next manifest; workers and
	// traversal callbacks only send.
	results := make(chan outcome, 256)
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for o := range results {
			r.collect(summary, next, o)
		}
	}()

	entries := make(chan walker.Entry, 256)
	walkErr := make(chan error, 1)
	go func() {
		defer close(entries)
		walkErr <- walker.Walk(absSource, r.rules, walker.Visitor{
			File: func(e walker.Entry) error {
				select {
				case entries <- e:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
			Skip: func(path string, isDir bool) {
				results <- outcome{rel: path, status: statusSkippedExcluded}
			},
			Error: func(path string, err error) {
				r.log.Warn("traversal failure", "path", path, "error", err)
				results <- outcome{rel: path, status: statusFailed, reason: err.Error()}
			},
		})
	}()

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for e := range entries {
		g.Go(func() error {
			results <- r.process(e, destRoot, baseline, checker)
			return nil
		})
	}
	gErr := g.Wait()
	wErr := <-walkErr
	close(results)
	<-collectorDone

	summary.Duration = r.now().Sub(start)

	if wErr != nil {
		return summary, errors.Wrap(wErr, "traversing source")
	}
	if gErr != nil {
		return summary, gErr
	}

	// A run is a total failure only when nothing survived: every attempted
	// entry failed and nothing was unchanged-and-skipped.
	if summary.Copied == 0 && summary.SkippedUnchanged == 0 && summary.Failed > 0 {
		return summary, errors.Wrapf(errors.ErrNothingCopied, "%d entries failed", summary.Failed)
	}

	if r.opts.Incremental && !r.opts.DryRun {
		if err := next.Save(manifestPath); err != nil {
			return summary, err
		}
	}

	if r.opts.Compress && !r.opts.DryRun {
		archivePath := destRoot + ".tar.gz"
		if err := archive.Create(destRoot, archivePath); err != nil {
			// The uncompressed backup stays valid; only the archive step failed.
			return summary, err
		}
		summary.ArchivePath = archivePath
		if err := os.RemoveAll(destRoot); err != nil {
			r.log.Warn("could not remove uncompressed tree after archiving",
				"path", destRoot, "error", err)
		}
	}

	r.log.Info("backup finished",
		"copied", summary.Copied,
		"skipped_excluded", summary.SkippedExcluded,
		"skipped_unchanged", summary.SkippedUnchanged,
		"failed", summary.Failed,
		"duration", summary.Duration,
	)

	return summary, nil
}

// collect merges one outcome into the summary and the next manifest.
// Runs on the collector goroutine only.
func (r *Runner) collect(s *Summary, next *manifest.Manifest, o outcome) {
	switch o.status {
	case statusCopied:
		s.Copied++
		s.Bytes += o.bytes
		next.Record(o.rel, o.size, o.modTime)
		if o.digest != "" {
			next.SetDigest(o.rel, o.digest)
		}
	case statusSkippedExcluded:
		s.SkippedExcluded++
	case statusSkippedUnchanged:
		s.SkippedUnchanged++
		next.Record(o.rel, o.size, o.modTime)
	case statusFailed:
		s.Failed++
		s.Failures = append(s.Failures, Failure{RelPath: o.rel, Reason: o.reason})
	}

	switch o.verify {
	case verifyOK:
		s.Verified++
	case verifyMismatch:
		s.VerifyFailed++
	}
}

// process handles one traversal entry on a worker goroutine.
func (r *Runner) process(e walker.Entry, destRoot string, baseline *manifest.Manifest, checker *permissions.Checker) outcome {
	if e.IsDir {
		if r.opts.DryRun {
			return outcome{rel: e.RelPath, status: statusDir}
		}
		// Idempotent under concurrent creation attempts.
		if err := os.MkdirAll(filepath.Join(destRoot, e.RelPath), 0o755); err != nil {
			return outcome{rel: e.RelPath, status: statusFailed, reason: err.Error()}
		}
		return outcome{rel: e.RelPath, status: statusDir}
	}

	if checker != nil {
		if err := checker.CheckRead(e.AbsPath); err != nil {
			return outcome{rel: e.RelPath, status: statusFailed, reason: err.Error()}
		}
	}

	if r.opts.Incremental && baseline.Decide(e.RelPath, e.Size, e.ModTime) == manifest.Skip {
		return outcome{rel: e.RelPath, status: statusSkippedUnchanged, size: e.Size, modTime: e.ModTime}
	}

	o := outcome{rel: e.RelPath, status: statusCopied, size: e.Size, modTime: e.ModTime}

	if r.opts.DryRun {
		r.log.Debug("would copy", "path", e.RelPath, "bytes", e.Size)
		o.bytes = e.Size
		if r.opts.Verify {
			// Exercise the digest path against the source even without a copy,
			// recording an unreadable source just like the real branch does.
			digest, herr := integrity.HashFile(e.AbsPath)
			if herr != nil {
				o.verify = verifyMismatch
				r.log.Warn("verification unreadable", "path", e.RelPath, "error", herr)
			} else {
				o.digest = digest
				o.verify = verifyOK
			}
		}
		return o
	}

	destPath := filepath.Join(destRoot, e.RelPath)
	n, err := copyFile(e.AbsPath, destPath, e.Mode)
	if err != nil {
		return outcome{rel: e.RelPath, status: statusFailed, reason: err.Error()}
	}
	o.bytes = n
	r.log.Debug("copied", "path", e.RelPath, "bytes", n)

	// Preserve the source mtime so the next incremental diff sees this
	// entry as unchanged.
	if err := os.Chtimes(destPath, time.Now(), e.ModTime); err != nil {
		r.log.Warn("could not preserve mtime", "path", e.RelPath, "error", err)
	}

	if r.opts.Verify {
		rec, verr := integrity.VerifyPair(e.RelPath, e.AbsPath, destPath)
		switch {
		case verr != nil:
			o.verify = verifyMismatch
			r.log.Warn("verification unreadable", "path", e.RelPath, "error", verr)
		case rec.Match:
			o.verify = verifyOK
			o.digest = rec.SourceDigest
		default:
			o.verify = verifyMismatch
			r.log.Warn("digest mismatch",
				"path", e.RelPath,
				"source", rec.SourceDigest,
				"copy", rec.DestDigest,
			)
		}
	}

	return o
}

// copyFile streams src to dst in fixed-size chunks, creating parent
// directories as needed, and applies the source permission bits. Returns the
// number of bytes copied.
func copyFile(src, dst string, mode os.FileMode) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, errors.Wrap(err, "creating parent directory")
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, errors.Wrap(err, "opening source")
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, errors.Wrap(err, "creating destination")
	}

	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(out, in, buf)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return 0, errors.Wrap(err, "copying data")
	}

	if err := out.Chmod(mode); err != nil {
		out.Close()
		return n, errors.Wrap(err, "setting permissions")
	}
	if err := out.Close(); err != nil {
		return n, errors.Wrap(err, "closing destination")
	}

	return n, nil
}
