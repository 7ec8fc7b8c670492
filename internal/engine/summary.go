package engine

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// Failure records one non-fatal per-entry error.
type Failure struct {
	// RelPath is the entry's path relative to the source root.
	RelPath string

	// Reason is the human-readable cause.
	Reason string
}

// Summary aggregates the outcome of one backup run. It is owned by a single
// collector goroutine while the run is in flight and read-only afterwards.
type Summary struct {
	// Source is the absolute source root.
	Source string

	// Destination is the timestamped destination root.
	Destination string

	// ArchivePath is set when the run compressed the destination tree.
	ArchivePath string

	// Copied counts files written to the destination (or simulated in
	// dry-run mode).
	Copied int

	// SkippedExcluded counts entries dropped by exclusion rules. A pruned
	// directory counts once for its whole subtree.
	SkippedExcluded int

	// SkippedUnchanged counts entries the incremental diff left alone.
	SkippedUnchanged int

	// Failed counts per-entry errors; details are in Failures.
	Failed int

	// Verified and VerifyFailed split copied files by digest comparison.
	Verified     int
	VerifyFailed int

	// Bytes is the total payload copied.
	Bytes int64

	// Failures lists every per-entry error, in collection order.
	Failures []Failure

	// Duration is the wall-clock time of the run.
	Duration time.Duration

	// DryRun records whether the run mutated the destination.
	DryRun bool
}

// OK reports whether the run completed without per-entry failures or
// verification mismatches.
func (s *Summary) OK() bool {
	return s.Failed == 0 && s.VerifyFailed == 0
}

// Print writes a human-readable run report. Colors engage only when w
// supports them.
func (s *Summary) Print(w io.Writer) {
	green := color.New(color.FgGreen).FprintfFunc()
	yellow := color.New(color.FgYellow).FprintfFunc()
	red := color.New(color.FgRed).FprintfFunc()

	header := "✓"
	headerColor := green
	if !s.OK() {
		header = "✗"
		headerColor = red
	}

	suffix := ""
	if s.DryRun {
		suffix = " (dry run)"
	}
	headerColor(w, "%s %s -> %s%s\n", header, s.Source, s.Destination, suffix)

	fmt.Fprintf(w, "  copied %d files (%s), excluded %d, unchanged %d, failed %d in %s\n",
		s.Copied, humanBytes(s.Bytes), s.SkippedExcluded, s.SkippedUnchanged,
		s.Failed, s.Duration.Round(time.Millisecond))

	if s.Verified > 0 || s.VerifyFailed > 0 {
		fmt.Fprintf(w, "  verified %d, mismatched %d\n", s.Verified, s.VerifyFailed)
	}
	if s.ArchivePath != "" {
		fmt.Fprintf(w, "  archived to %s\n", s.ArchivePath)
	}

	for _, f := range s.Failures {
		yellow(w, "  ! %s: %s\n", f.RelPath, f.Reason)
	}
}

// humanBytes renders a byte count with a binary unit.
func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
