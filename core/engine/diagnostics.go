package engine

import (
	"context"
	"os"
	"time"

	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/core/recombine"
	"github.com/FocuswithJustin/hwpxkit/internal/archive"
	"github.com/FocuswithJustin/hwpxkit/internal/logging"
)

// diagnose writes a diagnostics bundle for run id when bundles are enabled
// and there is something to report: the raw bytes of every section that
// failed to parse in src, plus the error text of cause.
func (e *Engine) diagnose(ctx context.Context, id, source string, src *recombine.Source, cause error) {
	if !e.cfg.Build.KeepDiagnostics {
		return
	}
	var entries []archive.Entry
	var reason string
	if src != nil {
		for _, w := range src.Warnings {
			var spe *errors.SectionParseError
			if !errors.As(w, &spe) {
				continue
			}
			data, err := os.ReadFile(src.Tree.Path(spe.Section))
			if err != nil {
				continue
			}
			entries = append(entries, archive.Entry{Name: spe.Section, Data: data})
			if reason == "" {
				reason = "section parse failed"
			}
		}
	}
	if cause != nil {
		entries = append(entries, archive.Entry{Name: "error.txt", Data: []byte(cause.Error() + "\n")})
		reason = cause.Error()
	}
	if len(entries) == 0 {
		return
	}

	codec, _ := archive.ParseCompression(e.cfg.Build.BundleCompression)
	path, err := archive.WriteBundle(e.cfg.Build.DiagnosticsDir, codec, archive.Manifest{
		BuildID:   id,
		Source:    source,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}, entries)
	if err != nil {
		logging.WarnContext(ctx, "diagnostics bundle not written", "error", err.Error())
		return
	}
	logging.InfoContext(ctx, "diagnostics bundle written", "path", path)
}

// Bundles lists the diagnostics bundles, newest first.
func (e *Engine) Bundles() ([]archive.BundleInfo, error) {
	return archive.ListBundles(e.cfg.Build.DiagnosticsDir)
}
