package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/yorozuya-cybersecurity/nessusview/internal/diff"
	"github.com/yorozuya-cybersecurity/nessusview/internal/scanners"
	"github.com/yorozuya-cybersecurity/nessusview/internal/schema"
)

var errNoFiles = errors.New("no scan file could be loaded")

// loadFiles parses every path. Files that fail are logged and skipped; it is
// an error only when none loads.
func loadFiles(paths []string) ([]*schema.ScanFile, error) {
	log := logger.With(zap.String("component", "loader"))
	files, errs := scanners.LoadFiles(paths)
	for _, err := range errs {
		var pe *scanners.ParseError
		if errors.As(err, &pe) {
			log.Warn("skipping malformed scan file", zap.String("file", pe.Path), zap.Error(pe.Err))
			continue
		}
		log.Warn("skipping unreadable scan file", zap.Error(err))
	}
	if len(files) == 0 {
		return nil, errNoFiles
	}
	for _, f := range files {
		log.Debug("loaded scan file", zap.String("file", f.Source), zap.Int("reports", len(f.Reports)))
	}
	return files, nil
}

// warnConflicts logs every plugin reported with more than one severity in view.
func warnConflicts(view schema.ReportView) {
	for _, c := range view.FindingsBySeverity().Conflicts {
		logger.Warn("inconsistent severity, keeping the first one seen",
			zap.String("report", view.ReportName()),
			zap.Int("pid", c.PID),
			zap.Stringer("first", c.First.Severity),
			zap.String("first_host", c.First.Host.String()),
			zap.Stringer("other", c.Other.Severity),
			zap.String("other_host", c.Other.Host.String()),
		)
	}
}

func newEngine() *diff.Engine {
	return diff.New(viper.GetInt("diff.context"))
}

func parseSeverities(s string) ([]schema.Severity, error) {
	var out []schema.Severity
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		sev, err := schema.ParseSeverity(part)
		if err != nil {
			return nil, fmt.Errorf("--severity: %w", err)
		}
		out = append(out, sev)
	}
	return out, nil
}
