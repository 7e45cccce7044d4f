package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kirana/posreport/internal/domain/report"
	"go.uber.org/zap"
)

// LogNotifier logs what would have been delivered. With an output directory
// it also writes the body and attachments there for inspection.
type LogNotifier struct {
	logger    *zap.Logger
	outputDir string
}

// NewLogNotifier creates a LogNotifier; outputDir may be empty
func NewLogNotifier(logger *zap.Logger, outputDir string) *LogNotifier {
	return &LogNotifier{logger: logger, outputDir: outputDir}
}

// Deliver logs msg and optionally writes it to disk
func (n *LogNotifier) Deliver(_ context.Context, msg report.Message) error {
	fields := []zap.Field{
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.HTMLBody)),
	}
	for _, att := range msg.Attachments {
		fields = append(fields, zap.Int("attachment."+att.Filename, len(att.Content)))
	}
	n.logger.Info("Dry run, report not sent", fields...)

	if n.outputDir == "" {
		return nil
	}
	if err := os.MkdirAll(n.outputDir, 0o755); err != nil {
		return fmt.Errorf("%w: dry run output: %v", report.ErrDeliveryFailed, err)
	}

	files := map[string][]byte{"Report_" + msg.Period.FileLabel() + ".html": []byte(msg.HTMLBody)}
	for _, att := range msg.Attachments {
		files[att.Filename] = att.Content
	}
	for name, data := range files {
		target := filepath.Join(n.outputDir, filepath.Base(name))
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return fmt.Errorf("%w: dry run output: %v", report.ErrDeliveryFailed, err)
		}
		n.logger.Debug("Dry run file written", zap.String("path", target))
	}
	return nil
}
