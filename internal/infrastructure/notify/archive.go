package notify

import (
	"context"
	"fmt"
	"path"

	"github.com/kirana/posreport/internal/domain/report"
	"go.uber.org/zap"
)

// ArchiveBodyName is the object holding the rendered body
const ArchiveBodyName = "body.html"

// ObjectUploader stores bytes under a key. *storage.S3ObjectStorage satisfies it.
type ObjectUploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// ArchiveNotifier stores the body and attachments in an object store under
// <prefix>/<kind>/<period>/<run id>/
type ArchiveNotifier struct {
	store  ObjectUploader
	prefix string
	logger *zap.Logger
}

// NewArchiveNotifier creates an ArchiveNotifier
func NewArchiveNotifier(store ObjectUploader, prefix string, logger *zap.Logger) *ArchiveNotifier {
	return &ArchiveNotifier{store: store, prefix: prefix, logger: logger}
}

// Deliver uploads the body first, then each attachment
func (n *ArchiveNotifier) Deliver(ctx context.Context, msg report.Message) error {
	dir := n.Dir(msg)

	if err := n.store.Upload(ctx, path.Join(dir, ArchiveBodyName), []byte(msg.HTMLBody), "text/html; charset=utf-8"); err != nil {
		return fmt.Errorf("%w: archive: %v", report.ErrDeliveryFailed, err)
	}
	for _, att := range msg.Attachments {
		if err := n.store.Upload(ctx, path.Join(dir, att.Filename), att.Content, att.ContentType); err != nil {
			return fmt.Errorf("%w: archive: %v", report.ErrDeliveryFailed, err)
		}
	}

	n.logger.Info("Report archived",
		zap.String("location", dir),
		zap.Int("objects", len(msg.Attachments)+1),
	)
	return nil
}

// Dir returns the key prefix used for msg
func (n *ArchiveNotifier) Dir(msg report.Message) string {
	kind := string(msg.Period.Kind)
	if kind == "" {
		kind = "unknown"
	}
	label := msg.Period.FileLabel()
	if label == "" {
		label = "unlabelled"
	}
	return path.Join(n.prefix, kind, label, msg.RunID)
}
