// Package blobstore stores fault-evidence photos and hands back opaque
// references. Large binaries never land on the material document, only
// these references do. GCS backs production; a local directory backs
// development, mirroring how the service is deployed on Cloud Run vs. a
// laptop.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"rvnl.in/fittrack/pkg/apperrors"
	"rvnl.in/fittrack/pkg/logger"
)

const serviceName = "blob store"

// opTimeout bounds one Put or Get round trip against GCS.
const opTimeout = 5 * time.Second

// Store persists binary evidence and returns retrievable references.
type Store interface {
	// Put stores the content under a generated name and returns its ref.
	Put(ctx context.Context, filename string, r io.Reader) (string, error)
	// Get opens the blob behind a ref.
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
}

// FromEnv picks the backend the way the deployment does: GCS when USE_GCS
// is set, credentials are present, or we are on Cloud Run; the local
// uploads directory otherwise.
func FromEnv(log *logger.Logger) (Store, error) {
	useGCS := os.Getenv("USE_GCS") == "true" ||
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" ||
		os.Getenv("K_SERVICE") != ""
	if useGCS {
		bucket := os.Getenv("GCS_BUCKET")
		if bucket == "" {
			return nil, errors.New("GCS_BUCKET is required when GCS storage is enabled")
		}
		return NewGCS(bucket, log)
	}
	return NewLocal("./uploads", log)
}

// timestampedName prefixes a filename with a sortable timestamp so
// concurrent uploads of the same filename never collide.
func timestampedName(filename string) string {
	return fmt.Sprintf("%s-%s", time.Now().Format("20060102-150405.000"), filename)
}

// wrap converts backend errors into the upstream taxonomy, tagging
// timeouts as retryable.
func wrap(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return apperrors.UpstreamTimeout(serviceName, err)
	}
	return apperrors.Upstream(serviceName, err)
}
