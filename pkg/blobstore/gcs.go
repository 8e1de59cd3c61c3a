package blobstore

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"rvnl.in/fittrack/pkg/logger"
)

// GCS stores evidence photos in a Cloud Storage bucket under
// faultEvidence/.
type GCS struct {
	client *storage.Client
	bucket string
	log    *logger.Logger
}

func NewGCS(bucket string, log *logger.Logger) (*GCS, error) {
	client, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, log: log}, nil
}

func (g *GCS) Put(ctx context.Context, filename string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	name := "faultEvidence/" + timestampedName(filename)
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", wrap(err)
	}
	if err := w.Close(); err != nil {
		return "", wrap(err)
	}
	g.log.Debug("blob stored", "backend", "gcs", "ref", name)
	return name, nil
}

func (g *GCS) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	// No deadline wrapper here: the returned reader outlives this call and
	// streams against ctx directly.
	rc, err := g.client.Bucket(g.bucket).Object(ref).NewReader(ctx)
	if err != nil {
		return nil, wrap(err)
	}
	return rc, nil
}
