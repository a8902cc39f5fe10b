package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

// GCSClient stores each document as a JSON object named
// "<collection>/<id>.json" in one bucket.
type GCSClient struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

var _ DocumentClient = (*GCSClient)(nil)

// BucketName returns the bucket for cfg: cfg.Bucket when set, otherwise
// "<project>-storytree".
func BucketName(cfg types.RemoteConfig) string {
	if cfg.Bucket != "" {
		return cfg.Bucket
	}
	return cfg.ProjectID + "-storytree"
}

// DialGCS creates a storage client. cfg.Credential is a service account key
// file path when such a file exists, otherwise an API key.
func DialGCS(ctx context.Context, cfg types.RemoteConfig, logger *slog.Logger) (DocumentClient, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var opt option.ClientOption
	if _, err := os.Stat(cfg.Credential); err == nil {
		opt = option.WithCredentialsFile(cfg.Credential)
	} else {
		opt = option.WithAPIKey(cfg.Credential)
	}

	client, err := storage.NewClient(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("create GCS storage client: %w", err)
	}

	name := BucketName(cfg)
	logger.Info("connected to remote document store", "provider", types.ProviderGCS, "bucket", name)
	return &GCSClient{client: client, bucket: client.Bucket(name), name: name}, nil
}

func objectName(collection, id string) string {
	return path.Join(collection, id+".json")
}

// Get reads one object.
func (c *GCSClient) Get(ctx context.Context, collection, id string) ([]byte, bool, error) {
	r, err := c.bucket.Object(objectName(collection, id)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open gs://%s/%s: %w", c.name, objectName(collection, id), err)
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("read gs://%s/%s: %w", c.name, objectName(collection, id), err)
	}
	return body, true, nil
}

// Put writes one object, replacing any previous generation.
func (c *GCSClient) Put(ctx context.Context, collection, id string, body []byte) error {
	w := c.bucket.Object(objectName(collection, id)).NewWriter(ctx)
	w.ContentType = "application/json"
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := w.Write(body); err != nil {
		w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", c.name, objectName(collection, id), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for gs://%s/%s: %w", c.name, objectName(collection, id), err)
	}
	return nil
}

// Delete removes one object.
func (c *GCSClient) Delete(ctx context.Context, collection, id string) error {
	err := c.bucket.Object(objectName(collection, id)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete gs://%s/%s: %w", c.name, objectName(collection, id), err)
	}
	return nil
}

// List reads every object under the collection prefix.
func (c *GCSClient) List(ctx context.Context, collection string) ([][]byte, error) {
	it := c.bucket.Objects(ctx, &storage.Query{Prefix: collection + "/"})

	var bodies [][]byte
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", c.name, collection, err)
		}
		if !strings.HasSuffix(attrs.Name, ".json") {
			continue
		}
		id := strings.TrimSuffix(path.Base(attrs.Name), ".json")
		body, ok, err := c.Get(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		if ok {
			bodies = append(bodies, body)
		}
	}
	return bodies, nil
}

// Close closes the storage client.
func (c *GCSClient) Close() error {
	return c.client.Close()
}
