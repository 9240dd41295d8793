// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blob

import (
	"context"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"github.com/gorse-io/itemsim/config"
	"github.com/juju/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS stores artifacts in a Google Cloud Storage bucket. GCS_EMULATOR_ENDPOINT points the
// client to an emulator.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	keys   keys
}

func NewGCS(cfg config.GCSConfig) (*GCS, error) {
	var opts []option.ClientOption
	if endpoint := os.Getenv("GCS_EMULATOR_ENDPOINT"); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &GCS{client: client, bucket: client.Bucket(cfg.Bucket), keys: newKeys(cfg.Prefix)}, nil
}

func (g *GCS) Open(name string) (io.ReadCloser, error) {
	key := g.keys.key(name)
	r, err := g.bucket.Object(key).NewReader(context.Background())
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, errors.NewNotFound(err, name)
	} else if err != nil {
		return nil, failed("gcs", "read", key, err)
	}
	return r, nil
}

func (g *GCS) Create(name string) (io.WriteCloser, <-chan error, error) {
	key := g.keys.key(name)
	w, done := upload(func(r io.Reader) error {
		// the object is not finalized if the context is canceled before Close
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		wc := g.bucket.Object(key).NewWriter(ctx)
		if _, err := io.Copy(wc, r); err != nil {
			cancel()
			_ = wc.Close()
			return errors.Trace(err)
		}
		if err := wc.Close(); err != nil {
			return failed("gcs", "write", key, err)
		}
		return nil
	})
	return w, done, nil
}

func (g *GCS) List() ([]string, error) {
	var names []string
	it := g.bucket.Objects(context.Background(), &storage.Query{Prefix: g.keys.dir()})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		} else if err != nil {
			return nil, failed("gcs", "list", g.keys.dir(), err)
		}
		if name, ok := g.keys.name(attrs.Name); ok {
			names = append(names, name)
		}
	}
}

func (g *GCS) Remove(name string) error {
	key := g.keys.key(name)
	if err := g.bucket.Object(key).Delete(context.Background()); err != nil {
		return failed("gcs", "delete", key, err)
	}
	return nil
}
