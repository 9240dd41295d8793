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
	"path"
	"slices"
	"strings"

	"github.com/gorse-io/itemsim/common/log"
	"github.com/gorse-io/itemsim/config"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Store keeps the artifacts of the pipeline. Names are slash separated and relative to
// the root of the store.
type Store interface {
	// Open a file for reading.
	Open(name string) (io.ReadCloser, error)
	// Create a file for writing. The file becomes visible once the writer is closed, and
	// the result of the upload is sent to the returned channel. Closing the writer with
	// an error discards the upload.
	Create(name string) (io.WriteCloser, <-chan error, error)
	// List all files in the store.
	List() ([]string, error)
	Remove(name string) error
}

// NewStore creates the store selected by the storage configuration.
func NewStore(cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case config.StoragePOSIX:
		return NewPOSIX(cfg.Dir), nil
	case config.StorageS3:
		store, err := NewS3(cfg.S3)
		return store, errors.Trace(err)
	case config.StorageGCS:
		store, err := NewGCS(cfg.GCS)
		return store, errors.Trace(err)
	case config.StorageAzure:
		store, err := NewAzureBlob(cfg.Azure)
		return store, errors.Trace(err)
	default:
		return nil, errors.NotSupportedf("storage type %q", cfg.Type)
	}
}

// WriteFile creates name and fills it with fn. The upload is discarded if fn fails or
// the context is canceled.
func WriteFile(ctx context.Context, store Store, name string, fn func(w io.Writer) error) error {
	w, done, err := store.Create(name)
	if err != nil {
		return errors.Trace(err)
	}
	err = fn(w)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		abort(w, err)
		<-done
		return errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		<-done
		return errors.Trace(err)
	}
	return errors.Trace(<-done)
}

// ReadFile opens name and passes its content to fn.
func ReadFile(store Store, name string, fn func(r io.Reader) error) error {
	r, err := store.Open(name)
	if err != nil {
		return errors.Trace(err)
	}
	defer r.Close()
	return errors.Trace(fn(r))
}

// ListDir returns the names of files directly under dir, sorted.
func ListDir(store Store, dir string) ([]string, error) {
	names, err := store.List()
	if err != nil {
		return nil, errors.Trace(err)
	}
	prefix := strings.TrimSuffix(dir, "/") + "/"
	if dir == "" || dir == "." {
		prefix = ""
	}
	var files []string
	for _, name := range names {
		if rest, ok := strings.CutPrefix(name, prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			files = append(files, rest)
		}
	}
	slices.Sort(files)
	return files, nil
}

type closeWithError interface {
	CloseWithError(err error) error
}

func abort(w io.WriteCloser, err error) {
	if c, ok := w.(closeWithError); ok {
		_ = c.CloseWithError(err)
	} else {
		_ = w.Close()
	}
}

// upload runs copy in the background with the read end of a pipe and reports its result.
func upload(copy func(r io.Reader) error) (io.WriteCloser, <-chan error) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := copy(pr)
		_ = pr.CloseWithError(err)
		done <- err
		close(done)
	}()
	return pw, done
}

// keys maps store names to object keys below an optional prefix.
type keys string

func newKeys(prefix string) keys {
	return keys(strings.Trim(prefix, "/"))
}

func (k keys) key(name string) string {
	return path.Join(string(k), name)
}

// dir is the listing prefix of the keyspace.
func (k keys) dir() string {
	if k == "" {
		return ""
	}
	return string(k) + "/"
}

// name maps an object key back to a store name.
func (k keys) name(key string) (string, bool) {
	name, ok := strings.CutPrefix(key, k.dir())
	return name, ok && name != ""
}

// failed logs a failed remote operation and annotates err with it.
func failed(backend, op, key string, err error) error {
	log.Logger().Error("blob operation failed",
		zap.String("backend", backend),
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err))
	return errors.Annotatef(err, "%s %s %s", backend, op, key)
}
