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

	"github.com/gorse-io/itemsim/config"
	"github.com/juju/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3 stores artifacts in an S3 compatible bucket.
type S3 struct {
	client *minio.Client
	bucket string
	keys   keys
}

func NewS3(cfg config.S3Config) (*S3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &S3{client: client, bucket: cfg.Bucket, keys: newKeys(cfg.Prefix)}, nil
}

func (s *S3) Open(name string) (io.ReadCloser, error) {
	key := s.keys.key(name)
	object, err := s.client.GetObject(context.Background(), s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, failed("s3", "get", key, err)
	}
	// GetObject is lazy, stat reports a missing object
	if _, err = object.Stat(); err != nil {
		_ = object.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errors.NewNotFound(err, name)
		}
		return nil, failed("s3", "stat", key, err)
	}
	return object, nil
}

func (s *S3) Create(name string) (io.WriteCloser, <-chan error, error) {
	key := s.keys.key(name)
	w, done := upload(func(r io.Reader) error {
		// size -1 streams the object as a multipart upload, which is not committed on error
		if _, err := s.client.PutObject(context.Background(), s.bucket, key, r, -1, minio.PutObjectOptions{}); err != nil {
			return failed("s3", "put", key, err)
		}
		return nil
	})
	return w, done, nil
}

func (s *S3) List() ([]string, error) {
	var names []string
	for object := range s.client.ListObjects(context.Background(), s.bucket, minio.ListObjectsOptions{
		Prefix:    s.keys.dir(),
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, failed("s3", "list", s.keys.dir(), object.Err)
		}
		if name, ok := s.keys.name(object.Key); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *S3) Remove(name string) error {
	key := s.keys.key(name)
	if err := s.client.RemoveObject(context.Background(), s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return failed("s3", "remove", key, err)
	}
	return nil
}
