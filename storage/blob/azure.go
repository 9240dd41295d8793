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
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/gorse-io/itemsim/config"
	"github.com/juju/errors"
)

// AzureBlob stores artifacts in an Azure Blob Storage container.
type AzureBlob struct {
	client    *azblob.Client
	container string
	keys      keys
}

func NewAzureBlob(cfg config.AzureBlobConfig) (*AzureBlob, error) {
	client, err := newAzureClient(cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &AzureBlob{client: client, container: cfg.Container, keys: newKeys(cfg.Prefix)}, nil
}

// newAzureClient prefers a connection string over a shared key.
func newAzureClient(cfg config.AzureBlobConfig) (*azblob.Client, error) {
	if cfg.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		return client, errors.Trace(err)
	}
	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return nil, errors.NotValidf("azure blob requires account_name and account_key or connection_string")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	}
	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, errors.Trace(err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(endpoint, credential, nil)
	return client, errors.Trace(err)
}

func (a *AzureBlob) Open(name string) (io.ReadCloser, error) {
	key := a.keys.key(name)
	resp, err := a.client.DownloadStream(context.Background(), a.container, key, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return nil, errors.NewNotFound(err, name)
	} else if err != nil {
		return nil, failed("azure", "download", key, err)
	}
	return resp.Body, nil
}

func (a *AzureBlob) Create(name string) (io.WriteCloser, <-chan error, error) {
	key := a.keys.key(name)
	w, done := upload(func(r io.Reader) error {
		// staged blocks are only committed after the whole stream is read
		if _, err := a.client.UploadStream(context.Background(), a.container, key, r, nil); err != nil {
			return failed("azure", "upload", key, err)
		}
		return nil
	})
	return w, done, nil
}

func (a *AzureBlob) List() ([]string, error) {
	var (
		names []string
		opts  azblob.ListBlobsFlatOptions
	)
	if dir := a.keys.dir(); dir != "" {
		opts.Prefix = &dir
	}
	pager := a.client.NewListBlobsFlatPager(a.container, &opts)
	for pager.More() {
		resp, err := pager.NextPage(context.Background())
		if err != nil {
			return nil, failed("azure", "list", a.keys.dir(), err)
		}
		for _, item := range resp.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			if name, ok := a.keys.name(*item.Name); ok {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

func (a *AzureBlob) Remove(name string) error {
	key := a.keys.key(name)
	if _, err := a.client.DeleteBlob(context.Background(), a.container, key, nil); err != nil {
		return failed("azure", "delete", key, err)
	}
	return nil
}
