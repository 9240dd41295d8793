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
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
)

const tempSuffix = ".tmp"

// POSIX stores files in a local directory. A file is written to a hidden temporary file
// next to its destination and renamed into place when the upload succeeds.
type POSIX struct {
	dir string
}

func NewPOSIX(dir string) *POSIX {
	return &POSIX{dir: dir}
}

func (p *POSIX) path(name string) string {
	return filepath.Join(p.dir, filepath.FromSlash(name))
}

func (p *POSIX) Open(name string) (io.ReadCloser, error) {
	file, err := os.Open(p.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.NewNotFound(err, name)
	}
	return file, errors.Trace(err)
}

func (p *POSIX) Create(name string) (io.WriteCloser, <-chan error, error) {
	dest := p.path(name)
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return nil, nil, errors.Trace(err)
	}
	temp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+"-*"+tempSuffix)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	w, done := upload(func(r io.Reader) error {
		_, err := io.Copy(temp, r)
		if closeErr := temp.Close(); err == nil {
			err = closeErr
		}
		if err == nil {
			if err = os.Rename(temp.Name(), dest); err != nil {
				err = failed("posix", "rename", dest, err)
			}
		}
		if err != nil {
			_ = os.Remove(temp.Name())
		}
		return errors.Trace(err)
	})
	return w, done, nil
}

func isTemp(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, tempSuffix)
}

// List walks the directory. A missing directory is an empty store.
func (p *POSIX) List() ([]string, error) {
	var names []string
	err := filepath.WalkDir(p.dir, func(file string, d fs.DirEntry, err error) error {
		switch {
		case err != nil && file == p.dir && errors.Is(err, fs.ErrNotExist):
			return filepath.SkipDir
		case err != nil:
			return err
		case d.IsDir() || isTemp(d.Name()):
			return nil
		}
		name, err := filepath.Rel(p.dir, file)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(name))
		return nil
	})
	return names, errors.Trace(err)
}

func (p *POSIX) Remove(name string) error {
	return errors.Trace(os.Remove(p.path(name)))
}
