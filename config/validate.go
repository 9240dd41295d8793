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

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration before any input is read. Every problem is reported
// as a NotValid error so that callers can fail fast.
func (config *Config) Validate() error {
	if err := validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			messages := make([]string, 0, len(validationErrors))
			for _, e := range validationErrors {
				messages = append(messages, describe(e))
			}
			return errors.NotValidf("config (%s)", strings.Join(messages, "; "))
		}
		return errors.NewNotValid(err, "config")
	}
	if config.Tracing.EnableTracing && config.Tracing.CollectorEndpoint == "" {
		return errors.NotValidf("tracing.collector_endpoint must not be empty when tracing is enabled")
	}
	switch config.Storage.Type {
	case StoragePOSIX:
		if config.Storage.Dir == "" {
			return errors.NotValidf("storage.dir must not be empty for posix storage")
		}
	case StorageS3:
		if config.Storage.S3.Endpoint == "" || config.Storage.S3.Bucket == "" {
			return errors.NotValidf("storage.s3 requires endpoint and bucket")
		}
	case StorageGCS:
		if config.Storage.GCS.Bucket == "" {
			return errors.NotValidf("storage.gcs requires bucket")
		}
	case StorageAzure:
		if config.Storage.Azure.Container == "" {
			return errors.NotValidf("storage.azure requires container")
		}
	}
	return nil
}

func describe(e validator.FieldError) string {
	name := strings.TrimPrefix(e.Namespace(), "Config.")
	switch e.Tag() {
	case "gt":
		return name + " must be positive"
	case "oneof":
		return name + " must be one of [" + e.Param() + "]"
	case "required":
		return name + " must not be empty"
	default:
		return name + " is invalid"
	}
}
