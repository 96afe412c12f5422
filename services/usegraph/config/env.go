// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvCacheDir     = "USEGRAPH_CACHE_DIR"
	EnvWorkerCount  = "USEGRAPH_WORKERS"
	EnvOutput       = "USEGRAPH_OUTPUT"
	EnvS3Endpoint   = "USEGRAPH_S3_ENDPOINT"
	EnvS3Region     = "USEGRAPH_S3_REGION"
	EnvS3AccessKey  = "USEGRAPH_S3_ACCESS_KEY"
	EnvS3SecretKey  = "USEGRAPH_S3_SECRET_KEY"
	EnvS3UseSSL     = "USEGRAPH_S3_USE_SSL"
	EnvGCSEndpoint  = "USEGRAPH_GCS_ENDPOINT"
	EnvOTLPEndpoint = "USEGRAPH_OTLP_ENDPOINT"
)

// LoadDotEnv loads a .env file from the working directory if present.
// Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overrides fields of c from USEGRAPH_* environment variables.
// Unparsable numbers are ignored.
func ApplyEnv(c *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvCacheDir)); v != "" {
		c.CacheDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOutput)); v != "" {
		c.Output = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWorkerCount)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.WorkerCount = n
		}
	}
}

// S3Settings are the credentials for s3:// export destinations.
type S3Settings struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3FromEnv reads S3Settings from the environment. UseSSL defaults to true.
func S3FromEnv() S3Settings {
	s := S3Settings{
		Endpoint:  strings.TrimSpace(os.Getenv(EnvS3Endpoint)),
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv(EnvS3Region)), "us-east-1"),
		AccessKey: strings.TrimSpace(os.Getenv(EnvS3AccessKey)),
		SecretKey: strings.TrimSpace(os.Getenv(EnvS3SecretKey)),
		UseSSL:    true,
	}
	if raw := strings.TrimSpace(os.Getenv(EnvS3UseSSL)); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			s.UseSSL = b
		}
	}
	return s
}

// GCSSettings configure gs:// export destinations.
type GCSSettings struct {
	// Endpoint overrides the storage API endpoint, e.g. for an emulator.
	// Authentication is disabled when set.
	Endpoint string
}

// GCSFromEnv reads GCSSettings from the environment.
func GCSFromEnv() GCSSettings {
	return GCSSettings{Endpoint: strings.TrimSpace(os.Getenv(EnvGCSEndpoint))}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
