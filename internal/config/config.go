/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

const (
	defaultSettingsFile            = "settings.yaml"
	defaultLogLevel                = "info"
	defaultMetricsAddr             = ":8080"
	defaultProbeAddr               = ":8081"
	defaultRequeueInterval         = 5 * time.Minute
	defaultMaxConcurrentReconciles = 1
	defaultFatalOnDisconnect       = true
	defaultHealthCheckInterval     = 30 * time.Second
	defaultConnectAttempts         = 5
	defaultConnectRetryDelay       = 2 * time.Second
	defaultDeleteSecretsOnCleanup  = false
	defaultCollectorInterval       = time.Minute
	defaultS3Timeout               = 30 * time.Second
	defaultVaultRole               = "console"
	defaultVaultMountPoint         = "secret"
	defaultVaultSecretPath         = "console"
	defaultVaultK8sTokenPath       = "/var/run/secrets/kubernetes.io/serviceaccount/token"

	DefaultPostgresqlPort     = 5432
	DefaultPostgresqlDatabase = "postgres"
	DefaultPostgresqlSSLMode  = "require"
)

// Duration is a time.Duration that reads "5m"-style strings from env and settings files
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// UnmarshalJSON accepts a duration string or a number of seconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.UnmarshalText([]byte(s))
	}
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	d.Duration = time.Duration(seconds * float64(time.Second))
	return nil
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Backend describes one PostgreSQL server the controller manages roles and databases on
type Backend struct {
	// Name is the key resources use in spec.server
	Name string `json:"name"`
	Host string `json:"host"`
	Port int32  `json:"port,omitempty"`
	// Database is the maintenance database the controller connects to
	Database string `json:"database,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	// PasswordFromVault reads the admin credentials from Vault instead of Username/Password
	PasswordFromVault    bool   `json:"passwordFromVault,omitempty"`
	SSLMode              string `json:"sslmode,omitempty"`
	SSLAcceptInvalidCert bool   `json:"sslAcceptInvalidCert,omitempty"`
}

// S3 holds the object storage admin API settings
type S3 struct {
	Address string   `json:"address" env:"TJOCLOUD_S3_ADDRESS"`
	Token   string   `json:"token" env:"TJOCLOUD_S3_TOKEN"`
	Timeout Duration `json:"timeout" env:"TJOCLOUD_S3_TIMEOUT"`
}

// Vault holds the optional Vault integration settings. Empty Address disables it.
type Vault struct {
	Address      string `json:"address" env:"TJOCLOUD_VAULT_ADDR"`
	Role         string `json:"role" env:"TJOCLOUD_VAULT_ROLE"`
	MountPoint   string `json:"mountPoint" env:"TJOCLOUD_VAULT_MOUNT_POINT"`
	SecretPath   string `json:"secretPath" env:"TJOCLOUD_VAULT_SECRET_PATH"`
	K8sTokenPath string `json:"k8sTokenPath" env:"TJOCLOUD_VAULT_K8S_TOKEN_PATH"`
	// MirrorCredentials also writes issued credentials to Vault
	MirrorCredentials bool `json:"mirrorCredentials" env:"TJOCLOUD_VAULT_MIRROR_CREDENTIALS"`
}

// Config is the process configuration
type Config struct {
	SettingsFile            string    `json:"-" env:"TJOCLOUD_SETTINGS_FILE"`
	LogLevel                string    `json:"logLevel" env:"TJOCLOUD_LOG_LEVEL"`
	MetricsAddr             string    `json:"metricsAddr" env:"TJOCLOUD_METRICS_ADDRESS"`
	ProbeAddr               string    `json:"probeAddr" env:"TJOCLOUD_PROBE_ADDR"`
	RequeueInterval         Duration  `json:"requeueInterval" env:"TJOCLOUD_REQUEUE_INTERVAL"`
	MaxConcurrentReconciles int       `json:"maxConcurrentReconciles" env:"TJOCLOUD_MAX_CONCURRENT_RECONCILES"`
	FatalOnDisconnect       bool      `json:"fatalOnDisconnect" env:"TJOCLOUD_FATAL_ON_DISCONNECT"`
	HealthCheckInterval     Duration  `json:"healthCheckInterval" env:"TJOCLOUD_HEALTH_CHECK_INTERVAL"`
	ConnectAttempts         int       `json:"connectAttempts" env:"TJOCLOUD_CONNECT_ATTEMPTS"`
	ConnectRetryDelay       Duration  `json:"connectRetryDelay" env:"TJOCLOUD_CONNECT_RETRY_DELAY"`
	DeleteSecretsOnCleanup  bool      `json:"deleteSecretsOnCleanup" env:"TJOCLOUD_DELETE_SECRETS_ON_CLEANUP"`
	CollectorInterval       Duration  `json:"collectorInterval" env:"TJOCLOUD_COLLECTOR_INTERVAL"`
	Postgresql              []Backend `json:"postgresql"`
	S3                      S3        `json:"s3"`
	Vault                   Vault     `json:"vault"`
}

// New returns a Config populated with defaults
func New() *Config {
	return &Config{
		SettingsFile:            defaultSettingsFile,
		LogLevel:                defaultLogLevel,
		MetricsAddr:             defaultMetricsAddr,
		ProbeAddr:               defaultProbeAddr,
		RequeueInterval:         Duration{defaultRequeueInterval},
		MaxConcurrentReconciles: defaultMaxConcurrentReconciles,
		FatalOnDisconnect:       defaultFatalOnDisconnect,
		HealthCheckInterval:     Duration{defaultHealthCheckInterval},
		ConnectAttempts:         defaultConnectAttempts,
		ConnectRetryDelay:       Duration{defaultConnectRetryDelay},
		DeleteSecretsOnCleanup:  defaultDeleteSecretsOnCleanup,
		CollectorInterval:       Duration{defaultCollectorInterval},
		S3: S3{
			Timeout: Duration{defaultS3Timeout},
		},
		Vault: Vault{
			Role:         defaultVaultRole,
			MountPoint:   defaultVaultMountPoint,
			SecretPath:   defaultVaultSecretPath,
			K8sTokenPath: defaultVaultK8sTokenPath,
		},
	}
}

// LoadFile decodes the settings file on top of cfg. A missing file is not an error.
func LoadFile(fs afero.Fs, cfg *Config) error {
	if cfg.SettingsFile == "" {
		return nil
	}

	data, err := afero.ReadFile(fs, cfg.SettingsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return operrors.Wrapf(operrors.ErrInvalidConfiguration, err, "can't read settings file %s", cfg.SettingsFile)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return operrors.Wrapf(operrors.ErrInvalidConfiguration, err, "can't parse settings file %s", cfg.SettingsFile)
	}

	return nil
}

// ApplyBackendDefaults fills unset backend fields with the PostgreSQL defaults
func (c *Config) ApplyBackendDefaults() error {
	defaults := Backend{
		Port:     DefaultPostgresqlPort,
		Database: DefaultPostgresqlDatabase,
		SSLMode:  DefaultPostgresqlSSLMode,
	}
	for i := range c.Postgresql {
		if err := mergo.Merge(&c.Postgresql[i], defaults); err != nil {
			return operrors.Wrapf(operrors.ErrInvalidConfiguration, err, "can't apply defaults to backend %s",
				c.Postgresql[i].Name)
		}
	}
	return nil
}

// Validate checks the configuration for errors that would only surface at reconcile time
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Postgresql))
	for _, backend := range c.Postgresql {
		if backend.Name == "" {
			return operrors.ErrInvalidConfiguration.WithDetail("postgresql backend without name")
		}
		if _, ok := seen[backend.Name]; ok {
			return operrors.ErrInvalidConfiguration.WithDetail("duplicate postgresql backend %q", backend.Name)
		}
		seen[backend.Name] = struct{}{}
		if backend.Host == "" {
			return operrors.ErrInvalidConfiguration.WithDetail("postgresql backend %q has no host", backend.Name)
		}
		if !backend.PasswordFromVault && backend.Username == "" {
			return operrors.ErrInvalidConfiguration.WithDetail("postgresql backend %q has no username", backend.Name)
		}
		if backend.PasswordFromVault && c.Vault.Address == "" {
			return operrors.ErrInvalidConfiguration.WithDetail(
				"postgresql backend %q reads its password from vault but vault is not configured", backend.Name)
		}
	}
	if c.S3.Address != "" && c.S3.Token == "" {
		return operrors.ErrInvalidConfiguration.WithDetail("s3 address set without token")
	}
	intervals := []struct {
		name  string
		value Duration
	}{
		{"requeue interval", c.RequeueInterval},
		{"health check interval", c.HealthCheckInterval},
		{"collector interval", c.CollectorInterval},
	}
	for _, interval := range intervals {
		if interval.value.Duration <= 0 {
			return operrors.ErrInvalidConfiguration.WithDetail("%s must be positive", interval.name)
		}
	}
	if c.ConnectRetryDelay.Duration < 0 {
		return operrors.ErrInvalidConfiguration.WithDetail("connect retry delay must not be negative")
	}
	if c.ConnectAttempts < 1 {
		return operrors.ErrInvalidConfiguration.WithDetail("connect attempts must be at least 1")
	}
	return nil
}

// StorageEnabled reports whether the Bucket and Token controllers can run
func (c *Config) StorageEnabled() bool {
	return c.S3.Address != ""
}
