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

package main

import (
	"flag"

	"github.com/caarlos0/env/v6"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/tjo-space/tjo-cloud-console/internal/config"
	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

// ConfigParser fills cfg from the command line, the settings file and the environment.
// Later sources win.
func ConfigParser(cfg *config.Config, fs afero.Fs, args []string) error {
	flags := pflag.NewFlagSet("console", pflag.ContinueOnError)
	// controller-runtime registers --kubeconfig on the Go flag set
	flags.AddGoFlagSet(flag.CommandLine)

	flags.StringVar(&cfg.SettingsFile, "settings", cfg.SettingsFile, "Path to the YAML settings file.")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error.")
	flags.StringVar(&cfg.MetricsAddr, "metrics-bind-address", cfg.MetricsAddr,
		"The address the metrics and diagnostics endpoints bind to.")
	flags.StringVar(&cfg.ProbeAddr, "health-probe-bind-address", cfg.ProbeAddr,
		"The address the probe endpoint binds to.")
	flags.DurationVar(&cfg.RequeueInterval.Duration, "requeue-interval", cfg.RequeueInterval.Duration,
		"Interval after which every object is reconciled again, also after failures.")
	flags.IntVar(&cfg.MaxConcurrentReconciles, "max-concurrent-reconciles", cfg.MaxConcurrentReconciles,
		"Number of objects of one kind reconciled in parallel.")
	flags.BoolVar(&cfg.FatalOnDisconnect, "fatal-on-disconnect", cfg.FatalOnDisconnect,
		"Stop the process when a PostgreSQL backend stays unreachable.")
	flags.DurationVar(&cfg.HealthCheckInterval.Duration, "health-check-interval", cfg.HealthCheckInterval.Duration,
		"Interval between PostgreSQL backend pings.")
	flags.IntVar(&cfg.ConnectAttempts, "connect-attempts", cfg.ConnectAttempts,
		"Number of pings before a PostgreSQL backend is considered unreachable at startup.")
	flags.DurationVar(&cfg.ConnectRetryDelay.Duration, "connect-retry-delay", cfg.ConnectRetryDelay.Duration,
		"Delay between startup pings.")
	flags.BoolVar(&cfg.DeleteSecretsOnCleanup, "delete-secrets-on-cleanup", cfg.DeleteSecretsOnCleanup,
		"Delete issued credential secrets during cleanup instead of leaving them to garbage collection.")
	flags.DurationVar(&cfg.CollectorInterval.Duration, "collector-interval", cfg.CollectorInterval.Duration,
		"Interval between object gauge refreshes.")
	flags.StringVar(&cfg.S3.Address, "s3-address", cfg.S3.Address,
		"Garage admin API address. Bucket and Token controllers are disabled when empty.")
	flags.StringVar(&cfg.S3.Token, "s3-token", cfg.S3.Token, "Garage admin API bearer token.")
	flags.StringVar(&cfg.Vault.Address, "vault-addr", cfg.Vault.Address, "Vault addr, example http://0.0.0.0:8200")
	flags.StringVar(&cfg.Vault.Role, "vault-role", cfg.Vault.Role, "Vault role name")
	flags.StringVar(&cfg.Vault.MountPoint, "vault-mount-point", cfg.Vault.MountPoint, "KV V2 Name")
	flags.StringVar(&cfg.Vault.SecretPath, "vault-secret-path", cfg.Vault.SecretPath, "prefix path")
	flags.StringVar(&cfg.Vault.K8sTokenPath, "k8s-token-path", cfg.Vault.K8sTokenPath,
		"path to k8s SA token mounted in container")
	flags.BoolVar(&cfg.Vault.MirrorCredentials, "vault-mirror-credentials", cfg.Vault.MirrorCredentials,
		"Also write issued credentials to Vault.")

	if err := flags.Parse(args); err != nil {
		return operrors.Wrap(operrors.ErrInvalidConfiguration, err)
	}

	// The environment also picks the settings file, so it is read ahead of the file
	var location struct {
		SettingsFile string `env:"TJOCLOUD_SETTINGS_FILE"`
	}
	if err := env.Parse(&location); err != nil {
		return operrors.Wrapf(operrors.ErrInvalidConfiguration, err, "can't parse ENV")
	}
	if location.SettingsFile != "" {
		cfg.SettingsFile = location.SettingsFile
	}

	if err := config.LoadFile(fs, cfg); err != nil {
		return err
	}

	if err := env.Parse(cfg); err != nil {
		return operrors.Wrapf(operrors.ErrInvalidConfiguration, err, "can't parse ENV")
	}

	if err := cfg.ApplyBackendDefaults(); err != nil {
		return err
	}
	return cfg.Validate()
}
