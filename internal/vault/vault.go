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

// Package vault reads backend admin credentials from Vault and mirrors issued
// credentials into it.
package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/vault/api"
	auth "github.com/hashicorp/vault/api/auth/kubernetes"

	"github.com/tjo-space/tjo-cloud-console/internal/config"
	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

// kvStore is the KV v2 surface used here. *api.KVv2 implements it.
type kvStore interface {
	Get(ctx context.Context, secretPath string) (*api.KVSecret, error)
	Put(ctx context.Context, secretPath string, data map[string]interface{}, opts ...api.KVOption) (*api.KVSecret, error)
	DeleteMetadata(ctx context.Context, secretPath string) error
}

// Client wraps the Vault API client
type Client struct {
	client     *api.Client
	kv         kvStore
	secretPath string
}

// NewClient creates a Vault client authenticated with the pod's service account token
func NewClient(ctx context.Context, cfg config.Vault) (*Client, error) {
	if cfg.Role == "" {
		return nil, operrors.ErrInvalidConfiguration.WithDetail("vault role is not set (required for Kubernetes auth)")
	}

	apiConfig := api.DefaultConfig()
	apiConfig.Address = cfg.Address

	client, err := api.NewClient(apiConfig)
	if err != nil {
		return nil, operrors.Wrapf(operrors.ErrVaultOperationFailed, err, "failed to create Vault client")
	}

	k8sAuth, err := auth.NewKubernetesAuth(cfg.Role,
		auth.WithServiceAccountTokenPath(cfg.K8sTokenPath),
	)
	if err != nil {
		return nil, operrors.Wrapf(operrors.ErrVaultAuthenticationFailed, err, "failed to create Kubernetes auth method")
	}

	authInfo, err := client.Auth().Login(ctx, k8sAuth)
	if err != nil {
		return nil, operrors.Wrap(operrors.ErrVaultAuthenticationFailed, err)
	}
	if authInfo == nil {
		return nil, operrors.ErrVaultAuthenticationFailed.WithDetail("empty auth info")
	}

	return newClient(client, client.KVv2(cfg.MountPoint), cfg.SecretPath), nil
}

func newClient(client *api.Client, kv kvStore, secretPath string) *Client {
	return &Client{client: client, kv: kv, secretPath: secretPath}
}

// CheckHealth checks if Vault answers. A sealed Vault still counts as reachable.
func (c *Client) CheckHealth(ctx context.Context) error {
	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return operrors.Wrapf(operrors.ErrVaultOperationFailed, err, "failed to check Vault health")
	}
	if health == nil {
		return operrors.ErrVaultOperationFailed.WithDetail("health check returned nil")
	}
	return nil
}

// Backend admin credentials and issued credentials live under separate prefixes so a
// namespace named like a backend can never reach its admin secret
const (
	backendsPrefix = "backends"
	issuedPrefix   = "issued"
)

func (c *Client) backendPath(backend string) string {
	return fmt.Sprintf("%s/%s/%s/admin", c.secretPath, backendsPrefix, backend)
}

func (c *Client) credentialPath(namespace, name string) string {
	return fmt.Sprintf("%s/%s/%s/%s", c.secretPath, issuedPrefix, namespace, name)
}

// GetBackendCredentials reads admin_username and admin_password of a PostgreSQL backend
// from <secretPath>/backends/<backend>/admin
func (c *Client) GetBackendCredentials(ctx context.Context, backend string) (username, password string, err error) {
	path := c.backendPath(backend)

	secret, err := c.kv.Get(ctx, path)
	if errors.Is(err, api.ErrSecretNotFound) {
		return "", "", operrors.Wrap(operrors.ErrVaultSecretNotFound, err)
	}
	if err != nil {
		return "", "", operrors.Wrapf(operrors.ErrVaultOperationFailed, err, "failed to read secret %s", path)
	}
	if secret == nil || secret.Data == nil {
		return "", "", operrors.ErrVaultSecretNotFound.WithDetail("%s", path)
	}

	if u, ok := secret.Data["admin_username"].(string); ok {
		username = u
	}
	if p, ok := secret.Data["admin_password"].(string); ok {
		password = p
	}
	if username == "" || password == "" {
		return "", "", operrors.ErrVaultSecretNotFound.WithDetail("credentials missing in %s", path)
	}

	return username, password, nil
}

// StoreCredentials writes an issued credential to <secretPath>/issued/<namespace>/<name>
func (c *Client) StoreCredentials(ctx context.Context, namespace, name string, data map[string]string) error {
	payload := make(map[string]interface{}, len(data))
	for k, v := range data {
		payload[k] = v
	}

	path := c.credentialPath(namespace, name)
	if _, err := c.kv.Put(ctx, path, payload); err != nil {
		return operrors.Wrapf(operrors.ErrVaultOperationFailed, err, "failed to write secret %s", path)
	}
	return nil
}

// DeleteCredentials removes every version of a mirrored credential
func (c *Client) DeleteCredentials(ctx context.Context, namespace, name string) error {
	path := c.credentialPath(namespace, name)
	if err := c.kv.DeleteMetadata(ctx, path); err != nil {
		return operrors.Wrapf(operrors.ErrVaultOperationFailed, err, "failed to delete secret %s", path)
	}
	return nil
}
