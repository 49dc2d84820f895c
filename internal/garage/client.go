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

// Package garage is a client for the Garage admin API v2.
package garage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/otel/attribute"

	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
	"github.com/tjo-space/tjo-cloud-console/internal/tracing"
)

const maxErrorBody = 4 << 10

// Bucket is a created bucket
type Bucket struct {
	ID string `json:"id"`
}

// Key is a created access key. Secret is only returned on creation.
type Key struct {
	Name   string `json:"name"`
	ID     string `json:"accessKeyId"`
	Secret string `json:"secretAccessKey"`
}

// BucketPermissions is the permission triple a key holds on a bucket
type BucketPermissions struct {
	Owner bool `json:"owner"`
	Read  bool `json:"read"`
	Write bool `json:"write"`
}

// API is the subset of the admin API the reconcilers use
type API interface {
	CreateBucket(ctx context.Context, globalAlias string) (*Bucket, error)
	DeleteBucket(ctx context.Context, id string) error
	CreateKey(ctx context.Context, name string) (*Key, error)
	DeleteKey(ctx context.Context, id string) error
	SetBucketPermissions(ctx context.Context, bucketID, keyID string, permissions BucketPermissions) error
}

// Client talks to one Garage admin endpoint with a bearer token
type Client struct {
	address string
	token   string
	http    *http.Client
}

// NewClient returns a client for address. Redirects are never followed.
func NewClient(address, token string, timeout time.Duration) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = timeout
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Client{
		address: strings.TrimRight(address, "/"),
		token:   token,
		http:    httpClient,
	}
}

type createBucketRequest struct {
	GlobalAlias string         `json:"global_alias"`
	LocalAlias  map[string]any `json:"localAlias"`
}

// CreateBucket creates a bucket reachable under globalAlias
func (c *Client) CreateBucket(ctx context.Context, globalAlias string) (*Bucket, error) {
	body := createBucketRequest{GlobalAlias: globalAlias, LocalAlias: map[string]any{}}
	var bucket Bucket
	if err := c.call(ctx, "CreateBucket", nil, body, &bucket); err != nil {
		return nil, err
	}
	return &bucket, nil
}

// DeleteBucket deletes the bucket with id
func (c *Client) DeleteBucket(ctx context.Context, id string) error {
	return c.call(ctx, "DeleteBucket", url.Values{"id": {id}}, nil, nil)
}

type keyFlags struct {
	CreateBucket bool `json:"createBucket"`
}

type createKeyRequest struct {
	Allow        keyFlags `json:"allow"`
	Deny         keyFlags `json:"deny"`
	NeverExpires bool     `json:"neverExpires"`
	Name         string   `json:"name"`
}

// CreateKey creates a non-expiring key that may not create buckets.
// The admin API takes key creation on the CreateBucket route and tells them apart by payload.
func (c *Client) CreateKey(ctx context.Context, name string) (*Key, error) {
	body := createKeyRequest{
		Allow:        keyFlags{CreateBucket: false},
		Deny:         keyFlags{CreateBucket: true},
		NeverExpires: true,
		Name:         name,
	}
	var key Key
	if err := c.call(ctx, "CreateBucket", nil, body, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// DeleteKey deletes the key with id
func (c *Client) DeleteKey(ctx context.Context, id string) error {
	return c.call(ctx, "DeleteKey", url.Values{"id": {id}}, nil, nil)
}

type bucketKeyRequest struct {
	AccessKeyID string            `json:"accessKeyId"`
	BucketID    string            `json:"bucketId"`
	Permissions BucketPermissions `json:"permissions"`
}

// AllowBucketKey grants the permissions flagged true
func (c *Client) AllowBucketKey(ctx context.Context, bucketID, keyID string, permissions BucketPermissions) error {
	body := bucketKeyRequest{AccessKeyID: keyID, BucketID: bucketID, Permissions: permissions}
	return c.call(ctx, "AllowBucketKey", nil, body, nil)
}

// DenyBucketKey revokes the permissions flagged true
func (c *Client) DenyBucketKey(ctx context.Context, bucketID, keyID string, permissions BucketPermissions) error {
	body := bucketKeyRequest{AccessKeyID: keyID, BucketID: bucketID, Permissions: permissions}
	return c.call(ctx, "DenyBucketKey", nil, body, nil)
}

// SetBucketPermissions sends AllowBucketKey and then DenyBucketKey with the same triple.
// The deny call is skipped when the allow call fails.
func (c *Client) SetBucketPermissions(
	ctx context.Context, bucketID, keyID string, permissions BucketPermissions,
) error {
	if err := c.AllowBucketKey(ctx, bucketID, keyID, permissions); err != nil {
		return err
	}
	return c.DenyBucketKey(ctx, bucketID, keyID, permissions)
}

// call POSTs body as JSON to /v2/<operation> and decodes the answer into out when set
func (c *Client) call(ctx context.Context, operation string, query url.Values, body, out any) error {
	ctx, span := tracing.StartChildSpan(ctx, "garage."+operation,
		attribute.String("http.method", http.MethodPost),
	)
	defer span.End()

	err := c.do(ctx, operation, query, body, out)
	tracing.RecordSpanError(span, err)
	return err
}

func (c *Client) do(ctx context.Context, operation string, query url.Values, body, out any) error {
	endpoint := c.address + "/v2/" + operation
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return operrors.Wrap(operrors.ErrStorageHTTP, err).WithOp(operation)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return operrors.Wrap(operrors.ErrStorageHTTP, err).WithOp(operation)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return operrors.Wrap(operrors.ErrStorageHTTP, err).WithOp(operation)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return operrors.Wrap(operrors.ErrStorageHTTP, &operrors.StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}).WithOp(operation)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return operrors.Wrapf(operrors.ErrStorageHTTP, err, "can't decode %s response", operation).WithOp(operation)
	}
	return nil
}

// IsNotFound reports whether err is the admin API answering 404
func IsNotFound(err error) bool {
	var statusErr *operrors.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

var _ API = (*Client)(nil)
