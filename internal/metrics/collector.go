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

package metrics

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"sigs.k8s.io/controller-runtime/pkg/client"

	postgresqlv1 "github.com/tjo-space/tjo-cloud-console/api/postgresql/v1"
	s3v1 "github.com/tjo-space/tjo-cloud-console/api/s3/v1"
)

// storageBackend labels objects that live on the object storage
const storageBackend = "s3"

type objectKey struct {
	kind    string
	backend string
	created bool
}

// Collector periodically counts the managed objects into the Objects gauge
type Collector struct {
	client.Reader
	Log      *zap.SugaredLogger
	Interval time.Duration
	// Storage includes Buckets and Tokens
	Storage bool
}

// NewCollector creates a new metrics collector
func NewCollector(reader client.Reader, log *zap.SugaredLogger, interval time.Duration, storage bool) *Collector {
	return &Collector{
		Reader:   reader,
		Log:      log,
		Interval: interval,
		Storage:  storage,
	}
}

// Start implements manager.Runnable
func (c *Collector) Start(ctx context.Context) error {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		if err := c.CollectMetrics(ctx); err != nil {
			c.Log.Warnw("Failed to collect object metrics", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// NeedLeaderElection implements manager.LeaderElectionRunnable
func (c *Collector) NeedLeaderElection() bool {
	return false
}

// CollectMetrics lists every kind and replaces the gauge values. The gauge is only
// touched when all lists succeed.
func (c *Collector) CollectMetrics(ctx context.Context) error {
	counts := make(map[objectKey]int)

	var databases postgresqlv1.DatabaseList
	if err := c.List(ctx, &databases); err != nil {
		return err
	}
	for i := range databases.Items {
		db := &databases.Items[i]
		counts[objectKey{"Database", db.Spec.Server, db.Status.Created}]++
	}

	var users postgresqlv1.UserList
	if err := c.List(ctx, &users); err != nil {
		return err
	}
	for i := range users.Items {
		user := &users.Items[i]
		counts[objectKey{"User", user.Spec.Server, user.Status.Created}]++
	}

	if c.Storage {
		var buckets s3v1.BucketList
		if err := c.List(ctx, &buckets); err != nil {
			return err
		}
		for i := range buckets.Items {
			counts[objectKey{"Bucket", storageBackend, buckets.Items[i].Status.Created}]++
		}

		var tokens s3v1.TokenList
		if err := c.List(ctx, &tokens); err != nil {
			return err
		}
		for i := range tokens.Items {
			counts[objectKey{"Token", storageBackend, tokens.Items[i].Status.Created}]++
		}
	}

	Objects.Reset()
	for k, n := range counts {
		Objects.WithLabelValues(k.kind, k.backend, strconv.FormatBool(k.created)).Set(float64(n))
	}
	return nil
}
