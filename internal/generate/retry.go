/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package generate

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nupa0w0-hash/MangaGenPro/internal/backend"
)

// RetryPolicy bounds retries of a single backend call. Only transient
// failures retry; terminal ones surface immediately.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, first call included.
	MaxAttempts int
	// BaseDelay is the first backoff interval; it doubles each attempt.
	BaseDelay time.Duration
}

// DefaultImageRetry allows two retries after the initial attempt.
func DefaultImageRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}
}

// DefaultScriptRetry fails fast: one retry, then the error propagates.
func DefaultScriptRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, BaseDelay: 500 * time.Millisecond}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	return p
}

// withRetry runs fn under the policy. The last error is returned when
// attempts are exhausted.
func withRetry(ctx context.Context, p RetryPolicy, fn func() error) error {
	p = p.normalized()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	op := func() error {
		err := fn()
		if err != nil && !backend.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx))
}
