/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a backend failure for retry purposes.
type Kind int

const (
	// KindTerminal failures will not improve on retry: schema violations,
	// invalid requests, auth problems.
	KindTerminal Kind = iota
	// KindTransient failures are worth retrying with backoff: the service
	// reported itself overloaded or temporarily unavailable.
	KindTransient
)

func (k Kind) String() string {
	if k == KindTransient {
		return "transient"
	}
	return "terminal"
}

// Error is a classified backend failure.
type Error struct {
	Op     string // "script_generate", "image_render", ...
	Kind   Kind
	Status int // HTTP status when applicable, else 0
	Err    error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s backend failure (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s backend failure: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewTransient wraps err as a retryable failure.
func NewTransient(op string, status int, err error) *Error {
	return &Error{Op: op, Kind: KindTransient, Status: status, Err: err}
}

// NewTerminal wraps err as a non-retryable failure.
func NewTerminal(op string, status int, err error) *Error {
	return &Error{Op: op, Kind: KindTerminal, Status: status, Err: err}
}

// IsTransient reports whether err carries a transient backend classification.
// Unclassified errors are terminal.
func IsTransient(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == KindTransient
}

// Classifier decides transient vs. terminal from a status code and response
// text. The backends give no formal contract for "overloaded", so the
// marker list and status set are policy, loaded from configuration rather
// than hard-coded.
type Classifier struct {
	Markers  []string // case-insensitive substrings of the response body
	Statuses []int    // HTTP status codes treated as transient
}

// DefaultClassifier covers the overload signals observed from the hosted
// generation services.
func DefaultClassifier() Classifier {
	return Classifier{
		Markers:  []string{"overloaded", "temporarily unavailable", "resource exhausted", "try again later"},
		Statuses: []int{429, 500, 502, 503, 504},
	}
}

// Classify returns the failure kind for a response.
func (c Classifier) Classify(status int, body string) Kind {
	for _, s := range c.Statuses {
		if status == s {
			return KindTransient
		}
	}
	lower := strings.ToLower(body)
	for _, m := range c.Markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return KindTransient
		}
	}
	return KindTerminal
}
