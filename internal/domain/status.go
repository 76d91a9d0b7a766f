/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "fmt"

// Status is the generation state of a panel or cover.
//
// The legal transitions form a small state machine:
//
//	pending    -> generating
//	generating -> completed | failed
//	failed     -> generating   (user-triggered retry)
//	completed  -> generating   (explicit regenerate)
//
// A panel never returns to pending except by whole-script regeneration,
// which replaces the record entirely. StatusGenerating is transient and must
// never be the last persisted state without an in-flight operation.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusGenerating, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

var legalTransitions = map[Status][]Status{
	StatusPending:    {StatusGenerating},
	StatusGenerating: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusGenerating},
	StatusCompleted:  {StatusGenerating},
}

// CanTransition reports whether from -> to is a legal status transition.
func CanTransition(from, to Status) bool {
	for _, t := range legalTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a descriptive error for an illegal transition.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal panel status transition %s -> %s", from, to)
	}
	return nil
}
