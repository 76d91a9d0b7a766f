/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package board

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
	"github.com/nupa0w0-hash/MangaGenPro/internal/layout"
	applog "github.com/nupa0w0-hash/MangaGenPro/internal/log"
)

// Store is the single serializing entry point for storyboard mutations.
// Dispatch applies the reducer against the state current at dispatch time,
// which is what makes delayed backend callbacks safe: they merge into
// whatever the board looks like when they finally land.
type Store struct {
	mu      sync.Mutex
	current domain.Storyboard
	params  layout.Params
	hist    *history
	log     *slog.Logger
}

// NewStore creates a store around an initial storyboard.
func NewStore(initial domain.Storyboard, params layout.Params) *Store {
	return &Store{
		current: initial.Clone(),
		params:  params,
		hist:    newHistory(historyConfig{}),
		log:     applog.WithComponent("board"),
	}
}

// Current returns a deep copy of the present storyboard.
func (s *Store) Current() domain.Storyboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Dispatch reduces one action against the current state and installs the
// result. Stale-panel actions are dropped silently (debug-logged) per the
// error contract: the user never sees a failure for a panel that no longer
// exists. All other reducer errors are returned unchanged.
func (s *Store) Dispatch(a Action) (domain.Storyboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Reduce(s.current, a, s.params)
	if err != nil {
		if errors.Is(err, ErrStalePanel) {
			s.log.Debug("dropped stale action", slog.String("action", a.actionName()), slog.Any("err", err))
			return s.current.Clone(), nil
		}
		return s.current.Clone(), err
	}

	s.hist.push(snapshot{board: s.current, action: a.actionName(), ts: time.Now()})
	s.current = next
	return next.Clone(), nil
}

// Undo restores the storyboard state prior to the most recent action.
func (s *Store) Undo() (domain.Storyboard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.hist.undo(s.current)
	if !ok {
		return s.current.Clone(), false
	}
	s.current = snap.board
	return s.current.Clone(), true
}

// Redo re-applies the most recently undone action's resulting state.
func (s *Store) Redo() (domain.Storyboard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.hist.redo(s.current)
	if !ok {
		return s.current.Clone(), false
	}
	s.current = snap.board
	return s.current.Clone(), true
}

// BoundingHeight reports the page container height for the current state.
func (s *Store) BoundingHeight() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return layout.For(s.current, s.params).BoundingHeight(s.current)
}
