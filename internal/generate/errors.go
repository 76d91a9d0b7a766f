/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package generate

import (
	"errors"
	"fmt"
)

// ErrGenerationInFlight is returned when a second generation is requested
// for a panel id that already has one running.
var ErrGenerationInFlight = errors.New("a generation for this panel is already in flight")

// ScriptGenerationError is a whole-script failure. The storyboard is left
// exactly as it was; nothing partial is installed.
type ScriptGenerationError struct {
	Err error
}

func (e *ScriptGenerationError) Error() string { return fmt.Sprintf("script generation: %v", e.Err) }
func (e *ScriptGenerationError) Unwrap() error { return e.Err }

// ImageGenerationError is a single image failure surfaced to the caller.
// PanelID 0 means the cover.
type ImageGenerationError struct {
	PanelID int
	Err     error
}

func (e *ImageGenerationError) Error() string {
	if e.PanelID == 0 {
		return fmt.Sprintf("cover image generation: %v", e.Err)
	}
	return fmt.Sprintf("image generation for panel %d: %v", e.PanelID, e.Err)
}

func (e *ImageGenerationError) Unwrap() error { return e.Err }
