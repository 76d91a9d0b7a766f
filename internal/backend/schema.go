/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
)

// scriptResultSchema is the contract the script backend must honor. The
// model is asked for structured output but occasionally returns junk, so
// every response is validated before it touches a storyboard. A schema
// violation is terminal: re-sending the same request will not fix a model
// that ignored the response format.
const scriptResultSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["title", "coverPrompt", "panels"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "coverPrompt": {"type": "string"},
    "panels": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["description", "visualPrompt", "sizeHint"],
        "properties": {
          "description": {"type": "string", "minLength": 1},
          "visualPrompt": {"type": "string", "minLength": 1},
          "location": {"type": "string"},
          "time": {"type": "string"},
          "costumeOverride": {"type": "string"},
          "sizeHint": {"type": "string", "enum": ["square", "wide", "tall"]},
          "charactersInPanel": {"type": "array", "items": {"type": "string"}},
          "dialogues": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["speaker", "text"],
              "properties": {
                "speaker": {"type": "string"},
                "text": {"type": "string"},
                "kind": {"type": "string", "enum": ["speech", "thought", "narration", ""]}
              }
            }
          }
        }
      }
    }
  }
}`

var scriptSchema = gojsonschema.NewStringLoader(scriptResultSchema)

// DecodeScriptResult validates raw against the script schema and decodes it.
// Validation failures come back as terminal backend errors.
func DecodeScriptResult(raw []byte) (domain.ScriptResult, error) {
	res, err := gojsonschema.Validate(scriptSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return domain.ScriptResult{}, NewTerminal("script_decode", 0, fmt.Errorf("schema check: %w", err))
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return domain.ScriptResult{}, NewTerminal("script_decode", 0,
			fmt.Errorf("script response violates schema: %s", strings.Join(msgs, "; ")))
	}
	var out domain.ScriptResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.ScriptResult{}, NewTerminal("script_decode", 0, err)
	}
	return out, nil
}
