/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
)

// rosterFile is the on-disk shape of a character roster.
type rosterFile struct {
	Characters []domain.Character `yaml:"characters"`
}

// LoadRoster reads a character roster YAML file. An empty path returns an
// empty roster; script generation works without one.
func LoadRoster(path string) ([]domain.Character, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	for i, c := range rf.Characters {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("roster entry %d has no name", i+1)
		}
	}
	return rf.Characters, nil
}
