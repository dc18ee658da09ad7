// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package paramstore

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Local resolves parameters from a fixed in-process map, used for
// local runs and tests in place of a deployed parameter table.
type Local struct {
	Values map[string]string
}

// NewLocal returns a Local store seeded with values.
func NewLocal(values map[string]string) *Local {
	return &Local{Values: values}
}

func (l *Local) Value(_ context.Context, name string) (string, error) {
	value, ok := l.Values[name]
	if !ok {
		return "", fmt.Errorf("paramstore: no local value for %q", name)
	}
	return value, nil
}

// LoadLocalFile reads a YAML document of flat name/value pairs from
// path and returns a Local store seeded with its contents, for
// developer machines that don't have a parameter table reachable.
func LoadLocalFile(path string) (*Local, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("paramstore: read %s: %w", path, err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("paramstore: parse %s: %w", path, err)
	}
	return NewLocal(values), nil
}
