/*
 * Copyright 2026 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/cloudwego/bcopt"
)

// Config is the optimizer configuration file.
type Config struct {
	MaxPasses     int              `toml:"passes"`
	Parallelism   int              `toml:"parallelism"`
	Optimizations string           `toml:"optimizations"`
	Exhaustive    bool             `toml:"exhaustive"`
	Library       []string         `toml:"library"`
	Keep          []bcopt.KeepRule `toml:"keep"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	var ret Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ret); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	/* check the values before they reach the option setters */
	if ret.MaxPasses < 0 {
		return nil, fmt.Errorf("invalid passes: %d", ret.MaxPasses)
	}
	if ret.Parallelism < 0 {
		return nil, fmt.Errorf("invalid parallelism: %d", ret.Parallelism)
	}
	for i, r := range ret.Keep {
		if r.Class == "" {
			return nil, fmt.Errorf("keep rule #%d: missing class pattern", i)
		}
	}
	return &ret, nil
}

// Options converts the settings present in the file.
func (self *Config) Options() []bcopt.Option {
	var ret []bcopt.Option
	if self.MaxPasses != 0 {
		ret = append(ret, bcopt.WithMaxPasses(self.MaxPasses))
	}
	if self.Parallelism != 0 {
		ret = append(ret, bcopt.WithParallelism(self.Parallelism))
	}
	if self.Optimizations != "" {
		ret = append(ret, bcopt.WithOptimizations(self.Optimizations))
	}
	if self.Exhaustive {
		ret = append(ret, bcopt.WithExhaustive(true))
	}
	if len(self.Keep) != 0 {
		ret = append(ret, bcopt.WithKeepRules(self.Keep...))
	}
	return ret
}
