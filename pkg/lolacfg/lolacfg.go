// Copyright (c) 2024 Contributors to the Eclipse Foundation
//
// See the NOTICE file(s) distributed with this work for additional
// information regarding copyright ownership.
//
// This program and the accompanying materials are made available under the
// terms of the Apache Software License 2.0 which is available at
// https://www.apache.org/licenses/LICENSE-2.0, or the MIT license
// which is available at https://opensource.org/licenses/MIT.
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package lolacfg loads endpoint deployment configuration from TOML files.
// It is kept separate from package lola so the data-plane core never pulls
// a config-file parser into its import graph; only process entry points
// (cmd/...) import lolacfg.
package lolacfg

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/eclipse-score/lola-go/pkg/lola"
)

// Load parses path as a deployment file mapping endpoint names to
// lola.EndpointConfig values.
func Load(path string) (lola.EndpointConfigFile, error) {
	var file lola.EndpointConfigFile
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return lola.EndpointConfigFile{}, fmt.Errorf("lolacfg: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return lola.EndpointConfigFile{}, fmt.Errorf("lolacfg: %s has unknown keys: %v", path, undecoded)
	}
	return file, nil
}

// Get looks up name in file, returning an error naming the missing
// endpoint if absent — deployment files are meant to be exhaustive, so a
// typo in an endpoint name should surface immediately rather than falling
// back to zero values.
func Get(file lola.EndpointConfigFile, name string) (lola.EndpointConfig, error) {
	cfg, ok := file.Endpoints[name]
	if !ok {
		return lola.EndpointConfig{}, fmt.Errorf("lolacfg: no endpoint named %q", name)
	}
	return cfg, nil
}
