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

// Command lola-skeleton-demo publishes a counter value once a second
// through a single in-process event endpoint, demonstrating the
// allocate/write/send cycle applications drive through SkeletonEvent.
package main

import (
	"flag"
	"time"

	"github.com/eclipse-score/lola-go/pkg/lola"
	"github.com/eclipse-score/lola-go/pkg/lolacfg"
)

// CounterSample is the payload this demo publishes.
type CounterSample struct {
	Value uint64
}

func main() {
	configPath := flag.String("config", "", "path to a TOML deployment file (optional)")
	endpoint := flag.String("endpoint", "counter", "endpoint name within the deployment file")
	flag.Parse()

	logger, err := lola.NewZapLogger()
	if err != nil {
		panic(err)
	}

	cfg := lola.EndpointConfig{Slots: 4, MaxSubscribers: 4}
	if *configPath != "" {
		file, err := lolacfg.Load(*configPath)
		if err != nil {
			logger.Errorw("failed to load config, using defaults", "error", err)
		} else if c, err := lolacfg.Get(file, *endpoint); err == nil {
			cfg = c
		} else {
			logger.Errorw("endpoint not found in config, using defaults", "error", err)
		}
	}

	control := lola.NewEventDataControl[CounterSample](cfg)
	notifier := lola.NewChannelNotifier()
	skel := lola.NewSkeletonEvent[CounterSample](control, notifier)

	logger.Infow("publishing", "endpoint", *endpoint, "slots", cfg.Slots)

	var counter uint64
	for range time.Tick(time.Second) {
		handle, err := skel.Allocate()
		if err != nil {
			logger.Warnw("allocate failed, dropping this tick", "error", err)
			continue
		}
		value := counter
		handle.Payload().Value = value
		counter++

		if err := skel.Send(handle); err != nil {
			logger.Errorw("send failed", "error", err)
			continue
		}
		logger.Debugw("sent sample", "value", value)
	}
}
