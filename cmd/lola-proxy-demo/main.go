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

// Command lola-proxy-demo subscribes to a counter event and prints every
// sample it receives. It hosts its own in-process publisher on a
// background goroutine so the demo is runnable standalone: the slot
// array, notifier, and subscription state machine it exercises are the
// same ones a real skeleton process and proxy process would each hold
// their own handle onto across a shared-memory segment.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eclipse-score/lola-go/pkg/lola"
)

// CounterSample mirrors cmd/lola-skeleton-demo's payload.
type CounterSample struct {
	Value uint64
}

func main() {
	windowSize := flag.Int("window", 4, "subscription window size (max_sample_count)")
	flag.Parse()

	logger, err := lola.NewZapLogger()
	if err != nil {
		panic(err)
	}

	cfg := lola.EndpointConfig{Slots: 4, MaxSubscribers: 4}
	control := lola.NewEventDataControl[CounterSample](cfg)
	notifier := lola.NewChannelNotifier()

	stop := make(chan struct{})
	go runPublisher(control, notifier, stop)

	proxy := lola.NewProxyEvent[CounterSample](control, notifier, lola.PID(os.Getpid()))
	if err := proxy.Subscribe(lola.MaxSampleCount(*windowSize)); err != nil {
		logger.Errorw("subscribe failed", "error", err)
		close(stop)
		return
	}
	logger.Infow("subscribed", "window", *windowSize)

	received := make(chan struct{}, 1)
	proxy.SetReceiveHandler(func() {
		select {
		case received <- struct{}{}:
		default:
		}
	})

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-received:
			samples, err := proxy.GetNewSamples(lola.MaxSampleCount(*windowSize))
			if err != nil {
				logger.Warnw("get new samples failed", "error", err)
				continue
			}
			for _, s := range samples {
				logger.Infow("received sample", "value", s.Payload().Value, "timestamp", s.Timestamp())
				_ = s.Release()
			}
		case <-sigs:
			_ = proxy.Unsubscribe()
			close(stop)
			return
		case <-time.After(5 * time.Second):
			logger.Debugw("no samples in the last 5s")
		}
	}
}

func runPublisher(control *lola.EventDataControl[CounterSample], notifier *lola.ChannelNotifier, stop <-chan struct{}) {
	skel := lola.NewSkeletonEvent[CounterSample](control, notifier)
	var counter uint64
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			handle, err := skel.Allocate()
			if err != nil {
				continue
			}
			handle.Payload().Value = counter
			counter++
			_ = skel.Send(handle)
		}
	}
}
