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

package lola

import "go.uber.org/zap"

// Logger is the structured-logging contract used throughout the core. It is
// satisfied by *zap.SugaredLogger; callers on the data plane should pass a
// logger built with a low-overhead encoder since some call sites (trace
// disablement, recovery) sit close to the hot path.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// nopLogger discards everything; used whenever a caller does not supply a
// Logger so the core never requires logging to be wired up to function.
var nopLogger Logger = zap.NewNop().Sugar()

// orNop returns l, or a no-op Logger if l is nil.
func orNop(l Logger) Logger {
	if l == nil {
		return nopLogger
	}
	return l
}

// NewZapLogger builds a production *zap.SugaredLogger suitable for passing
// to the constructors in this package.
func NewZapLogger() (Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return z.Sugar(), nil
}
