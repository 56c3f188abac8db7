// Copyright 2024 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package logutil provides sampled and conditional logging on top of the
// go-ethereum root logger. It is used on hot paths like the instruction loop
// where logging every event would swamp the output.
package logutil

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
)

// Filter decides whether a log record is emitted.
type Filter interface {
	check() bool
}

// EveryN lets one record in N through. A nil or zero EveryN lets everything
// through.
type EveryN struct {
	N       uint32
	counter atomic.Uint32
}

func (e *EveryN) check() bool {
	if e == nil || e.N == 0 {
		return true
	}
	return e.counter.Add(1)%e.N == 0
}

var _ Filter = (*EveryN)(nil)

type ifCondition bool

func (c ifCondition) check() bool { return bool(c) }

func write(filter Filter, level slog.Level, msg string, ctx ...interface{}) {
	// Skip the filter bookkeeping if the record would be dropped anyway.
	if !log.Root().Enabled(context.Background(), level) {
		return
	}
	if filter == nil || filter.check() {
		log.Root().Write(level, msg, ctx...)
	}
}

func TraceBy(filter Filter, msg string, ctx ...interface{}) {
	write(filter, log.LevelTrace, msg, ctx...)
}

func DebugBy(filter Filter, msg string, ctx ...interface{}) {
	write(filter, slog.LevelDebug, msg, ctx...)
}

func InfoBy(filter Filter, msg string, ctx ...interface{}) {
	write(filter, slog.LevelInfo, msg, ctx...)
}

func WarnBy(filter Filter, msg string, ctx ...interface{}) {
	write(filter, slog.LevelWarn, msg, ctx...)
}

func DebugIf(condition bool, msg string, ctx ...interface{}) {
	write(ifCondition(condition), slog.LevelDebug, msg, ctx...)
}

func WarnIf(condition bool, msg string, ctx ...interface{}) {
	write(ifCondition(condition), slog.LevelWarn, msg, ctx...)
}
