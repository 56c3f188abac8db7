// Copyright 2024 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

// Package utils contains internal helper functions for avm commands.
package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bnb-chain/avm/ethdb"
	"github.com/bnb-chain/avm/ethdb/bboltdb"
	"github.com/bnb-chain/avm/ethdb/leveldb"
	"github.com/bnb-chain/avm/ethdb/memorydb"
	"github.com/bnb-chain/avm/ethdb/pebble"
	"github.com/bnb-chain/avm/internal/logutil"
)

const (
	AVMCategory      = "AVM"
	DatabaseCategory = "DATABASE"
	ProverCategory   = "PROVER"
	LoggingCategory  = "LOGGING AND DEBUGGING"
)

// Supported database engines.
const (
	EnginePebble  = "pebble"
	EngineLevelDB = "leveldb"
	EngineBBolt   = "bbolt"
	EngineMemory  = "memory"
)

// These are all the command line flags we support.
// If you add to this list, please remember to include the
// flag in the appropriate command definition.
//
// The flags are defined here so their names and help texts
// are the same for all commands.

var (
	// General settings
	ConfigFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: AVMCategory,
	}
	DataDirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "Data directory for the databases",
		Value:    "avmdata",
		Category: AVMCategory,
	}
	DBEngineFlag = &cli.StringFlag{
		Name:     "db.engine",
		Usage:    "Backing database implementation to use ('pebble', 'leveldb', 'bbolt' or 'memory')",
		Value:    EnginePebble,
		Category: DatabaseCategory,
	}
	CacheFlag = &cli.IntFlag{
		Name:     "cache",
		Usage:    "Megabytes of memory allocated to database caching",
		Value:    64,
		Category: DatabaseCategory,
	}
	StateCacheFlag = &cli.IntFlag{
		Name:     "cache.state",
		Usage:    "Megabytes of memory allocated to the public state read cache",
		Value:    32,
		Category: DatabaseCategory,
	}

	// Execution settings
	MaxCallDepthFlag = &cli.IntFlag{
		Name:     "exec.maxdepth",
		Usage:    "Maximum depth of the public call stack",
		Category: AVMCategory,
	}
	StrategyFlag = &cli.StringFlag{
		Name:     "exec.strategy",
		Usage:    "Simulation strategy of enqueued calls ('avm' or 'legacy')",
		Category: AVMCategory,
	}
	WorkersFlag = &cli.IntFlag{
		Name:     "workers",
		Usage:    "Number of transactions processed concurrently (0 = one per CPU)",
		Category: AVMCategory,
	}

	// Prover settings
	ProverURLFlag = &cli.StringFlag{
		Name:     "prover.url",
		Usage:    "RPC endpoint of the proving service (empty = produce empty proofs)",
		Category: ProverCategory,
	}

	// Logging settings
	VerbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value:    3,
		Category: LoggingCategory,
	}
	LogFormatFlag = &cli.StringFlag{
		Name:     "log.format",
		Usage:    "Log format to use (terminal, logfmt or json)",
		Value:    "terminal",
		Category: LoggingCategory,
	}
	LogFileFlag = &cli.StringFlag{
		Name:     "log.file",
		Usage:    "Write logs to a file instead of stderr",
		Category: LoggingCategory,
	}
	LogRotateHoursFlag = &cli.UintFlag{
		Name:     "log.rotate.hours",
		Usage:    "Rotate the log file every given hours (0 = never)",
		Category: LoggingCategory,
	}
	LogMaxSizeFlag = &cli.IntFlag{
		Name:     "log.maxsize",
		Usage:    "Rotate the log file when it reaches the given megabytes, instead of hourly",
		Category: LoggingCategory,
	}
	LogMaxBackupsFlag = &cli.IntFlag{
		Name:     "log.maxbackups",
		Usage:    "Maximum number of size rotated log files to retain",
		Value:    10,
		Category: LoggingCategory,
	}
)

var (
	DatabaseFlags = []cli.Flag{
		DataDirFlag,
		DBEngineFlag,
		CacheFlag,
		StateCacheFlag,
	}
	ExecutionFlags = []cli.Flag{
		MaxCallDepthFlag,
		StrategyFlag,
		WorkersFlag,
		ProverURLFlag,
	}
	LoggingFlags = []cli.Flag{
		VerbosityFlag,
		LogFormatFlag,
		LogFileFlag,
		LogRotateHoursFlag,
		LogMaxSizeFlag,
		LogMaxBackupsFlag,
	}
)

// OpenDatabase opens the key-value store of the given engine in dir.
func OpenDatabase(engine, dir string, cache int, readonly bool) (ethdb.Database, error) {
	switch engine {
	case EnginePebble:
		return pebble.New(filepath.Join(dir, "pebble"), cache, 0, "avm/db/", readonly)
	case EngineLevelDB:
		return leveldb.New(filepath.Join(dir, "leveldb"), cache, 0, "avm/db/", readonly)
	case EngineBBolt:
		return bboltdb.New(dir, readonly, false)
	case EngineMemory:
		return memorydb.New(), nil
	}
	return nil, fmt.Errorf("unknown db.engine %q", engine)
}

// LogConfig are the logging options of the commands.
type LogConfig struct {
	Verbosity   int
	Format      string
	File        string `toml:",omitempty"`
	RotateHours uint   `toml:",omitempty"` // Hourly rotation period of File
	MaxSize     int    `toml:",omitempty"` // Size in megabytes rotating File, overrides RotateHours
	MaxBackups  int    `toml:",omitempty"`
}

// DefaultLogConfig logs at info level to stderr.
var DefaultLogConfig = LogConfig{
	Verbosity: 3,
	Format:    "terminal",
}

// SetLogConfig applies the logging flags set on the command line to cfg.
func SetLogConfig(ctx *cli.Context, cfg *LogConfig) {
	if ctx.IsSet(VerbosityFlag.Name) {
		cfg.Verbosity = ctx.Int(VerbosityFlag.Name)
	}
	if ctx.IsSet(LogFormatFlag.Name) {
		cfg.Format = ctx.String(LogFormatFlag.Name)
	}
	if ctx.IsSet(LogFileFlag.Name) {
		cfg.File = ctx.String(LogFileFlag.Name)
	}
	if ctx.IsSet(LogRotateHoursFlag.Name) {
		cfg.RotateHours = ctx.Uint(LogRotateHoursFlag.Name)
	}
	if ctx.IsSet(LogMaxSizeFlag.Name) {
		cfg.MaxSize = ctx.Int(LogMaxSizeFlag.Name)
	}
	if ctx.IsSet(LogMaxBackupsFlag.Name) {
		cfg.MaxBackups = ctx.Int(LogMaxBackupsFlag.Name)
	}
}

// SetupLogging installs the root log handler described by cfg. The returned
// function releases the log output.
func SetupLogging(cfg LogConfig) (func() error, error) {
	var (
		output   io.Writer = colorable.NewColorableStderr()
		closer             = func() error { return nil }
		useColor           = (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
	)
	switch {
	case cfg.File != "" && cfg.MaxSize > 0:
		w := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		output, closer, useColor = w, w.Close, false
	case cfg.File != "":
		w, err := logutil.NewFileWriter(cfg.File, 10000, cfg.RotateHours)
		if err != nil {
			return nil, err
		}
		if err := w.Start(); err != nil {
			return nil, err
		}
		output, closer, useColor = w, w.Close, false
	}
	level := log.FromLegacyLevel(cfg.Verbosity)

	var handler slog.Handler
	switch format := strings.ToLower(cfg.Format); format {
	case "json":
		handler = log.JSONHandlerWithLevel(output, level)
	case "logfmt":
		handler = log.LogfmtHandlerWithLevel(output, level)
	case "terminal", "":
		handler = log.NewTerminalHandlerWithLevel(output, level, useColor)
	default:
		closer()
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	log.SetDefault(log.NewLogger(handler))
	return closer, nil
}

// Fatalf formats a message to standard error and exits the program.
func Fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}
