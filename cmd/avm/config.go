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

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"

	"github.com/bnb-chain/avm/cmd/utils"
	"github.com/bnb-chain/avm/core"
	"github.com/bnb-chain/avm/core/vm"
)

var dumpConfigCommand = &cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Export configuration values in a TOML format",
	ArgsUsage:   "<dumpfile (optional)>",
	Description: `Export configuration values in TOML format (to stdout by default).`,
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// nodeConfig locates the databases of the engine.
type nodeConfig struct {
	DataDir       string
	DBEngine      string
	DatabaseCache int // Megabytes of database cache
	StateCache    int // Megabytes of public state read cache
}

type proverConfig struct {
	URL string `toml:",omitempty"` // Empty produces empty proofs
}

type avmConfig struct {
	Node      nodeConfig
	Executor  vm.Config
	Processor core.ProcessorConfig
	Prover    proverConfig
	Log       utils.LogConfig
}

func defaultConfig() avmConfig {
	return avmConfig{
		Node: nodeConfig{
			DataDir:       utils.DataDirFlag.Value,
			DBEngine:      utils.DBEngineFlag.Value,
			DatabaseCache: utils.CacheFlag.Value,
			StateCache:    utils.StateCacheFlag.Value,
		},
		Executor:  vm.DefaultConfig,
		Processor: core.DefaultProcessorConfig,
		Log:       utils.DefaultLogConfig,
	}
}

func loadConfig(file string, cfg *avmConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the configuration file, if any, and applies the command
// line flags on top.
func makeConfig(ctx *cli.Context) (avmConfig, error) {
	cfg := defaultConfig()
	if file := ctx.String(utils.ConfigFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if ctx.IsSet(utils.DataDirFlag.Name) {
		cfg.Node.DataDir = ctx.String(utils.DataDirFlag.Name)
	}
	if ctx.IsSet(utils.DBEngineFlag.Name) {
		cfg.Node.DBEngine = ctx.String(utils.DBEngineFlag.Name)
	}
	if ctx.IsSet(utils.CacheFlag.Name) {
		cfg.Node.DatabaseCache = ctx.Int(utils.CacheFlag.Name)
	}
	if ctx.IsSet(utils.StateCacheFlag.Name) {
		cfg.Node.StateCache = ctx.Int(utils.StateCacheFlag.Name)
	}
	if ctx.IsSet(utils.MaxCallDepthFlag.Name) {
		cfg.Executor.MaxCallDepth = ctx.Int(utils.MaxCallDepthFlag.Name)
	}
	if ctx.IsSet(utils.StrategyFlag.Name) {
		if err := cfg.Executor.Strategy.UnmarshalText([]byte(ctx.String(utils.StrategyFlag.Name))); err != nil {
			return cfg, err
		}
	}
	if ctx.IsSet(utils.WorkersFlag.Name) {
		cfg.Processor.Workers = ctx.Int(utils.WorkersFlag.Name)
	}
	if ctx.IsSet(utils.ProverURLFlag.Name) {
		cfg.Prover.URL = ctx.String(utils.ProverURLFlag.Name)
	}
	utils.SetLogConfig(ctx, &cfg.Log)
	return cfg, nil
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	_, err = dump.Write(out)
	return err
}
