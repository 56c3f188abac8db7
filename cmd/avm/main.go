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

// avm is the command line interface of the public execution engine.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"

	"github.com/bnb-chain/avm/cmd/utils"
)

var configFlags = append(append(append(
	[]cli.Flag{utils.ConfigFileFlag},
	utils.DatabaseFlags...),
	utils.ExecutionFlags...),
	utils.LoggingFlags...)

var app = newApp()

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "avm"
	app.Usage = "the public execution engine of the rollup sequencer"
	app.Flags = configFlags
	app.Commands = []*cli.Command{
		runCommand,
		deployCommand,
		disasmCommand,
		inspectCommand,
		dumpConfigCommand,
	}
	var closeLog func() error
	app.Before = func(ctx *cli.Context) error {
		cfg, err := makeConfig(ctx)
		if err != nil {
			return err
		}
		closeLog, err = utils.SetupLogging(cfg.Log)
		return err
	}
	app.After = func(ctx *cli.Context) error {
		if closeLog != nil {
			return closeLog()
		}
		return nil
	}
	return app
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
