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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/bnb-chain/avm/cmd/utils"
	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/core/vm"
)

var (
	disasmCommand = &cli.Command{
		Action:    disasm,
		Name:      "disasm",
		Usage:     "Disassemble AVM bytecode",
		ArgsUsage: "<hex bytecode>",
	}
	inspectCommand = &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the state of the data directory",
		Subcommands: []*cli.Command{
			{
				Action:    inspectNullifier,
				Name:      "nullifier",
				Usage:     "Print the membership witness of a siloed nullifier",
				ArgsUsage: "<nullifier>",
			},
			{
				Action:    inspectStorage,
				Name:      "storage",
				Usage:     "Print the latest value of a public storage slot",
				ArgsUsage: "<contract> <slot>",
			},
		},
	}
)

// printDisassembly renders a table with one row per instruction: its byte
// offset, program counter, opcode and operands.
func printDisassembly(w io.Writer, code []byte) error {
	program, err := vm.DecodeProgram(code)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Offset", "PC", "Opcode", "Operands"})
	table.SetAutoWrapText(false)

	offset := 0
	for pc, inst := range program {
		table.Append([]string{strconv.Itoa(offset), strconv.Itoa(pc), inst.Opcode().String(), inst.String()})
		offset += len(vm.EncodeInstruction(inst))
	}
	table.Render()
	return nil
}

func disasm(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		utils.Fatalf("This command requires the bytecode as the only argument.")
	}
	code, err := hexutil.Decode(ctx.Args().First())
	if err != nil {
		return errors.Wrap(err, "invalid bytecode")
	}
	return printDisassembly(os.Stdout, code)
}

func inspectNullifier(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		utils.Fatalf("This command requires a nullifier as the only argument.")
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	s, err := openStores(&cfg.Node, true)
	if err != nil {
		return err
	}
	defer s.Close()

	nullifier := types.HexToFr(ctx.Args().First())
	witness, err := s.commitments.GetNullifierMembershipWitnessAtLatestBlock(ctx.Context, nullifier)
	if err != nil {
		return err
	}
	if witness == nil {
		return fmt.Errorf("nullifier %s not found", nullifier)
	}
	return json.NewEncoder(os.Stdout).Encode(witness)
}

func inspectStorage(ctx *cli.Context) error {
	if ctx.Args().Len() != 2 {
		utils.Fatalf("This command requires a contract address and a slot.")
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	s, err := openStores(&cfg.Node, true)
	if err != nil {
		return err
	}
	defer s.Close()

	var (
		contract = types.HexToAztecAddress(ctx.Args().Get(0))
		slot     = types.HexToFr(ctx.Args().Get(1))
		snapshot = s.world.Snapshot()
	)
	value, err := s.world.StorageReadAt(snapshot, contract, slot)
	if err != nil {
		return err
	}
	fmt.Printf("%s (version %d, root %s)\n", value, snapshot.Version, snapshot.Root)
	return nil
}
