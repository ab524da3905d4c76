// Copyright 2026 EngFlow Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EngFlow/variant_analysis/internal/conditiontree"
	"github.com/EngFlow/variant_analysis/internal/formula"
	"github.com/EngFlow/variant_analysis/internal/presence"
)

func newConditionsCmd() *cobra.Command {
	var line int
	cmd := &cobra.Command{
		Use:   "conditions FILE",
		Short: "Prints the condition tree of a source file, or the presence condition of one line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			tree, err := conditiontree.Read(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if line == 0 {
				fmt.Fprint(cmd.OutOrStdout(), tree.String())
				return nil
			}
			condition, err := tree.ConditionOfLine(line)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), condition)
			return nil
		},
	}
	cmd.Flags().IntVarP(&line, "line", "l", 0, "1-based line to print the presence condition of")
	return cmd
}

func newFormulaCmd() *cobra.Command {
	var features []string
	cmd := &cobra.Command{
		Use:   "formula FORMULA",
		Short: "Parses a formula, prints it in canonical form and optionally evaluates it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := formula.Parse(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, node)
			if cmd.Flags().Changed("enable") {
				assignment := make(map[string]bool, len(features))
				for _, name := range features {
					assignment[name] = true
				}
				fmt.Fprintln(out, formula.Eval(node, assignment))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&features, "enable", nil, "enabled features to evaluate the formula under")
	return cmd
}

func newFileConditionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file-conditions FILE",
		Short: "Prints a file condition table read from JSON or Starlark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := presence.ReadFileConditionTable(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), table.Summary())
			return nil
		},
	}
}
