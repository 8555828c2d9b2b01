/*
 * Copyright 2022 The Gremlins Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/mutmatrix/mutmatrix/internal/minion"
	"github.com/mutmatrix/mutmatrix/internal/protocol"
)

const minionCommandName = "__minion"

// minionArgv builds the argv the Worker Controller uses to re-invoke this
// same binary as a minion subprocess (§4.4/§4.5): itself, plus the hidden
// subcommand name.
func minionArgv() []string {
	return []string{os.Args[0], minionCommandName}
}

type minionCmd struct {
	cmd *cobra.Command
}

// newMinionCmd builds the hidden subcommand a spawned minion subprocess
// runs: it reads the work-unit Header from stdin, executes the per-mutant
// loop, and writes framed results to stdout. It is never invoked directly
// by a user.
func newMinionCmd() *minionCmd {
	cmd := &cobra.Command{
		Use:    minionCommandName,
		Hidden: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			h, err := minion.ReadHeader(os.Stdin)
			if err != nil {
				return err
			}

			w := minion.NewWorker(protocol.NewWriter(os.Stdout))

			return w.Run(context.Background(), h)
		},
	}

	return &minionCmd{cmd: cmd}
}
