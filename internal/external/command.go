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

// Package external runs variant composers and analyzers as subprocesses.
// Commands are given as argument lists whose elements may contain
// {placeholders}, which are replaced before the command is started.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// maxStderr limits how much of a failed command's stderr is kept in its
// error.
const maxStderr = 4096

var ErrEmptyCommand = errors.New("command is empty")

// Command is a subprocess invocation template.
type Command struct {
	Args []string
	// Timeout bounds each run. Zero means no limit.
	Timeout time.Duration
}

// expand replaces each {name} in the arguments by values[name].
func (c Command) expand(values map[string]string) []string {
	pairs := make([]string, 0, 2*len(values))
	for name, value := range values {
		pairs = append(pairs, "{"+name+"}", value)
	}
	replacer := strings.NewReplacer(pairs...)
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		args[i] = replacer.Replace(arg)
	}
	return args
}

// run starts the command in dir and returns its stdout. If ctx ends first the
// process is killed and the context's error is returned.
func (c Command) run(ctx context.Context, dir string, values map[string]string) ([]byte, error) {
	if len(c.Args) == 0 {
		return nil, ErrEmptyCommand
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := c.expand(values)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debugf("Running %s in %s", strings.Join(args, " "), dir)
	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s interrupted: %w", args[0], ctxErr)
	}
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", args[0], err, tail(stderr.Bytes()))
	}
	if stderr.Len() > 0 {
		log.Debugf("%s stderr: %s", args[0], tail(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

func tail(output []byte) string {
	output = bytes.TrimSpace(output)
	if len(output) > maxStderr {
		output = output[len(output)-maxStderr:]
	}
	return string(output)
}
