package search

import (
	"context"
	"io"

	"github.com/gmaffy/search-whisperer/engines"
	"github.com/gmaffy/search-whisperer/utils"
)

// Runner starts one process and waits for it. Everything the process
// prints goes to output.
type Runner interface {
	Run(ctx context.Context, inv engines.Invocation, output io.Writer) error
}

// ExecRunner runs invocations as child processes. When Console is set the
// tool output is streamed there as well.
type ExecRunner struct {
	Console io.Writer
}

func (r ExecRunner) Run(ctx context.Context, inv engines.Invocation, output io.Writer) error {
	var writers []io.Writer
	if output != nil {
		writers = append(writers, output)
	}
	if r.Console != nil {
		writers = append(writers, r.Console)
	}
	w := io.Discard
	if len(writers) > 0 {
		w = io.MultiWriter(writers...)
	}
	return utils.RunCommand(inv.Command(ctx), w, w)
}
