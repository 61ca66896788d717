// Package toolcheck launches an installed tool once with a check argument
// and decides from its stderr whether the installation works.
package toolcheck

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gmaffy/search-whisperer/advocate"
	"golang.org/x/sync/errgroup"
)

// Check describes one health check.
type Check struct {
	Advocate   advocate.Advocate
	Executable string

	CheckArg        string
	Wrapper         string
	IgnorableStderr string
	JVM             bool

	// Java is the configured java executable, empty to discover one.
	Java string

	Timeout time.Duration
}

// Result is the outcome of a check. Output holds the captured stderr or,
// when the process could not be started, the start error.
type Result struct {
	Advocate    advocate.Advocate
	Command     []string
	Healthy     bool
	Output      string
	Remediation string
	Duration    time.Duration
}

// NewCheck fills a check from the advocate's defaults.
func NewCheck(adv advocate.Advocate, executable string, java string, timeout time.Duration) Check {
	return Check{
		Advocate:        adv,
		Executable:      executable,
		CheckArg:        adv.CheckArg,
		Wrapper:         adv.Wrapper,
		IgnorableStderr: adv.IgnorableStderr,
		JVM:             adv.JVM,
		Java:            java,
		Timeout:         timeout,
	}
}

// Command returns the argv used to check the tool.
func (p Check) Command() ([]string, error) {
	var argv []string
	switch {
	case p.JVM:
		java, err := FindJava(p.Java)
		if err != nil {
			return nil, err
		}
		argv = []string{java, "-jar", p.Executable}
	case p.Wrapper != "":
		argv = []string{p.Wrapper, p.Executable}
	default:
		argv = []string{p.Executable}
	}
	if p.CheckArg != "" {
		argv = append(argv, p.CheckArg)
	}
	return argv, nil
}

// Run launches the check once in the tool's own folder. It never retries:
// an unhealthy result is for the caller to act on.
func Run(ctx context.Context, p Check) (res Result) {
	start := time.Now()
	res = Result{Advocate: p.Advocate}
	defer func() { res.Duration = time.Since(start) }()

	if !p.Advocate.Supported(runtime.GOOS) {
		res.Output = fmt.Sprintf("%s is not available on %s", p.Advocate.Name, runtime.GOOS)
		res.Remediation = p.Advocate.Remediation
		return res
	}

	if p.Advocate.GUI {
		// Launching would open a window, so only the files are checked.
		// Java is only needed once the tool is started.
		if argv, err := p.Command(); err == nil {
			res.Command = argv
		}
		if _, err := os.Stat(p.Executable); err != nil {
			res.Output = err.Error()
			res.Remediation = p.Advocate.Remediation
			return res
		}
		res.Healthy = true
		return res
	}

	argv, err := p.Command()
	if err != nil {
		res.Output = err.Error()
		res.Remediation = JavaRemediation + " " + p.Advocate.Remediation
		return res
	}
	res.Command = argv

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = filepath.Dir(p.Executable)
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	// The exit status is not used: several tools exit non-zero after
	// printing their usage.
	runErr := cmd.Run()

	if ctx.Err() != nil {
		res.Output = fmt.Sprintf("%s did not finish: %v", p.Advocate.Name, ctx.Err())
		res.Remediation = p.Advocate.Remediation
		return res
	}
	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		res.Output = runErr.Error()
		res.Remediation = p.Advocate.Remediation
		return res
	}

	res.Output = stderr.String()
	res.Healthy = Classify(res.Output, p.IgnorableStderr)
	if !res.Healthy {
		res.Remediation = p.Advocate.Remediation
	}
	return res
}

// Classify reports whether stderr shows a working tool: it is blank once
// every line containing ignorable is dropped.
func Classify(stderr string, ignorable string) bool {
	scanner := bufio.NewScanner(strings.NewReader(stderr))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if ignorable != "" && strings.Contains(line, ignorable) {
			continue
		}
		return false
	}
	return true
}

// CheckAll runs the checks with at most jobs at a time. Results are in
// the order of checks.
func CheckAll(ctx context.Context, checks []Check, jobs int) []Result {
	results := make([]Result, len(checks))
	if jobs < 1 {
		jobs = 1
	}

	var g errgroup.Group
	g.SetLimit(jobs)
	for i, p := range checks {
		g.Go(func() error {
			results[i] = Run(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
