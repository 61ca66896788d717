// Package engines turns search parameters into command lines and parameter
// files for each supported search engine.
package engines

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/gmaffy/search-whisperer/advocate"
)

var (
	ErrMissingInput        = errors.New("missing input")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrNoBuilder           = errors.New("no command builder")
)

// Invocation is one process to start.
type Invocation struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// Command builds the exec.Cmd for the invocation. Env entries are added to
// the current environment.
func (i Invocation) Command(ctx context.Context) *exec.Cmd {
	cmd := exec.CommandContext(ctx, i.Path, i.Args...)
	cmd.Dir = i.Dir
	if len(i.Env) > 0 {
		cmd.Env = append(os.Environ(), i.Env...)
	}
	return cmd
}

// Argv returns the path followed by the arguments.
func (i Invocation) Argv() []string {
	return append([]string{i.Path}, i.Args...)
}

// String renders the invocation as a shell-like line for logs.
func (i Invocation) String() string {
	parts := make([]string, 0, len(i.Args)+1)
	for _, a := range i.Argv() {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = strconv.Quote(a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Job is one engine run on one spectrum file.
type Job struct {
	Spectrum   string
	Fasta      string
	OutputDir  string
	Executable string
	Java       string
	MemoryMB   int
	Params     SearchParameters

	// Helper executables by advocate id, e.g. makeblastdb for OMSSA.
	Helpers map[string]string

	// GOOS overrides the target OS, empty for the running one.
	GOOS string
}

func (j Job) goos() string {
	if j.GOOS != "" {
		return j.GOOS
	}
	return runtime.GOOS
}

// Base is the spectrum file name without its extension.
func (j Job) Base() string {
	name := filepath.Base(j.Spectrum)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func (j Job) check() error {
	if j.Executable == "" {
		return fmt.Errorf("%w: executable", ErrMissingInput)
	}
	if j.OutputDir == "" {
		return fmt.Errorf("%w: output folder", ErrMissingInput)
	}
	for _, f := range []struct{ what, path string }{{"spectrum file", j.Spectrum}, {"FASTA file", j.Fasta}} {
		if f.path == "" {
			return fmt.Errorf("%w: %s", ErrMissingInput, f.what)
		}
		if _, err := os.Stat(f.path); err != nil {
			return fmt.Errorf("%w: %s %s", ErrMissingInput, f.what, f.path)
		}
	}
	if err := os.MkdirAll(j.OutputDir, 0755); err != nil {
		return fmt.Errorf("creating output folder: %w", err)
	}
	return j.Params.Validate()
}

func (j Job) threads() int {
	if j.Params.Threads > 0 {
		return j.Params.Threads
	}
	return 1
}

func (j Job) memoryMB() int {
	if j.MemoryMB > 0 {
		return j.MemoryMB
	}
	return 4096
}

// javaInvocation runs a jar, either with -jar or with a main class on the
// class path.
func (j Job) javaInvocation(mainClass string, args ...string) Invocation {
	java := j.Java
	if java == "" {
		java = "java"
	}
	head := []string{fmt.Sprintf("-Xmx%dM", j.memoryMB())}
	if mainClass == "" {
		head = append(head, "-jar", j.Executable)
	} else {
		head = append(head, "-cp", j.Executable, mainClass)
	}
	return Invocation{Path: java, Args: append(head, args...), Dir: filepath.Dir(j.Executable)}
}

// Builder prepares the invocations for one engine. Prepare may write
// parameter files into the job's output folder.
type Builder interface {
	Advocate() advocate.Advocate
	Prepare(job Job) ([]Invocation, error)
	OutputFile(job Job) string
}

// DatabasePreparer is implemented by engines that index the FASTA file
// once before any spectrum is searched.
type DatabasePreparer interface {
	PrepareDatabase(job Job) ([]Invocation, error)
}

var builders = map[string]Builder{}

func register(b Builder) {
	builders[b.Advocate().ID] = b
}

// For returns the builder for an engine id or name.
func For(name string) (Builder, error) {
	adv, err := advocate.Lookup(name)
	if err != nil {
		return nil, err
	}
	b, ok := builders[adv.ID]
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoBuilder, adv.Name)
	}
	return b, nil
}

func mustAdvocate(id string) advocate.Advocate {
	adv, err := advocate.Lookup(id)
	if err != nil {
		panic(err)
	}
	return adv
}

func (j Job) helper(id string) string {
	if p, ok := j.Helpers[id]; ok && p != "" {
		return p
	}
	return id
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeFile(path string, content string) error {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
