package engines

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MSConvert builds the msconvert call that turns a raw file into a
// centroided MGF in outDir, and returns the MGF path it will write.
func MSConvert(executable, raw, outDir string) (Invocation, string, error) {
	if executable == "" {
		return Invocation{}, "", fmt.Errorf("%w: msconvert executable", ErrMissingInput)
	}
	if _, err := os.Stat(raw); err != nil {
		return Invocation{}, "", fmt.Errorf("%w: raw file %s", ErrMissingInput, raw)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return Invocation{}, "", fmt.Errorf("creating output folder: %w", err)
	}
	name := filepath.Base(raw)
	mgfPath := filepath.Join(outDir, strings.TrimSuffix(name, filepath.Ext(name))+".mgf")
	return Invocation{
		Path: executable,
		Args: []string{raw, "--mgf", "--filter", "peakPicking true 1-", "-o", outDir},
		Dir:  filepath.Dir(executable),
	}, mgfPath, nil
}

const peptideShakerCLI = "eu.isas.peptideshaker.cmd.PeptideShakerCLI"

// PeptideShakerJob hands identification files over to PeptideShaker.
type PeptideShakerJob struct {
	Jar                 string
	Java                string
	MemoryMB            int
	Reference           string
	Fasta               string
	IdentificationFiles []string
	SpectrumFiles       []string
	Output              string
}

// Invocation builds the PeptideShakerCLI call.
func (p PeptideShakerJob) Invocation() (Invocation, error) {
	switch {
	case p.Jar == "":
		return Invocation{}, fmt.Errorf("%w: PeptideShaker jar", ErrMissingInput)
	case p.Fasta == "":
		return Invocation{}, fmt.Errorf("%w: FASTA file", ErrMissingInput)
	case len(p.IdentificationFiles) == 0:
		return Invocation{}, fmt.Errorf("%w: identification files", ErrMissingInput)
	case len(p.SpectrumFiles) == 0:
		return Invocation{}, fmt.Errorf("%w: spectrum files", ErrMissingInput)
	case p.Output == "":
		return Invocation{}, fmt.Errorf("%w: output file", ErrMissingInput)
	}
	reference := p.Reference
	if reference == "" {
		reference = "search-whisperer"
	}
	job := Job{Executable: p.Jar, Java: p.Java, MemoryMB: p.MemoryMB}
	return job.javaInvocation(peptideShakerCLI,
		"-reference", reference,
		"-fasta_file", p.Fasta,
		"-identification_files", strings.Join(p.IdentificationFiles, ","),
		"-spectrum_files", strings.Join(p.SpectrumFiles, ","),
		"-out", p.Output,
	), nil
}
