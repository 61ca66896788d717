package engines

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gmaffy/search-whisperer/advocate"
	"github.com/gmaffy/search-whisperer/mgf"
)

func andromedaModNames(mods []Modification) string {
	names := make([]string, 0, len(mods))
	for _, m := range mods {
		if m.Residues == "" {
			names = append(names, m.Name)
		} else {
			names = append(names, fmt.Sprintf("%s (%s)", m.Name, m.Residues))
		}
	}
	return strings.Join(names, ",")
}

type andromedaBuilder struct{}

func (andromedaBuilder) Advocate() advocate.Advocate { return mustAdvocate("andromeda") }

func (andromedaBuilder) OutputFile(job Job) string {
	return filepath.Join(job.OutputDir, job.Base()+".res")
}

// Prepare converts the spectra to an APL peak list and writes the apar
// parameter file next to it. Andromeda only runs on Windows.
func (b andromedaBuilder) Prepare(job Job) ([]Invocation, error) {
	if goos := job.goos(); goos != "windows" {
		return nil, fmt.Errorf("%w: Andromeda runs on Windows only, not %s", ErrUnsupportedPlatform, goos)
	}
	if err := job.check(); err != nil {
		return nil, err
	}
	p := job.Params
	enzyme, err := LookupEnzyme(p.Enzyme)
	if err != nil {
		return nil, err
	}

	aplPath := filepath.Join(job.OutputDir, job.Base()+".apl")
	if _, err := mgf.WriteAPL(job.Spectrum, aplPath); err != nil {
		return nil, fmt.Errorf("converting %s to APL: %w", job.Spectrum, err)
	}

	precursorUnit := "Dalton"
	if p.PrecursorPPM() {
		precursorUnit = "Ppm"
	}
	enzymeMode := "Specific"
	if enzyme.Cleaves == "" {
		enzymeMode = "Unspecific"
	}

	var sb strings.Builder
	line := func(key, value string) { fmt.Fprintf(&sb, "%s=%s\n", key, value) }
	line("enzymes", enzyme.Name)
	line("enzyme mode", enzymeMode)
	line("fixed modifications", andromedaModNames(p.FixedModifications))
	line("variable modifications", andromedaModNames(p.VariableModifications))
	line("label modifications", "")
	line("has additional variable modifications", "False")
	line("peptide mass tolerance", ftoa(p.PrecursorTolerance))
	line("peptide mass tolerance Unit", precursorUnit)
	line("fragment mass tolerance", ftoa(p.FragmentTolerance))
	line("fragment mass tolerance Unit", "Dalton")
	line("max combinations", "250")
	line("max peptide mass", "4600")
	line("max number of modifications", "5")
	line("max missed cleavages", strconv.Itoa(p.MissedCleavages))
	line("min peptide length", strconv.Itoa(p.MinPeptideLength))
	line("max peptide length", strconv.Itoa(p.MaxPeptideLength))
	line("decoy mode", "None")
	line("fragment type", "CID")
	line("include contaminants", "False")
	line("top peaks", "8")
	line("top peaks window", "100")
	line("peak list file", aplPath)
	line("search output file", b.OutputFile(job))
	line("fasta files", job.Fasta)

	aparPath := filepath.Join(job.OutputDir, job.Base()+"_andromeda.apar")
	if err := writeFile(aparPath, sb.String()); err != nil {
		return nil, err
	}
	return []Invocation{{Path: job.Executable, Args: []string{aparPath}, Dir: filepath.Dir(job.Executable)}}, nil
}

func init() { register(andromedaBuilder{}) }
