package engines

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gmaffy/search-whisperer/advocate"
)

const tideMaxModsPerPeptide = 3

// tideModSpecs renders modifications in crux's mods-spec syntax: C+57.02
// for static mods and 3M+15.99 for variable ones, one list per terminus.
func tideModSpecs(p SearchParameters) map[string][]string {
	specs := map[string][]string{}
	add := func(mods []Modification, variable bool) {
		for _, m := range mods {
			residues := m.Residues
			if residues == "" {
				residues = "X"
			}
			spec := residues + "+" + ftoa(m.Mass)
			if m.Mass < 0 {
				spec = residues + ftoa(m.Mass)
			}
			if variable {
				limit := tideMaxModsPerPeptide
				if m.position() != PosAnywhere {
					limit = 1
				}
				spec = strconv.Itoa(limit) + spec
			}
			specs[m.position()] = append(specs[m.position()], spec)
		}
	}
	add(p.FixedModifications, false)
	add(p.VariableModifications, true)
	return specs
}

var tideSpecFlags = []struct{ pos, flag string }{
	{PosAnywhere, "--mods-spec"},
	{PosPeptideN, "--nterm-peptide-mods-spec"},
	{PosPeptideC, "--cterm-peptide-mods-spec"},
	{PosProteinN, "--nterm-protein-mods-spec"},
	{PosProteinC, "--cterm-protein-mods-spec"},
}

type tideBuilder struct{}

func (tideBuilder) Advocate() advocate.Advocate { return mustAdvocate("tide") }

// IndexDir is where tide-index writes the peptide index for a job.
func (tideBuilder) IndexDir(job Job) string {
	return filepath.Join(job.OutputDir, "tide_index")
}

func (tideBuilder) searchDir(job Job) string {
	return filepath.Join(job.OutputDir, job.Base()+"_tide")
}

func (b tideBuilder) OutputFile(job Job) string {
	return filepath.Join(b.searchDir(job), "tide-search.target.txt")
}

// PrepareDatabase builds the tide-index invocation shared by every
// spectrum file of a search.
func (b tideBuilder) PrepareDatabase(job Job) ([]Invocation, error) {
	if job.Executable == "" {
		return nil, fmt.Errorf("%w: executable", ErrMissingInput)
	}
	if job.Fasta == "" {
		return nil, fmt.Errorf("%w: FASTA file", ErrMissingInput)
	}
	p := job.Params
	enzyme, err := LookupEnzyme(p.Enzyme)
	if err != nil {
		return nil, err
	}
	args := []string{
		"tide-index",
		"--output-dir", filepath.Join(job.OutputDir, "tide_index_log"),
		"--overwrite", "T",
		"--enzyme", enzyme.Tide,
		"--missed-cleavages", strconv.Itoa(p.MissedCleavages),
		"--min-length", strconv.Itoa(p.MinPeptideLength),
		"--max-length", strconv.Itoa(p.MaxPeptideLength),
		"--decoy-format", "none",
	}
	specs := tideModSpecs(p)
	for _, f := range tideSpecFlags {
		if len(specs[f.pos]) > 0 {
			args = append(args, f.flag, strings.Join(specs[f.pos], ","))
		}
	}
	args = append(args, job.Fasta, b.IndexDir(job))
	return []Invocation{{Path: job.Executable, Args: args, Dir: filepath.Dir(job.Executable)}}, nil
}

func (b tideBuilder) Prepare(job Job) ([]Invocation, error) {
	if err := job.check(); err != nil {
		return nil, err
	}
	p := job.Params
	windowType := "mass"
	if p.PrecursorPPM() {
		windowType = "ppm"
	}
	args := []string{
		"tide-search",
		"--output-dir", b.searchDir(job),
		"--overwrite", "T",
		"--precursor-window", ftoa(p.PrecursorTolerance),
		"--precursor-window-type", windowType,
		"--mz-bin-width", ftoa(p.FragmentTolerance),
		"--min-precursor-charge", strconv.Itoa(p.MinCharge),
		"--max-precursor-charge", strconv.Itoa(p.MaxCharge),
		"--num-threads", strconv.Itoa(job.threads()),
		"--concat", "F",
		"--file-column", "F",
		job.Spectrum,
		b.IndexDir(job),
	}
	return []Invocation{{Path: job.Executable, Args: args, Dir: filepath.Dir(job.Executable)}}, nil
}

func init() { register(tideBuilder{}) }
