package engines

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gmaffy/search-whisperer/advocate"
)

// myrimatchMotif renders a modification as a MyriMatch motif: residues in
// brackets, with ( and ) for the termini.
func myrimatchMotif(m Modification) string {
	residues := m.Residues
	if residues == "" {
		residues = "X"
	}
	motif := "[" + residues + "]"
	switch m.position() {
	case PosPeptideN, PosProteinN:
		motif = "(" + motif
	case PosPeptideC, PosProteinC:
		motif = motif + ")"
	}
	return motif
}

// myrimatchStatic renders the StaticMods pairs. Peptide termini are the
// residues ( and ); MyriMatch has no other fixed terminal modification.
func myrimatchStatic(mods []Modification) ([]string, error) {
	var static []string
	for _, m := range mods {
		pos := m.position()
		if pos == PosAnywhere {
			for _, r := range m.Residues {
				static = append(static, string(r), ftoa(m.Mass))
			}
			continue
		}
		if m.Residues != "" || (pos != PosPeptideN && pos != PosPeptideC) {
			return nil, fmt.Errorf("%w: MyriMatch has no fixed %s modification on %q (%s)",
				ErrUnsupportedMods, pos, m.Residues, m.Name)
		}
		terminus := "("
		if pos == PosPeptideC {
			terminus = ")"
		}
		static = append(static, terminus, ftoa(m.Mass))
	}
	return static, nil
}

func myrimatchConfig(p SearchParameters, enzyme Enzyme, threads int) (string, error) {
	static, err := myrimatchStatic(p.FixedModifications)
	if err != nil {
		return "", err
	}
	var dynamic []string
	symbols := "*^@%!&"
	for i, m := range p.VariableModifications {
		symbol := string(symbols[i%len(symbols)])
		dynamic = append(dynamic, myrimatchMotif(m), symbol, ftoa(m.Mass))
	}
	precursorUnit := "daltons"
	if p.PrecursorPPM() {
		precursorUnit = "ppm"
	}

	var sb strings.Builder
	line := func(key, value string) { fmt.Fprintf(&sb, "%s = %s\n", key, value) }
	line("CleavageRules", enzyme.MyriMatch)
	line("MaxMissedCleavages", strconv.Itoa(p.MissedCleavages))
	line("MinTerminiCleavages", "2")
	line("MonoPrecursorMzTolerance", ftoa(p.PrecursorTolerance)+" "+precursorUnit)
	line("FragmentMzTolerance", ftoa(p.FragmentTolerance)+" daltons")
	line("NumChargeStates", strconv.Itoa(p.MaxCharge))
	line("MinPeptideLength", strconv.Itoa(p.MinPeptideLength))
	line("MaxPeptideLength", strconv.Itoa(p.MaxPeptideLength))
	line("StaticMods", strconv.Quote(strings.Join(static, " ")))
	line("DynamicMods", strconv.Quote(strings.Join(dynamic, " ")))
	line("DecoyPrefix", strconv.Quote(""))
	line("OutputFormat", "mzIdentML")
	line("OutputSuffix", ".myrimatch")
	line("NumBatches", strconv.Itoa(threads*10))
	return sb.String(), nil
}

type myrimatchBuilder struct{}

func (myrimatchBuilder) Advocate() advocate.Advocate { return mustAdvocate("myrimatch") }

func (myrimatchBuilder) OutputFile(job Job) string {
	return filepath.Join(job.OutputDir, job.Base()+".myrimatch.mzid")
}

func (myrimatchBuilder) Prepare(job Job) ([]Invocation, error) {
	if err := job.check(); err != nil {
		return nil, err
	}
	enzyme, err := LookupEnzyme(job.Params.Enzyme)
	if err != nil {
		return nil, err
	}
	cfg, err := myrimatchConfig(job.Params, enzyme, job.threads())
	if err != nil {
		return nil, err
	}
	cfgPath := filepath.Join(job.OutputDir, job.Base()+"_myrimatch.cfg")
	if err := writeFile(cfgPath, cfg); err != nil {
		return nil, err
	}
	return []Invocation{{
		Path: job.Executable,
		Args: []string{
			"-cfg", cfgPath,
			"-workdir", job.OutputDir,
			"-cpus", strconv.Itoa(job.threads()),
			"-ProteinDatabase", job.Fasta,
			job.Spectrum,
		},
		Dir: filepath.Dir(job.Executable),
	}}, nil
}

func init() { register(myrimatchBuilder{}) }
