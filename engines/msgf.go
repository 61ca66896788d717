package engines

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gmaffy/search-whisperer/advocate"
)

var msgfPositions = map[string]string{
	PosAnywhere: "any",
	PosPeptideN: "N-term",
	PosPeptideC: "C-term",
	PosProteinN: "Prot-N-term",
	PosProteinC: "Prot-C-term",
}

// msgfModsFile renders the MS-GF+ modification file. Residue-less terminal
// modifications use * as the residue.
func msgfModsFile(p SearchParameters) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "NumMods=%d\n", len(p.VariableModifications))
	write := func(mods []Modification, kind string) {
		for _, m := range mods {
			residues := m.Residues
			if residues == "" {
				residues = "*"
			}
			name := strings.ReplaceAll(m.Name, ",", " ")
			fmt.Fprintf(&sb, "%s,%s,%s,%s,%s\n", ftoa(m.Mass), residues, kind, msgfPositions[m.position()], name)
		}
	}
	write(p.FixedModifications, "fix")
	write(p.VariableModifications, "opt")
	return sb.String()
}

func msgfTolerance(value float64, unit string) string {
	if unit == UnitPPM {
		return ftoa(value) + "ppm"
	}
	return ftoa(value) + "Da"
}

type msgfBuilder struct{}

func (msgfBuilder) Advocate() advocate.Advocate { return mustAdvocate("msgf") }

func (msgfBuilder) OutputFile(job Job) string {
	return filepath.Join(job.OutputDir, job.Base()+".mzid")
}

func (b msgfBuilder) Prepare(job Job) ([]Invocation, error) {
	if err := job.check(); err != nil {
		return nil, err
	}
	p := job.Params
	enzyme, err := LookupEnzyme(p.Enzyme)
	if err != nil {
		return nil, err
	}
	modsPath := filepath.Join(job.OutputDir, job.Base()+"_msgf_mods.txt")
	if err := writeFile(modsPath, msgfModsFile(p)); err != nil {
		return nil, err
	}

	inv := job.javaInvocation("",
		"-s", job.Spectrum,
		"-d", job.Fasta,
		"-o", b.OutputFile(job),
		"-t", msgfTolerance(p.PrecursorTolerance, p.PrecursorToleranceUnit),
		"-e", strconv.Itoa(enzyme.MSGF),
		"-tda", "0",
		"-minCharge", strconv.Itoa(p.MinCharge),
		"-maxCharge", strconv.Itoa(p.MaxCharge),
		"-thread", strconv.Itoa(job.threads()),
		"-mod", modsPath,
		"-ntt", "2",
		"-maxMissedCleavages", strconv.Itoa(p.MissedCleavages),
		"-minLength", strconv.Itoa(p.MinPeptideLength),
		"-maxLength", strconv.Itoa(p.MaxPeptideLength),
	)
	return []Invocation{inv}, nil
}

func init() { register(msgfBuilder{}) }
