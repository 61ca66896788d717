package engines

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gmaffy/search-whisperer/advocate"
)

type tandemNote struct {
	Type  string `xml:"type,attr"`
	Label string `xml:"label,attr"`
	Value string `xml:",chardata"`
}

type tandemFile struct {
	Format string `xml:"format,attr"`
	URL    string `xml:"URL,attr"`
}

type tandemTaxon struct {
	Label string       `xml:"label,attr"`
	Files []tandemFile `xml:"file"`
}

type tandemBioml struct {
	XMLName xml.Name      `xml:"bioml"`
	Label   string        `xml:"label,attr,omitempty"`
	Notes   []tandemNote  `xml:"note"`
	Taxa    []tandemTaxon `xml:"taxon"`
}

func tandemInput(label, value string) tandemNote {
	return tandemNote{Type: "input", Label: label, Value: value}
}

// tandemMods renders modifications as mass@residue lists, with [ and ]
// standing for the peptide termini.
func tandemMods(mods []Modification) (residue, proteinN, proteinC []string) {
	for _, m := range mods {
		mass := ftoa(m.Mass)
		switch m.position() {
		case PosProteinN:
			proteinN = append(proteinN, mass)
		case PosProteinC:
			proteinC = append(proteinC, mass)
		case PosPeptideN:
			if m.Residues == "" {
				residue = append(residue, mass+"@[")
			}
			for _, r := range m.Residues {
				residue = append(residue, mass+"@"+string(r))
			}
		case PosPeptideC:
			if m.Residues == "" {
				residue = append(residue, mass+"@]")
			}
			for _, r := range m.Residues {
				residue = append(residue, mass+"@"+string(r))
			}
		default:
			for _, r := range m.Residues {
				residue = append(residue, mass+"@"+string(r))
			}
		}
	}
	return residue, proteinN, proteinC
}

type xtandemBuilder struct{}

func (xtandemBuilder) Advocate() advocate.Advocate { return mustAdvocate("xtandem") }

func (xtandemBuilder) OutputFile(job Job) string {
	return filepath.Join(job.OutputDir, job.Base()+".t.xml")
}

func (b xtandemBuilder) Prepare(job Job) ([]Invocation, error) {
	if err := job.check(); err != nil {
		return nil, err
	}
	p := job.Params
	enzyme, err := LookupEnzyme(p.Enzyme)
	if err != nil {
		return nil, err
	}

	prefix := filepath.Join(job.OutputDir, job.Base()+"_tandem_")
	defaultPath := prefix + "default_input.xml"
	taxonomyPath := prefix + "taxonomy.xml"
	inputPath := prefix + "input.xml"

	precursorUnit := "Daltons"
	if p.PrecursorPPM() {
		precursorUnit = "ppm"
	}
	fixed, fixedN, fixedC := tandemMods(p.FixedModifications)
	variable, variableN, variableC := tandemMods(p.VariableModifications)

	defaults := tandemBioml{Notes: []tandemNote{
		tandemInput("spectrum, fragment monoisotopic mass error", ftoa(p.FragmentTolerance)),
		tandemInput("spectrum, fragment monoisotopic mass error units", "Daltons"),
		tandemInput("spectrum, parent monoisotopic mass error plus", ftoa(p.PrecursorTolerance)),
		tandemInput("spectrum, parent monoisotopic mass error minus", ftoa(p.PrecursorTolerance)),
		tandemInput("spectrum, parent monoisotopic mass error units", precursorUnit),
		tandemInput("spectrum, parent monoisotopic mass isotope error", "yes"),
		tandemInput("spectrum, maximum parent charge", strconv.Itoa(p.MaxCharge)),
		tandemInput("spectrum, threads", strconv.Itoa(job.threads())),
		tandemInput("protein, cleavage site", enzyme.XTandem),
		tandemInput("protein, cleavage semi", "no"),
		tandemInput("scoring, maximum missed cleavage sites", strconv.Itoa(p.MissedCleavages)),
		tandemInput("residue, modification mass", strings.Join(fixed, ",")),
		tandemInput("residue, potential modification mass", strings.Join(variable, ",")),
		tandemInput("protein, N-terminal residue modification mass", strings.Join(append(fixedN, variableN...), ",")),
		tandemInput("protein, C-terminal residue modification mass", strings.Join(append(fixedC, variableC...), ",")),
		tandemInput("output, maximum valid expectation value", ftoa(p.MaxEValue)),
		tandemInput("output, results", "all"),
		tandemInput("output, path hashing", "no"),
		tandemInput("output, sort results by", "spectrum"),
		tandemInput("refine", "no"),
	}}
	taxonomy := tandemBioml{
		Label: "x! taxon-to-file matching list",
		Taxa:  []tandemTaxon{{Label: "all", Files: []tandemFile{{Format: "peptide", URL: job.Fasta}}}},
	}
	in := tandemBioml{Notes: []tandemNote{
		tandemInput("list path, default parameters", defaultPath),
		tandemInput("list path, taxonomy information", taxonomyPath),
		tandemInput("protein, taxon", "all"),
		tandemInput("spectrum, path", job.Spectrum),
		tandemInput("output, path", b.OutputFile(job)),
	}}

	for path, doc := range map[string]tandemBioml{defaultPath: defaults, taxonomyPath: taxonomy, inputPath: in} {
		data, err := xml.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", path, err)
		}
		if err := writeFile(path, xml.Header+string(data)+"\n"); err != nil {
			return nil, err
		}
	}

	return []Invocation{{Path: job.Executable, Args: []string{inputPath}, Dir: filepath.Dir(job.Executable)}}, nil
}

func init() { register(xtandemBuilder{}) }
