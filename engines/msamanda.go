package engines

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gmaffy/search-whisperer/advocate"
)

type amandaTolerance struct {
	Unit  string `xml:"unit,attr"`
	Value string `xml:",chardata"`
}

type amandaMod struct {
	Fix       int    `xml:"fix,attr"`
	NTerm     int    `xml:"nterm,attr"`
	CTerm     int    `xml:"cterm,attr"`
	Protein   int    `xml:"protein,attr"`
	DeltaMass string `xml:"delta_mass,attr"`
	Value     string `xml:",chardata"`
}

type amandaEnzyme struct {
	Specificity string `xml:"specificity,attr"`
	Name        string `xml:",chardata"`
}

type amandaSearchSettings struct {
	Enzyme          amandaEnzyme    `xml:"enzymes>enzyme"`
	MissedCleavages int             `xml:"missed_cleavages"`
	Modifications   []amandaMod     `xml:"modifications>modification"`
	Instrument      string          `xml:"instrument"`
	MS1Tolerance    amandaTolerance `xml:"ms1_tol"`
	MS2Tolerance    amandaTolerance `xml:"ms2_tol"`
	MaxRank         int             `xml:"max_rank"`
	GenerateDecoy   bool            `xml:"generate_decoy"`
	Deisotoping     bool            `xml:"PerformDeisotoping"`
	MinPeptideLen   int             `xml:"MinimumPepLength"`
}

type amandaBasicSettings struct {
	Monoisotopic      bool   `xml:"monoisotopic"`
	ConsideredCharges string `xml:"considered_charges"`
	DataFolder        string `xml:"data_folder"`
}

type amandaSettings struct {
	XMLName xml.Name             `xml:"settings"`
	Search  amandaSearchSettings `xml:"search_settings"`
	Basic   amandaBasicSettings  `xml:"basic_settings"`
}

func amandaModifications(p SearchParameters) []amandaMod {
	var out []amandaMod
	add := func(mods []Modification, fix int) {
		for _, m := range mods {
			mod := amandaMod{Fix: fix, DeltaMass: ftoa(m.Mass)}
			switch m.position() {
			case PosPeptideN:
				mod.NTerm = 1
			case PosPeptideC:
				mod.CTerm = 1
			case PosProteinN:
				mod.NTerm, mod.Protein = 1, 1
			case PosProteinC:
				mod.CTerm, mod.Protein = 1, 1
			}
			mod.Value = fmt.Sprintf("%s(%s)", m.Name, m.Residues)
			out = append(out, mod)
		}
	}
	add(p.FixedModifications, 1)
	add(p.VariableModifications, 0)
	return out
}

func amandaCharges(minCharge, maxCharge int) string {
	charges := make([]string, 0, maxCharge-minCharge+1)
	for z := minCharge; z <= maxCharge; z++ {
		charges = append(charges, "+"+strconv.Itoa(z))
	}
	return strings.Join(charges, ", ")
}

type msamandaBuilder struct{}

func (msamandaBuilder) Advocate() advocate.Advocate { return mustAdvocate("msamanda") }

func (msamandaBuilder) OutputFile(job Job) string {
	return filepath.Join(job.OutputDir, job.Base()+".ms-amanda.mzid")
}

func (b msamandaBuilder) Prepare(job Job) ([]Invocation, error) {
	if err := job.check(); err != nil {
		return nil, err
	}
	p := job.Params
	enzyme, err := LookupEnzyme(p.Enzyme)
	if err != nil {
		return nil, err
	}

	precursorUnit := "Da"
	if p.PrecursorPPM() {
		precursorUnit = "ppm"
	}
	settings := amandaSettings{
		Search: amandaSearchSettings{
			Enzyme:          amandaEnzyme{Specificity: "FULL", Name: enzyme.Name},
			MissedCleavages: p.MissedCleavages,
			Modifications:   amandaModifications(p),
			Instrument:      "b, y",
			MS1Tolerance:    amandaTolerance{Unit: precursorUnit, Value: ftoa(p.PrecursorTolerance)},
			MS2Tolerance:    amandaTolerance{Unit: "Da", Value: ftoa(p.FragmentTolerance)},
			MaxRank:         1,
			Deisotoping:     true,
			MinPeptideLen:   p.MinPeptideLength,
		},
		Basic: amandaBasicSettings{
			Monoisotopic:      true,
			ConsideredCharges: amandaCharges(p.MinCharge, p.MaxCharge),
			DataFolder:        job.OutputDir,
		},
	}
	data, err := xml.MarshalIndent(settings, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding MS Amanda settings: %w", err)
	}
	settingsPath := filepath.Join(job.OutputDir, job.Base()+"_msamanda_settings.xml")
	if err := writeFile(settingsPath, xml.Header+string(data)+"\n"); err != nil {
		return nil, err
	}

	return []Invocation{{
		Path: job.Executable,
		Args: []string{
			"-s", job.Spectrum,
			"-d", job.Fasta,
			"-e", settingsPath,
			"-f", "2",
			"-o", b.OutputFile(job),
		},
		Dir: filepath.Dir(job.Executable),
	}}, nil
}

func init() { register(msamandaBuilder{}) }
