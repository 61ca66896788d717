package engines

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownEnzyme   = errors.New("unknown enzyme")
	ErrInvalidParams   = errors.New("invalid search parameters")
	ErrUnsupportedMods = errors.New("unsupported modification")
)

// Modification positions.
const (
	PosAnywhere = "any"
	PosPeptideN = "nterm"
	PosPeptideC = "cterm"
	PosProteinN = "protnterm"
	PosProteinC = "protcterm"
)

const (
	UnitPPM         = "ppm"
	UnitDalton      = "Da"
	DefaultDecoyTag = "_REVERSED"
)

// Modification is a mass shift on residues or a terminus.
type Modification struct {
	Name     string  `yaml:"name"`
	Mass     float64 `yaml:"mass"`
	Residues string  `yaml:"residues"`
	Position string  `yaml:"position,omitempty"`
}

// SearchParameters are shared by every engine; each builder renders them
// in its own format.
type SearchParameters struct {
	PrecursorTolerance     float64        `yaml:"precursor_tolerance"`
	PrecursorToleranceUnit string         `yaml:"precursor_tolerance_unit"`
	FragmentTolerance      float64        `yaml:"fragment_tolerance"`
	Enzyme                 string         `yaml:"enzyme"`
	MissedCleavages        int            `yaml:"missed_cleavages"`
	MinCharge              int            `yaml:"min_charge"`
	MaxCharge              int            `yaml:"max_charge"`
	MinPeptideLength       int            `yaml:"min_peptide_length"`
	MaxPeptideLength       int            `yaml:"max_peptide_length"`
	FixedModifications     []Modification `yaml:"fixed_modifications"`
	VariableModifications  []Modification `yaml:"variable_modifications"`
	DecoyTag               string         `yaml:"decoy_tag"`
	MaxEValue              float64        `yaml:"max_e_value"`
	Threads                int            `yaml:"threads"`
}

// DefaultParameters is a tryptic search with carbamidomethylated
// cysteines and oxidised methionines.
func DefaultParameters() SearchParameters {
	return SearchParameters{
		PrecursorTolerance:     10,
		PrecursorToleranceUnit: UnitPPM,
		FragmentTolerance:      0.5,
		Enzyme:                 "Trypsin",
		MissedCleavages:        2,
		MinCharge:              2,
		MaxCharge:              4,
		MinPeptideLength:       8,
		MaxPeptideLength:       30,
		FixedModifications: []Modification{
			{Name: "Carbamidomethylation", Mass: 57.021464, Residues: "C", Position: PosAnywhere},
		},
		VariableModifications: []Modification{
			{Name: "Oxidation", Mass: 15.994915, Residues: "M", Position: PosAnywhere},
		},
		DecoyTag:  DefaultDecoyTag,
		MaxEValue: 100,
		Threads:   1,
	}
}

// LoadParameters reads a YAML parameter file on top of the defaults.
func LoadParameters(path string) (SearchParameters, error) {
	params := DefaultParameters()
	data, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("reading parameters %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("parsing parameters %s: %w", path, err)
	}
	return params, params.Validate()
}

// Save writes the parameters as YAML.
func (p SearchParameters) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks ranges and that the enzyme is known.
func (p SearchParameters) Validate() error {
	if p.PrecursorTolerance <= 0 || p.FragmentTolerance <= 0 {
		return fmt.Errorf("%w: tolerances must be positive", ErrInvalidParams)
	}
	if p.PrecursorToleranceUnit != UnitPPM && p.PrecursorToleranceUnit != UnitDalton {
		return fmt.Errorf("%w: precursor tolerance unit %q, want ppm or Da", ErrInvalidParams, p.PrecursorToleranceUnit)
	}
	if p.MinCharge < 1 || p.MaxCharge < p.MinCharge {
		return fmt.Errorf("%w: charge range %d-%d", ErrInvalidParams, p.MinCharge, p.MaxCharge)
	}
	if p.MissedCleavages < 0 {
		return fmt.Errorf("%w: missed cleavages %d", ErrInvalidParams, p.MissedCleavages)
	}
	if _, err := LookupEnzyme(p.Enzyme); err != nil {
		return err
	}
	for _, m := range append(append([]Modification{}, p.FixedModifications...), p.VariableModifications...) {
		if m.Residues == "" && (m.Position == "" || m.Position == PosAnywhere) {
			return fmt.Errorf("%w: modification %s has no residues", ErrInvalidParams, m.Name)
		}
	}
	return nil
}

// PrecursorPPM reports whether the precursor tolerance is in ppm.
func (p SearchParameters) PrecursorPPM() bool {
	return p.PrecursorToleranceUnit == UnitPPM
}

func (m Modification) position() string {
	if m.Position == "" {
		return PosAnywhere
	}
	return m.Position
}

// Enzyme holds the name each engine uses for one digestion rule.
type Enzyme struct {
	Name        string
	Cleaves     string
	Restriction string
	CTerminal   bool

	OMSSA     int
	MSGF      int
	Comet     int
	Tide      string
	MyriMatch string
	XTandem   string
}

var enzymes = []Enzyme{
	{Name: "Trypsin", Cleaves: "KR", Restriction: "P", CTerminal: true,
		OMSSA: 0, MSGF: 1, Comet: 1, Tide: "trypsin", MyriMatch: "Trypsin", XTandem: "[RK]|{P}"},
	{Name: "Trypsin/P", Cleaves: "KR", CTerminal: true,
		OMSSA: 10, MSGF: 1, Comet: 2, Tide: "trypsin/p", MyriMatch: "Trypsin/P", XTandem: "[RK]|[X]"},
	{Name: "Lys-C", Cleaves: "K", Restriction: "P", CTerminal: true,
		OMSSA: 5, MSGF: 3, Comet: 3, Tide: "lys-c", MyriMatch: "Lys-C", XTandem: "[K]|{P}"},
	{Name: "Arg-C", Cleaves: "R", Restriction: "P", CTerminal: true,
		OMSSA: 1, MSGF: 6, Comet: 5, Tide: "arg-c", MyriMatch: "Arg-C", XTandem: "[R]|{P}"},
	{Name: "Asp-N", Cleaves: "D", CTerminal: false,
		OMSSA: 12, MSGF: 7, Comet: 6, Tide: "asp-n", MyriMatch: "Asp-N", XTandem: "[X]|[D]"},
	{Name: "Glu-C", Cleaves: "DE", Restriction: "P", CTerminal: true,
		OMSSA: 13, MSGF: 5, Comet: 8, Tide: "glu-c", MyriMatch: "Glu-C", XTandem: "[DE]|{P}"},
	{Name: "Chymotrypsin", Cleaves: "FWYL", Restriction: "P", CTerminal: true,
		OMSSA: 3, MSGF: 2, Comet: 10, Tide: "chymotrypsin", MyriMatch: "Chymotrypsin", XTandem: "[FWYL]|{P}"},
	{Name: "Unspecific", Cleaves: "", CTerminal: true,
		OMSSA: 17, MSGF: 0, Comet: 0, Tide: "no-enzyme", MyriMatch: "NoEnzyme", XTandem: "[X]|[X]"},
}

// LookupEnzyme finds an enzyme by name, ignoring case.
func LookupEnzyme(name string) (Enzyme, error) {
	for _, e := range enzymes {
		if strings.EqualFold(e.Name, strings.TrimSpace(name)) {
			return e, nil
		}
	}
	return Enzyme{}, fmt.Errorf("%w: %q", ErrUnknownEnzyme, name)
}
