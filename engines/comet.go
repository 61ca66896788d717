package engines

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gmaffy/search-whisperer/advocate"
)

const cometMaxVariableMods = 9

var cometResidueKeys = map[rune]string{
	'G': "add_G_glycine", 'A': "add_A_alanine", 'S': "add_S_serine",
	'P': "add_P_proline", 'V': "add_V_valine", 'T': "add_T_threonine",
	'C': "add_C_cysteine", 'L': "add_L_leucine", 'I': "add_I_isoleucine",
	'N': "add_N_asparagine", 'D': "add_D_aspartic_acid", 'Q': "add_Q_glutamine",
	'K': "add_K_lysine", 'E': "add_E_glutamic_acid", 'M': "add_M_methionine",
	'H': "add_H_histidine", 'F': "add_F_phenylalanine", 'R': "add_R_arginine",
	'Y': "add_Y_tyrosine", 'W': "add_W_tryptophan", 'O': "add_O_ornithine",
	'U': "add_U_selenocysteine",
	'B': "add_B_user_amino_acid", 'J': "add_J_user_amino_acid",
	'X': "add_X_user_amino_acid", 'Z': "add_Z_user_amino_acid",
}

var cometTerminalKeys = map[string]string{
	PosPeptideN: "add_Nterm_peptide",
	PosPeptideC: "add_Cterm_peptide",
	PosProteinN: "add_Nterm_protein",
	PosProteinC: "add_Cterm_protein",
}

// Comet's nc_term field of variable_modNN.
var cometTermCodes = map[string]int{
	PosProteinN: 0,
	PosProteinC: 1,
	PosPeptideN: 2,
	PosPeptideC: 3,
}

const cometEnzymeInfo = `[COMET_ENZYME_INFO]
0.  Cut_everything         0      -           -
1.  Trypsin                1      KR          P
2.  Trypsin/P              1      KR          -
3.  Lys_C                  1      K           P
4.  Lys_N                  0      K           -
5.  Arg_C                  1      R           P
6.  Asp_N                  0      D           -
7.  CNBr                   1      M           -
8.  Glu_C                  1      DE          P
9.  PepsinA                1      FL          P
10. Chymotrypsin           1      FWYL        P
`

func cometParams(job Job, enzyme Enzyme) (string, error) {
	p := job.Params
	if len(p.VariableModifications) > cometMaxVariableMods {
		return "", fmt.Errorf("%w: Comet allows at most %d variable modifications",
			ErrUnsupportedMods, cometMaxVariableMods)
	}

	fixed := map[string]float64{}
	for _, m := range p.FixedModifications {
		pos := m.position()
		if pos != PosAnywhere {
			if m.Residues != "" {
				return "", fmt.Errorf("%w: Comet has no fixed terminal modification on residues (%s)",
					ErrUnsupportedMods, m.Name)
			}
			fixed[cometTerminalKeys[pos]] += m.Mass
			continue
		}
		for _, r := range m.Residues {
			key, ok := cometResidueKeys[r]
			if !ok {
				return "", fmt.Errorf("%w: residue %c in %s", ErrUnsupportedMods, r, m.Name)
			}
			fixed[key] += m.Mass
		}
	}

	massUnits := "0"
	if p.PrecursorPPM() {
		massUnits = "2"
	}

	var sb strings.Builder
	line := func(key, value string) { fmt.Fprintf(&sb, "%s = %s\n", key, value) }
	sb.WriteString("# comet_version 2019.01 rev. 5\n")
	line("database_name", job.Fasta)
	line("decoy_search", "0")
	line("num_threads", strconv.Itoa(job.threads()))
	line("peptide_mass_tolerance", ftoa(p.PrecursorTolerance))
	line("peptide_mass_units", massUnits)
	line("mass_type_parent", "1")
	line("mass_type_fragment", "1")
	line("precursor_tolerance_type", "1")
	line("isotope_error", "1")
	line("search_enzyme_number", strconv.Itoa(enzyme.Comet))
	line("num_enzyme_termini", "2")
	line("allowed_missed_cleavage", strconv.Itoa(p.MissedCleavages))

	for i := 0; i < cometMaxVariableMods; i++ {
		value := "0.0 X 0 3 -1 0 0"
		if i < len(p.VariableModifications) {
			m := p.VariableModifications[i]
			residues, term := m.Residues, -1
			if code, ok := cometTermCodes[m.position()]; ok {
				term = code
				if residues == "" {
					residues = "n"
					if m.position() == PosPeptideC || m.position() == PosProteinC {
						residues = "c"
					}
				}
			}
			distance := "-1"
			if term >= 0 {
				distance = "0"
			} else {
				term = 0
			}
			value = fmt.Sprintf("%s %s 0 3 %s %d 0", ftoa(m.Mass), residues, distance, term)
		}
		line(fmt.Sprintf("variable_mod%02d", i+1), value)
	}
	line("max_variable_mods_in_peptide", "5")

	line("fragment_bin_tol", ftoa(p.FragmentTolerance))
	line("fragment_bin_offset", "0.0")
	line("theoretical_fragment_ions", "1")
	line("use_b_ions", "1")
	line("use_y_ions", "1")
	line("output_sqtfile", "0")
	line("output_txtfile", "0")
	line("output_pepxmlfile", "1")
	line("output_percolatorfile", "0")
	line("num_output_lines", "10")
	line("precursor_charge", fmt.Sprintf("%d %d", p.MinCharge, p.MaxCharge))
	line("max_fragment_charge", "3")
	line("peptide_length_range", fmt.Sprintf("%d %d", p.MinPeptideLength, p.MaxPeptideLength))
	line("digest_mass_range", "600.0 5000.0")
	line("clip_nterm_methionine", "0")
	line("remove_precursor_peak", "0")

	keys := make([]string, 0, len(cometTerminalKeys)+len(cometResidueKeys))
	for _, pos := range []string{PosPeptideN, PosPeptideC, PosProteinN, PosProteinC} {
		keys = append(keys, cometTerminalKeys[pos])
	}
	for _, r := range "GASPVTCLINDQKEMHFRYWOUBJXZ" {
		keys = append(keys, cometResidueKeys[r])
	}
	for _, key := range keys {
		line(key, strconv.FormatFloat(fixed[key], 'f', 6, 64))
	}

	sb.WriteString("\n")
	sb.WriteString(cometEnzymeInfo)
	return sb.String(), nil
}

type cometBuilder struct{}

func (cometBuilder) Advocate() advocate.Advocate { return mustAdvocate("comet") }

func (cometBuilder) OutputFile(job Job) string {
	return filepath.Join(job.OutputDir, job.Base()+".pep.xml")
}

func (cometBuilder) Prepare(job Job) ([]Invocation, error) {
	if err := job.check(); err != nil {
		return nil, err
	}
	enzyme, err := LookupEnzyme(job.Params.Enzyme)
	if err != nil {
		return nil, err
	}
	params, err := cometParams(job, enzyme)
	if err != nil {
		return nil, err
	}
	paramsPath := filepath.Join(job.OutputDir, job.Base()+"_comet.params")
	if err := writeFile(paramsPath, params); err != nil {
		return nil, err
	}
	return []Invocation{{
		Path: job.Executable,
		Args: []string{
			"-P" + paramsPath,
			"-D" + job.Fasta,
			"-N" + filepath.Join(job.OutputDir, job.Base()),
			job.Spectrum,
		},
		Dir: filepath.Dir(job.Executable),
	}}, nil
}

func init() { register(cometBuilder{}) }
