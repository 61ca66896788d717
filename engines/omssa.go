package engines

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gmaffy/search-whisperer/advocate"
)

// Ids OMSSA reserves for user defined modifications.
const (
	omssaFirstUserMod = 119
	omssaLastUserMod  = 128
)

type omssaKnownMod struct {
	name    string
	residue byte
	pos     string
	id      int
}

// Subset of OMSSA's mods.xml.
var omssaKnown = []omssaKnownMod{
	{"methyl", 'K', PosAnywhere, 0},
	{"oxidation", 'M', PosAnywhere, 1},
	{"carboxymethyl", 'C', PosAnywhere, 2},
	{"carbamidomethyl", 'C', PosAnywhere, 3},
	{"deamidation", 'N', PosAnywhere, 4},
	{"deamidation", 'Q', PosAnywhere, 4},
	{"propionamide", 'C', PosAnywhere, 5},
	{"phospho", 'S', PosAnywhere, 6},
	{"phospho", 'T', PosAnywhere, 7},
	{"phospho", 'Y', PosAnywhere, 8},
	{"acetyl", 0, PosProteinN, 10},
}

type omssaValue struct {
	Value string `xml:"value,attr"`
	ID    int    `xml:",chardata"`
}

type omssaModSpec struct {
	Mod         omssaValue `xml:"MSModSpec_mod>MSMod"`
	Type        omssaValue `xml:"MSModSpec_type>MSModType"`
	Name        string     `xml:"MSModSpec_name"`
	MonoMass    string     `xml:"MSModSpec_monomass"`
	AverageMass string     `xml:"MSModSpec_averagemass"`
	N15Mass     string     `xml:"MSModSpec_n15mass"`
	Residues    []string   `xml:"MSModSpec_residues>MSModSpec_residues_E,omitempty"`
}

type omssaModSpecSet struct {
	XMLName xml.Name       `xml:"MSModSpecSet"`
	Xmlns   string         `xml:"xmlns,attr"`
	Specs   []omssaModSpec `xml:"MSModSpec"`
}

// omssaModType maps a position to OMSSA's MSModType, with and without
// residue specificity.
func omssaModType(pos string, hasResidues bool) (int, string) {
	switch pos {
	case PosProteinN:
		if hasResidues {
			return 2, "modnaa"
		}
		return 1, "modn"
	case PosProteinC:
		if hasResidues {
			return 4, "modcaa"
		}
		return 3, "modc"
	case PosPeptideN:
		if hasResidues {
			return 6, "modnpaa"
		}
		return 5, "modnp"
	case PosPeptideC:
		if hasResidues {
			return 8, "modcpaa"
		}
		return 7, "modcp"
	default:
		return 0, "modaa"
	}
}

func omssaLookup(m Modification, residue byte) (int, bool) {
	name := strings.ToLower(strings.ReplaceAll(m.Name, " ", ""))
	for _, k := range omssaKnown {
		if k.residue == residue && k.pos == m.position() && strings.HasPrefix(name, k.name) {
			return k.id, true
		}
	}
	return 0, false
}

// omssaMods maps modifications to OMSSA ids. Residues OMSSA does not know
// become user modifications.
func omssaMods(fixed, variable []Modification) (fixedIDs, variableIDs []string, user []omssaModSpec, err error) {
	next := omssaFirstUserMod
	convert := func(mods []Modification) ([]string, error) {
		var ids []string
		for _, m := range mods {
			var unknown []string
			if m.Residues == "" {
				if id, ok := omssaLookup(m, 0); ok {
					ids = append(ids, strconv.Itoa(id))
					continue
				}
			}
			for i := 0; i < len(m.Residues); i++ {
				if id, ok := omssaLookup(m, m.Residues[i]); ok {
					ids = append(ids, strconv.Itoa(id))
				} else {
					unknown = append(unknown, string(m.Residues[i]))
				}
			}
			if len(unknown) == 0 && m.Residues != "" {
				continue
			}
			if next > omssaLastUserMod {
				return nil, fmt.Errorf("%w: OMSSA allows at most %d user modifications",
					ErrUnsupportedMods, omssaLastUserMod-omssaFirstUserMod+1)
			}
			typeID, typeName := omssaModType(m.position(), len(unknown) > 0)
			user = append(user, omssaModSpec{
				Mod:         omssaValue{Value: fmt.Sprintf("usermod%d", next-omssaFirstUserMod+1), ID: next},
				Type:        omssaValue{Value: typeName, ID: typeID},
				Name:        m.Name,
				MonoMass:    ftoa(m.Mass),
				AverageMass: ftoa(m.Mass),
				N15Mass:     "0",
				Residues:    unknown,
			})
			ids = append(ids, strconv.Itoa(next))
			next++
		}
		return ids, nil
	}

	if fixedIDs, err = convert(fixed); err != nil {
		return nil, nil, nil, err
	}
	if variableIDs, err = convert(variable); err != nil {
		return nil, nil, nil, err
	}
	return fixedIDs, variableIDs, user, nil
}

type omssaBuilder struct{}

func (omssaBuilder) Advocate() advocate.Advocate { return mustAdvocate("omssa") }

func (omssaBuilder) OutputFile(job Job) string {
	return filepath.Join(job.OutputDir, job.Base()+".omx")
}

// PrepareDatabase formats the FASTA file with makeblastdb unless the blast
// index files are already next to it.
func (omssaBuilder) PrepareDatabase(job Job) ([]Invocation, error) {
	if job.Fasta == "" {
		return nil, fmt.Errorf("%w: FASTA file", ErrMissingInput)
	}
	formatted := true
	for _, ext := range []string{".phr", ".pin", ".psq"} {
		if _, err := os.Stat(job.Fasta + ext); err != nil {
			formatted = false
			break
		}
	}
	if formatted {
		return nil, nil
	}
	return []Invocation{{
		Path: job.helper("makeblastdb"),
		Args: []string{"-in", job.Fasta, "-dbtype", "prot"},
		Dir:  filepath.Dir(job.Fasta),
	}}, nil
}

func (b omssaBuilder) Prepare(job Job) ([]Invocation, error) {
	if err := job.check(); err != nil {
		return nil, err
	}
	p := job.Params
	enzyme, err := LookupEnzyme(p.Enzyme)
	if err != nil {
		return nil, err
	}
	fixed, variable, user, err := omssaMods(p.FixedModifications, p.VariableModifications)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-d", job.Fasta,
		"-fm", job.Spectrum,
		"-ox", b.OutputFile(job),
		"-oc", b.OutputFile(job)+".csv",
		"-te", ftoa(p.PrecursorTolerance),
	}
	if p.PrecursorPPM() {
		args = append(args, "-teppm")
	}
	args = append(args,
		"-to", ftoa(p.FragmentTolerance),
		"-v", strconv.Itoa(p.MissedCleavages),
		"-zl", strconv.Itoa(p.MinCharge),
		"-zh", strconv.Itoa(p.MaxCharge),
		"-e", strconv.Itoa(enzyme.OMSSA),
		"-nt", strconv.Itoa(job.threads()),
		"-he", ftoa(p.MaxEValue),
	)
	if len(fixed) > 0 {
		args = append(args, "-mf", strings.Join(fixed, ","))
	}
	if len(variable) > 0 {
		args = append(args, "-mv", strings.Join(variable, ","))
	}
	if len(user) > 0 {
		userFile := filepath.Join(job.OutputDir, job.Base()+"_omssa_usermods.xml")
		data, err := xml.MarshalIndent(omssaModSpecSet{Xmlns: "http://www.ncbi.nlm.nih.gov", Specs: user}, "", "  ")
		if err != nil {
			return nil, err
		}
		if err := writeFile(userFile, xml.Header+string(data)+"\n"); err != nil {
			return nil, err
		}
		args = append(args, "-mux", userFile)
	}

	return []Invocation{{Path: job.Executable, Args: args, Dir: filepath.Dir(job.Executable)}}, nil
}

func init() { register(omssaBuilder{}) }
