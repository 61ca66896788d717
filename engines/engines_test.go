package engines

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gmaffy/search-whisperer/advocate"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMGF = `BEGIN IONS
TITLE=scan=1
PEPMASS=500.25 1000
CHARGE=2+ and 3+
101.1 10
202.2 20
END IONS
`

// newJob lays out a spectrum and a FASTA file in a temporary folder.
func newJob(t *testing.T, exe string) Job {
	t.Helper()
	dir := t.TempDir()
	spectrum := filepath.Join(dir, "sample.mgf")
	fasta := filepath.Join(dir, "db.fasta")
	require.NoError(t, os.WriteFile(spectrum, []byte(testMGF), 0644))
	require.NoError(t, os.WriteFile(fasta, []byte(">P1\nPEPTIDEK\n"), 0644))
	return Job{
		Spectrum:   spectrum,
		Fasta:      fasta,
		OutputDir:  filepath.Join(dir, "out"),
		Executable: filepath.Join(dir, "bin", exe),
		Java:       "/usr/bin/java",
		MemoryMB:   2048,
		Params:     DefaultParameters(),
		GOOS:       "linux",
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestForEveryEngine(t *testing.T) {
	for _, adv := range advocate.Engines() {
		b, err := For(adv.Name)
		require.NoError(t, err, adv.ID)
		assert.Equal(t, adv.ID, b.Advocate().ID)
	}

	_, err := For("peptideshaker")
	assert.ErrorIs(t, err, ErrNoBuilder)
	_, err = For("mascot")
	assert.ErrorIs(t, err, advocate.ErrUnknownAdvocate)
}

func TestOMSSA(t *testing.T) {
	job := newJob(t, "omssacl")
	b, err := For("omssa")
	require.NoError(t, err)

	invs, err := b.Prepare(job)
	require.NoError(t, err)
	require.Len(t, invs, 1)
	want := []string{
		job.Executable,
		"-d", job.Fasta,
		"-fm", job.Spectrum,
		"-ox", filepath.Join(job.OutputDir, "sample.omx"),
		"-oc", filepath.Join(job.OutputDir, "sample.omx.csv"),
		"-te", "10", "-teppm",
		"-to", "0.5",
		"-v", "2",
		"-zl", "2",
		"-zh", "4",
		"-e", "0",
		"-nt", "1",
		"-he", "100",
		"-mf", "3",
		"-mv", "1",
	}
	if diff := cmp.Diff(want, invs[0].Argv()); diff != "" {
		t.Errorf("omssacl argv mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, filepath.Dir(job.Executable), invs[0].Dir)
}

func TestOMSSAUserMods(t *testing.T) {
	job := newJob(t, "omssacl")
	job.Params.VariableModifications = []Modification{
		{Name: "Phosphorylation", Mass: 79.966331, Residues: "STY"},
		{Name: "Pyro-glu", Mass: -17.026549, Residues: "Q", Position: PosPeptideN},
	}
	invs, err := omssaBuilder{}.Prepare(job)
	require.NoError(t, err)

	argv := invs[0].Argv()
	assert.Contains(t, strings.Join(argv, " "), "-mv 6,7,8,119")
	userFile := filepath.Join(job.OutputDir, "sample_omssa_usermods.xml")
	assert.Equal(t, userFile, argv[len(argv)-1])

	var set omssaModSpecSet
	require.NoError(t, xml.Unmarshal([]byte(readFile(t, userFile)), &set))
	require.Len(t, set.Specs, 1)
	assert.Equal(t, 119, set.Specs[0].Mod.ID)
	assert.Equal(t, "modnpaa", set.Specs[0].Type.Value)
	assert.Equal(t, []string{"Q"}, set.Specs[0].Residues)
}

func TestOMSSATooManyUserMods(t *testing.T) {
	job := newJob(t, "omssacl")
	job.Params.VariableModifications = nil
	for i := 0; i < 11; i++ {
		job.Params.VariableModifications = append(job.Params.VariableModifications,
			Modification{Name: "Custom", Mass: float64(i + 1), Residues: "W"})
	}
	_, err := omssaBuilder{}.Prepare(job)
	assert.ErrorIs(t, err, ErrUnsupportedMods)
}

func TestOMSSADatabase(t *testing.T) {
	job := newJob(t, "omssacl")
	job.Helpers = map[string]string{"makeblastdb": "/opt/blast/makeblastdb"}

	invs, err := omssaBuilder{}.PrepareDatabase(job)
	require.NoError(t, err)
	require.Len(t, invs, 1)
	want := []string{"/opt/blast/makeblastdb", "-in", job.Fasta, "-dbtype", "prot"}
	if diff := cmp.Diff(want, invs[0].Argv()); diff != "" {
		t.Errorf("makeblastdb argv mismatch (-want +got):\n%s", diff)
	}

	for _, ext := range []string{".phr", ".pin", ".psq"} {
		require.NoError(t, os.WriteFile(job.Fasta+ext, nil, 0644))
	}
	invs, err = omssaBuilder{}.PrepareDatabase(job)
	require.NoError(t, err)
	assert.Empty(t, invs)
}

func TestXTandem(t *testing.T) {
	job := newJob(t, "tandem")
	job.Params.VariableModifications = append(job.Params.VariableModifications,
		Modification{Name: "Acetyl", Mass: 42.010565, Position: PosProteinN})

	invs, err := xtandemBuilder{}.Prepare(job)
	require.NoError(t, err)
	inputPath := filepath.Join(job.OutputDir, "sample_tandem_input.xml")
	if diff := cmp.Diff([]string{job.Executable, inputPath}, invs[0].Argv()); diff != "" {
		t.Errorf("tandem argv mismatch (-want +got):\n%s", diff)
	}

	var in tandemBioml
	require.NoError(t, xml.Unmarshal([]byte(readFile(t, inputPath)), &in))
	notes := map[string]string{}
	for _, n := range in.Notes {
		notes[n.Label] = n.Value
	}
	assert.Equal(t, job.Spectrum, notes["spectrum, path"])
	assert.Equal(t, filepath.Join(job.OutputDir, "sample.t.xml"), notes["output, path"])

	defaults := readFile(t, filepath.Join(job.OutputDir, "sample_tandem_default_input.xml"))
	assert.Contains(t, defaults, `label="residue, modification mass">57.021464@C<`)
	assert.Contains(t, defaults, `label="residue, potential modification mass">15.994915@M<`)
	assert.Contains(t, defaults, `label="protein, N-terminal residue modification mass">42.010565<`)
	assert.Contains(t, defaults, `label="protein, cleavage site">[RK]|{P}<`)
	assert.Contains(t, defaults, `label="spectrum, parent monoisotopic mass error units">ppm<`)

	taxonomy := readFile(t, filepath.Join(job.OutputDir, "sample_tandem_taxonomy.xml"))
	assert.Contains(t, taxonomy, job.Fasta)
}

func TestMSGF(t *testing.T) {
	job := newJob(t, "MSGFPlus.jar")
	job.Params.Threads = 4

	invs, err := msgfBuilder{}.Prepare(job)
	require.NoError(t, err)
	modsPath := filepath.Join(job.OutputDir, "sample_msgf_mods.txt")
	want := []string{
		"/usr/bin/java", "-Xmx2048M", "-jar", job.Executable,
		"-s", job.Spectrum,
		"-d", job.Fasta,
		"-o", filepath.Join(job.OutputDir, "sample.mzid"),
		"-t", "10ppm",
		"-e", "1",
		"-tda", "0",
		"-minCharge", "2",
		"-maxCharge", "4",
		"-thread", "4",
		"-mod", modsPath,
		"-ntt", "2",
		"-maxMissedCleavages", "2",
		"-minLength", "8",
		"-maxLength", "30",
	}
	if diff := cmp.Diff(want, invs[0].Argv()); diff != "" {
		t.Errorf("MS-GF+ argv mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t,
		"NumMods=1\n57.021464,C,fix,any,Carbamidomethylation\n15.994915,M,opt,any,Oxidation\n",
		readFile(t, modsPath))
}

func TestMSAmanda(t *testing.T) {
	job := newJob(t, "MSAmanda")
	invs, err := msamandaBuilder{}.Prepare(job)
	require.NoError(t, err)

	settingsPath := filepath.Join(job.OutputDir, "sample_msamanda_settings.xml")
	want := []string{
		job.Executable,
		"-s", job.Spectrum,
		"-d", job.Fasta,
		"-e", settingsPath,
		"-f", "2",
		"-o", filepath.Join(job.OutputDir, "sample.ms-amanda.mzid"),
	}
	if diff := cmp.Diff(want, invs[0].Argv()); diff != "" {
		t.Errorf("MS Amanda argv mismatch (-want +got):\n%s", diff)
	}

	var settings amandaSettings
	require.NoError(t, xml.Unmarshal([]byte(readFile(t, settingsPath)), &settings))
	assert.Equal(t, "+2, +3, +4", settings.Basic.ConsideredCharges)
	assert.Equal(t, "ppm", settings.Search.MS1Tolerance.Unit)
	require.Len(t, settings.Search.Modifications, 2)
	assert.Equal(t, 1, settings.Search.Modifications[0].Fix)
	assert.Equal(t, "Oxidation(M)", settings.Search.Modifications[1].Value)
}

func TestMyriMatch(t *testing.T) {
	job := newJob(t, "myrimatch")
	invs, err := myrimatchBuilder{}.Prepare(job)
	require.NoError(t, err)

	cfgPath := filepath.Join(job.OutputDir, "sample_myrimatch.cfg")
	want := []string{
		job.Executable,
		"-cfg", cfgPath,
		"-workdir", job.OutputDir,
		"-cpus", "1",
		"-ProteinDatabase", job.Fasta,
		job.Spectrum,
	}
	if diff := cmp.Diff(want, invs[0].Argv()); diff != "" {
		t.Errorf("MyriMatch argv mismatch (-want +got):\n%s", diff)
	}
	cfg := readFile(t, cfgPath)
	assert.Contains(t, cfg, "CleavageRules = Trypsin\n")
	assert.Contains(t, cfg, `StaticMods = "C 57.021464"`)
	assert.Contains(t, cfg, `DynamicMods = "[M] * 15.994915"`)
	assert.Contains(t, cfg, "MonoPrecursorMzTolerance = 10 ppm\n")
}

func TestComet(t *testing.T) {
	job := newJob(t, "comet.linux.exe")
	job.Params.Enzyme = "lys-c"
	invs, err := cometBuilder{}.Prepare(job)
	require.NoError(t, err)

	paramsPath := filepath.Join(job.OutputDir, "sample_comet.params")
	want := []string{
		job.Executable,
		"-P" + paramsPath,
		"-D" + job.Fasta,
		"-N" + filepath.Join(job.OutputDir, "sample"),
		job.Spectrum,
	}
	if diff := cmp.Diff(want, invs[0].Argv()); diff != "" {
		t.Errorf("Comet argv mismatch (-want +got):\n%s", diff)
	}
	params := readFile(t, paramsPath)
	assert.Contains(t, params, "search_enzyme_number = 3\n")
	assert.Contains(t, params, "peptide_mass_units = 2\n")
	assert.Contains(t, params, "variable_mod01 = 15.994915 M 0 3 -1 0 0\n")
	assert.Contains(t, params, "variable_mod02 = 0.0 X 0 3 -1 0 0\n")
	assert.Contains(t, params, "add_C_cysteine = 57.021464\n")
	assert.Contains(t, params, "add_K_lysine = 0.000000\n")
	assert.Contains(t, params, "[COMET_ENZYME_INFO]")
	assert.Equal(t, filepath.Join(job.OutputDir, "sample.pep.xml"), cometBuilder{}.OutputFile(job))
}

func TestCometRejectsFixedTerminalResidueMods(t *testing.T) {
	job := newJob(t, "comet")
	job.Params.FixedModifications = append(job.Params.FixedModifications,
		Modification{Name: "Pyro-glu", Mass: -17.026549, Residues: "Q", Position: PosPeptideN})
	_, err := cometBuilder{}.Prepare(job)
	assert.ErrorIs(t, err, ErrUnsupportedMods)
}

func TestMyriMatchFixedTerminalMods(t *testing.T) {
	job := newJob(t, "myrimatch")
	job.Params.FixedModifications = append(job.Params.FixedModifications,
		Modification{Name: "TMT 6-plex", Mass: 229.162932, Position: PosPeptideN},
		Modification{Name: "Amidation", Mass: -0.984016, Position: PosPeptideC})
	_, err := myrimatchBuilder{}.Prepare(job)
	require.NoError(t, err)
	cfg := readFile(t, filepath.Join(job.OutputDir, "sample_myrimatch.cfg"))
	assert.Contains(t, cfg, `StaticMods = "C 57.021464 ( 229.162932 ) -0.984016"`)

	for _, m := range []Modification{
		{Name: "Pyro-glu", Mass: -17.026549, Residues: "Q", Position: PosPeptideN},
		{Name: "Acetyl", Mass: 42.010565, Position: PosProteinN},
	} {
		job.Params.FixedModifications = []Modification{m}
		_, err := myrimatchBuilder{}.Prepare(job)
		assert.ErrorIs(t, err, ErrUnsupportedMods, m.Name)
	}
}

// Every engine that accepts a fixed residue-less peptide N-terminal
// modification must pass it on.
func TestFixedPeptideNTermMod(t *testing.T) {
	tmt := Modification{Name: "TMT 6-plex", Mass: 229.162932, Position: PosPeptideN}
	cases := []struct {
		engine string
		exe    string
		goos   string
		check  func(t *testing.T, job Job, invs []Invocation)
	}{
		{"omssa", "omssacl", "linux", func(t *testing.T, job Job, invs []Invocation) {
			assert.Contains(t, strings.Join(invs[0].Argv(), " "), "-mf 3,119")
			var set omssaModSpecSet
			userFile := filepath.Join(job.OutputDir, "sample_omssa_usermods.xml")
			require.NoError(t, xml.Unmarshal([]byte(readFile(t, userFile)), &set))
			require.Len(t, set.Specs, 1)
			assert.Equal(t, "modnp", set.Specs[0].Type.Value)
			assert.Equal(t, "229.162932", set.Specs[0].MonoMass)
		}},
		{"xtandem", "tandem", "linux", func(t *testing.T, job Job, _ []Invocation) {
			defaults := readFile(t, filepath.Join(job.OutputDir, "sample_tandem_default_input.xml"))
			assert.Contains(t, defaults, `label="residue, modification mass">57.021464@C,229.162932@[<`)
		}},
		{"msgf", "MSGFPlus.jar", "linux", func(t *testing.T, job Job, _ []Invocation) {
			mods := readFile(t, filepath.Join(job.OutputDir, "sample_msgf_mods.txt"))
			assert.Contains(t, mods, "229.162932,*,fix,N-term,TMT 6-plex\n")
		}},
		{"msamanda", "MSAmanda", "linux", func(t *testing.T, job Job, _ []Invocation) {
			var settings amandaSettings
			path := filepath.Join(job.OutputDir, "sample_msamanda_settings.xml")
			require.NoError(t, xml.Unmarshal([]byte(readFile(t, path)), &settings))
			require.Len(t, settings.Search.Modifications, 3)
			mod := settings.Search.Modifications[1]
			assert.Equal(t, 1, mod.Fix)
			assert.Equal(t, 1, mod.NTerm)
			assert.Equal(t, 0, mod.Protein)
			assert.Equal(t, "229.162932", mod.DeltaMass)
		}},
		{"myrimatch", "myrimatch", "linux", func(t *testing.T, job Job, _ []Invocation) {
			cfg := readFile(t, filepath.Join(job.OutputDir, "sample_myrimatch.cfg"))
			assert.Contains(t, cfg, `StaticMods = "C 57.021464 ( 229.162932"`)
		}},
		{"comet", "comet.linux.exe", "linux", func(t *testing.T, job Job, _ []Invocation) {
			params := readFile(t, filepath.Join(job.OutputDir, "sample_comet.params"))
			assert.Contains(t, params, "add_Nterm_peptide = 229.162932\n")
		}},
		{"tide", "crux", "linux", func(t *testing.T, job Job, _ []Invocation) {
			index, err := tideBuilder{}.PrepareDatabase(job)
			require.NoError(t, err)
			assert.Contains(t, strings.Join(index[0].Argv(), " "), "--nterm-peptide-mods-spec X+229.162932")
		}},
		{"andromeda", "AndromedaCmd.exe", "windows", func(t *testing.T, job Job, _ []Invocation) {
			apar := readFile(t, filepath.Join(job.OutputDir, "sample_andromeda.apar"))
			assert.Contains(t, apar, "fixed modifications=Carbamidomethylation (C),TMT 6-plex\n")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.engine, func(t *testing.T) {
			job := newJob(t, tc.exe)
			job.GOOS = tc.goos
			job.Params.FixedModifications = append(job.Params.FixedModifications, tmt)
			b, err := For(tc.engine)
			require.NoError(t, err)
			invs, err := b.Prepare(job)
			require.NoError(t, err)
			tc.check(t, job, invs)
		})
	}
}

func TestTide(t *testing.T) {
	job := newJob(t, "crux")
	b := tideBuilder{}

	index, err := b.PrepareDatabase(job)
	require.NoError(t, err)
	require.Len(t, index, 1)
	wantIndex := []string{
		job.Executable, "tide-index",
		"--output-dir", filepath.Join(job.OutputDir, "tide_index_log"),
		"--overwrite", "T",
		"--enzyme", "trypsin",
		"--missed-cleavages", "2",
		"--min-length", "8",
		"--max-length", "30",
		"--decoy-format", "none",
		"--mods-spec", "C+57.021464,3M+15.994915",
		job.Fasta, filepath.Join(job.OutputDir, "tide_index"),
	}
	if diff := cmp.Diff(wantIndex, index[0].Argv()); diff != "" {
		t.Errorf("tide-index argv mismatch (-want +got):\n%s", diff)
	}

	search, err := b.Prepare(job)
	require.NoError(t, err)
	require.Len(t, search, 1)
	argv := search[0].Argv()
	assert.Equal(t, "tide-search", argv[1])
	assert.Equal(t, []string{job.Spectrum, filepath.Join(job.OutputDir, "tide_index")}, argv[len(argv)-2:])
	assert.Contains(t, strings.Join(argv, " "), "--precursor-window-type ppm")
	assert.Equal(t, filepath.Join(job.OutputDir, "sample_tide", "tide-search.target.txt"), b.OutputFile(job))
}

func TestAndromeda(t *testing.T) {
	job := newJob(t, "AndromedaCmd.exe")
	_, err := andromedaBuilder{}.Prepare(job)
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)

	job.GOOS = "windows"
	invs, err := andromedaBuilder{}.Prepare(job)
	require.NoError(t, err)
	aparPath := filepath.Join(job.OutputDir, "sample_andromeda.apar")
	assert.Equal(t, []string{job.Executable, aparPath}, invs[0].Argv())

	apar := readFile(t, aparPath)
	assert.Contains(t, apar, "fixed modifications=Carbamidomethylation (C)\n")
	assert.Contains(t, apar, "peptide mass tolerance Unit=Ppm\n")

	apl := readFile(t, filepath.Join(job.OutputDir, "sample.apl"))
	assert.Equal(t, 2, strings.Count(apl, "peaklist start"))
	assert.Contains(t, apl, "charge=3\n")
}

func TestPrepareErrors(t *testing.T) {
	job := newJob(t, "comet")

	missing := job
	missing.Spectrum = filepath.Join(t.TempDir(), "absent.mgf")
	_, err := cometBuilder{}.Prepare(missing)
	assert.ErrorIs(t, err, ErrMissingInput)

	noExe := job
	noExe.Executable = ""
	_, err = xtandemBuilder{}.Prepare(noExe)
	assert.ErrorIs(t, err, ErrMissingInput)

	badEnzyme := job
	badEnzyme.Params.Enzyme = "Pepsin X"
	_, err = msgfBuilder{}.Prepare(badEnzyme)
	assert.ErrorIs(t, err, ErrUnknownEnzyme)
}

func TestMSConvert(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "run 01.raw")
	require.NoError(t, os.WriteFile(raw, nil, 0644))

	inv, mgfPath, err := MSConvert("/opt/pwiz/msconvert", raw, filepath.Join(dir, "mgf"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mgf", "run 01.mgf"), mgfPath)
	want := []string{"/opt/pwiz/msconvert", raw, "--mgf", "--filter", "peakPicking true 1-", "-o", filepath.Join(dir, "mgf")}
	if diff := cmp.Diff(want, inv.Argv()); diff != "" {
		t.Errorf("msconvert argv mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, inv.String(), `"peakPicking true 1-"`)

	_, _, err = MSConvert("/opt/pwiz/msconvert", filepath.Join(dir, "absent.raw"), dir)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestPeptideShakerJob(t *testing.T) {
	job := PeptideShakerJob{
		Jar:                 "/opt/ps/PeptideShaker-3.0.0.jar",
		MemoryMB:            8192,
		Fasta:               "db.fasta",
		IdentificationFiles: []string{"a.omx", "a.t.xml"},
		SpectrumFiles:       []string{"a.mgf"},
		Output:              "a.psdb",
	}
	inv, err := job.Invocation()
	require.NoError(t, err)
	want := []string{
		"java", "-Xmx8192M", "-cp", "/opt/ps/PeptideShaker-3.0.0.jar",
		"eu.isas.peptideshaker.cmd.PeptideShakerCLI",
		"-reference", "search-whisperer",
		"-fasta_file", "db.fasta",
		"-identification_files", "a.omx,a.t.xml",
		"-spectrum_files", "a.mgf",
		"-out", "a.psdb",
	}
	if diff := cmp.Diff(want, inv.Argv()); diff != "" {
		t.Errorf("PeptideShaker argv mismatch (-want +got):\n%s", diff)
	}

	job.IdentificationFiles = nil
	_, err = job.Invocation()
	assert.ErrorIs(t, err, ErrMissingInput)
}
