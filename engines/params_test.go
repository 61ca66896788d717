package engines

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParametersValid(t *testing.T) {
	p := DefaultParameters()
	require.NoError(t, p.Validate())
	assert.True(t, p.PrecursorPPM())
}

func TestLoadParametersOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
precursor_tolerance: 0.02
precursor_tolerance_unit: Da
enzyme: chymotrypsin
variable_modifications:
  - name: Phospho
    mass: 79.966331
    residues: STY
`), 0644))

	p, err := LoadParameters(path)
	require.NoError(t, err)
	assert.Equal(t, 0.02, p.PrecursorTolerance)
	assert.False(t, p.PrecursorPPM())
	assert.Equal(t, "chymotrypsin", p.Enzyme)
	assert.Equal(t, 0.5, p.FragmentTolerance)
	require.Len(t, p.VariableModifications, 1)
	assert.Equal(t, "STY", p.VariableModifications[0].Residues)
	assert.Len(t, p.FixedModifications, 1)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	p := DefaultParameters()
	p.MissedCleavages = 1
	require.NoError(t, p.Save(path))

	got, err := LoadParameters(path)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*SearchParameters){
		"zero tolerance":     func(p *SearchParameters) { p.FragmentTolerance = 0 },
		"bad unit":           func(p *SearchParameters) { p.PrecursorToleranceUnit = "mmu" },
		"charge range":       func(p *SearchParameters) { p.MinCharge, p.MaxCharge = 3, 2 },
		"negative cleavages": func(p *SearchParameters) { p.MissedCleavages = -1 },
		"mod without site": func(p *SearchParameters) {
			p.VariableModifications = []Modification{{Name: "Odd", Mass: 1}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := DefaultParameters()
			mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
		})
	}

	p := DefaultParameters()
	p.Enzyme = "none"
	assert.ErrorIs(t, p.Validate(), ErrUnknownEnzyme)
}

func TestLookupEnzyme(t *testing.T) {
	e, err := LookupEnzyme(" TRYPSIN ")
	require.NoError(t, err)
	assert.Equal(t, "Trypsin", e.Name)
	assert.Equal(t, 1, e.Comet)

	_, err = LookupEnzyme("Pepsin X")
	assert.ErrorIs(t, err, ErrUnknownEnzyme)
}

func TestInvocationString(t *testing.T) {
	inv := Invocation{Path: "/opt/tool", Args: []string{"-in", "my file.mgf", ""}}
	assert.Equal(t, `/opt/tool -in "my file.mgf" ""`, inv.String())
}
