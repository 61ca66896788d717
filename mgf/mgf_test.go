package mgf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spectrumBlock(title string, charge string, peaks ...string) string {
	var sb strings.Builder
	sb.WriteString("BEGIN IONS\n")
	if title != "" {
		sb.WriteString("TITLE=" + title + "\n")
	}
	sb.WriteString("PEPMASS=500.5\n")
	if charge != "" {
		sb.WriteString("CHARGE=" + charge + "\n")
	}
	for _, p := range peaks {
		sb.WriteString(p + "\n")
	}
	sb.WriteString("END IONS\n\n")
	return sb.String()
}

func writeMGF(t *testing.T, dir, name string, blocks ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(blocks, "")), 0644))
	return path
}

func titles(t *testing.T, path string) []string {
	t.Helper()
	var out []string
	require.NoError(t, scan(path, func(_ *Reader, s *Spectrum) error {
		out = append(out, s.Title)
		return nil
	}))
	return out
}

func TestReader(t *testing.T) {
	input := `# exported by msconvert
COM=test run
CHARGE=2+

BEGIN IONS
TITLE=Spectrum 1 scan=10
PEPMASS=445.12 12000.5
CHARGE=2+ and 3+
RTINSECONDS=61.2
SCANS=10
INSTRUMENT=ESI-TRAP
110.07 1500
175.119	300.5	1+
END IONS
BEGIN IONS
TITLE=Spectrum 2
PEPMASS=612.3
END IONS
`
	r := NewReader(strings.NewReader(input))
	require.True(t, r.Next())
	want := &Spectrum{
		Title:        "Spectrum 1 scan=10",
		PepMass:      445.12,
		PepIntensity: 12000.5,
		Charges:      []int{2, 3},
		RTInSeconds:  "61.2",
		Scans:        "10",
		Extra:        []string{"INSTRUMENT=ESI-TRAP"},
		Peaks:        []Peak{{MZ: 110.07, Intensity: 1500}, {MZ: 175.119, Intensity: 300.5, Charge: 1}},
	}
	if diff := cmp.Diff(want, r.Spectrum()); diff != "" {
		t.Errorf("spectrum mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"COM=test run", "CHARGE=2+"}, r.Header())

	require.True(t, r.Next())
	assert.Equal(t, "Spectrum 2", r.Spectrum().Title)
	assert.Empty(t, r.Spectrum().Peaks)
	assert.False(t, r.Next())
	assert.NoError(t, r.Err())
}

func TestReaderErrors(t *testing.T) {
	cases := map[string]struct {
		input string
		want  error
	}{
		"unterminated":    {"BEGIN IONS\nTITLE=a\n100 1\n", ErrUnterminated},
		"nested":          {"BEGIN IONS\nTITLE=a\nBEGIN IONS\n", ErrUnterminated},
		"bad peak":        {"BEGIN IONS\n100 abc\nEND IONS\n", ErrMalformed},
		"bad charge":      {"BEGIN IONS\nCHARGE=two\nEND IONS\n", ErrMalformed},
		"stray peak":      {"100 1\n", ErrMalformed},
		"single column":   {"BEGIN IONS\n100\nEND IONS\n", ErrMalformed},
		"header no value": {"BEGIN IONS\nTITLE\nEND IONS\n", ErrMalformed},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tc.input))
			for r.Next() {
			}
			assert.ErrorIs(t, r.Err(), tc.want)
		})
	}
}

func TestParseCharges(t *testing.T) {
	for in, want := range map[string][]int{
		"2+":        {2},
		"2+ and 3+": {2, 3},
		"2+,3+,4+":  {2, 3, 4},
		"3":         {3},
		"1-":        {-1},
		"+2":        {2},
	} {
		got, err := ParseCharges(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCharges("0+")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestWriterRoundTrip(t *testing.T) {
	spec := &Spectrum{
		Title:        "s1",
		PepMass:      445.12,
		PepIntensity: 100,
		Charges:      []int{2, -1},
		RTInSeconds:  "12.5",
		Extra:        []string{"SEQ=PEPTIDEK"},
		Peaks:        []Peak{{MZ: 100.5, Intensity: 20}, {MZ: 200, Intensity: 1, Charge: 2}},
	}
	var sb strings.Builder
	w := NewWriter(&sb)
	require.NoError(t, w.WriteHeader([]string{"COM=x"}))
	require.NoError(t, w.Write(spec))
	require.NoError(t, w.Flush())

	assert.Equal(t, "COM=x\n\nBEGIN IONS\nTITLE=s1\nPEPMASS=445.12 100\nCHARGE=2+ and 1-\n"+
		"RTINSECONDS=12.5\nSEQ=PEPTIDEK\n100.5 20\n200 1 2+\nEND IONS\n\n", sb.String())

	r := NewReader(strings.NewReader(sb.String()))
	require.True(t, r.Next())
	if diff := cmp.Diff(spec, r.Spectrum()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	a := writeMGF(t, dir, "a.mgf", "COM=first\n", spectrumBlock("a1", "2+", "100 1"), spectrumBlock("a2", "2+", "100 1"))
	b := writeMGF(t, dir, "b.mgf", "COM=second\n", spectrumBlock("b1", "3+", "100 1"))
	out := filepath.Join(dir, "merged", "all.mgf")

	n, err := Merge([]string{a, b}, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a1", "a2", "b1"}, titles(t, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "COM=first")
	assert.NotContains(t, string(data), "COM=second")

	_, err = Merge(nil, out)
	assert.Error(t, err)
}

func TestMergeBadInputLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	good := writeMGF(t, dir, "good.mgf", spectrumBlock("a1", "2+", "100 1"))
	bad := writeMGF(t, dir, "bad.mgf", "BEGIN IONS\nTITLE=x\n")
	out := filepath.Join(dir, "all.mgf")

	_, err := Merge([]string{good, bad}, out)
	assert.ErrorIs(t, err, ErrUnterminated)
	assert.NoFileExists(t, out)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSplit(t *testing.T) {
	dir := t.TempDir()
	var blocks []string
	for _, title := range []string{"s1", "s2", "s3", "s4", "s5"} {
		blocks = append(blocks, spectrumBlock(title, "2+", "100 1"))
	}
	in := writeMGF(t, dir, "run.mgf", blocks...)
	outDir := filepath.Join(dir, "split")

	paths, err := Split(in, outDir, 2)
	require.NoError(t, err)
	want := []string{
		filepath.Join(outDir, "run_1.mgf"),
		filepath.Join(outDir, "run_2.mgf"),
		filepath.Join(outDir, "run_3.mgf"),
	}
	assert.Equal(t, want, paths)
	assert.Equal(t, []string{"s1", "s2"}, titles(t, paths[0]))
	assert.Equal(t, []string{"s5"}, titles(t, paths[2]))

	_, err = Split(in, outDir, 0)
	assert.ErrorIs(t, err, ErrBadChunkSize)
}

func TestMergeKeepsGlobalChargeOfLaterFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeMGF(t, dir, "a.mgf", "CHARGE=2+\n", spectrumBlock("a1", "", "100 1"))
	b := writeMGF(t, dir, "b.mgf", "CHARGE=3+\n", spectrumBlock("b1", "", "100 1"), spectrumBlock("b2", "4+", "100 1"))
	c := writeMGF(t, dir, "c.mgf", spectrumBlock("c1", "", "100 1"))
	out := filepath.Join(dir, "all.mgf")

	_, err := Merge([]string{a, b, c}, out)
	require.NoError(t, err)

	charges := map[string][]int{}
	require.NoError(t, scan(out, func(r *Reader, s *Spectrum) error {
		assert.Empty(t, r.Header(), "global CHARGE of a.mgf must not apply to c.mgf")
		charges[s.Title] = s.Charges
		return nil
	}))
	want := map[string][]int{"a1": {2}, "b1": {3}, "b2": {4}, "c1": nil}
	if diff := cmp.Diff(want, charges); diff != "" {
		t.Errorf("charges (-want +got):\n%s", diff)
	}

	report, err := Check(out)
	require.NoError(t, err)
	assert.Equal(t, 1, report.MissingCharges)
}

func TestSplitBadInputLeavesNoChunks(t *testing.T) {
	dir := t.TempDir()
	in := writeMGF(t, dir, "x.mgf",
		spectrumBlock("s1", "2+", "100 1"),
		spectrumBlock("s2", "2+", "100 1"),
		"BEGIN IONS\nTITLE=s3\n100 abc\nEND IONS\n")
	outDir := filepath.Join(dir, "split")

	_, err := Split(in, outDir, 1)
	assert.ErrorIs(t, err, ErrMalformed)
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSplitAs(t *testing.T) {
	dir := t.TempDir()
	in := writeMGF(t, dir, "run.mgf", spectrumBlock("s1", "2+", "100 1"), spectrumBlock("s2", "2+", "100 1"))

	paths, err := SplitAs(in, dir, "run.v2", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "run.v2_1.mgf"), filepath.Join(dir, "run.v2_2.mgf")}, paths)
}

func TestRenameDuplicateTitles(t *testing.T) {
	dir := t.TempDir()
	in := writeMGF(t, dir, "dup.mgf",
		spectrumBlock("A", "2+", "100 1"),
		spectrumBlock("A", "2+", "100 1"),
		spectrumBlock("A_2", "2+", "100 1"),
		spectrumBlock("B", "2+", "100 1"),
		spectrumBlock("A", "2+", "100 1"),
		spectrumBlock("B", "2+", "100 1"),
	)
	out := filepath.Join(dir, "renamed.mgf")

	n, err := RenameDuplicateTitles(in, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"A", "A_3", "A_2", "B", "A_4", "B_2"}, titles(t, out))
}

func TestRenameDuplicateTitlesInPlace(t *testing.T) {
	dir := t.TempDir()
	in := writeMGF(t, dir, "dup.mgf", spectrumBlock("A", "2+", "100 1"), spectrumBlock("A", "2+", "100 1"))

	n, err := RenameDuplicateTitles(in, in)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"A", "A_2"}, titles(t, in))
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	in := writeMGF(t, dir, "check.mgf",
		spectrumBlock("A", "2+", "100 1"),
		spectrumBlock("A", "", "100 1"),
		spectrumBlock("", "2+", "100 1"),
		spectrumBlock("C", "2+"),
	)
	report, err := Check(in)
	require.NoError(t, err)
	assert.Equal(t, CheckReport{
		Path:            in,
		Spectra:         4,
		MissingTitles:   1,
		MissingCharges:  1,
		EmptyPeakLists:  1,
		DuplicateTitles: 1,
	}, report)
	assert.False(t, report.OK())

	global := writeMGF(t, dir, "global.mgf", "CHARGE=2+\n", spectrumBlock("A", "", "100 1"))
	report, err = Check(global)
	require.NoError(t, err)
	assert.Zero(t, report.MissingCharges)
	assert.True(t, report.OK())

	n, err := Count(in)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestWriteAPL(t *testing.T) {
	dir := t.TempDir()
	in := writeMGF(t, dir, "run.mgf", spectrumBlock("A", "2+ and 3+", "100 1", "200 2"), spectrumBlock("B", "", "100 1"))
	apl := filepath.Join(dir, "run.apl")

	n, err := WriteAPL(in, apl)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	data, err := os.ReadFile(apl)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data),
		"peaklist start\nmz=500.5\nfragmentation=CID\ncharge=2\nheader=A\n100\t1\n200\t2\npeaklist end\n"))
}
