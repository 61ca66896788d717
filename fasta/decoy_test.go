package fasta

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/biogo/seq/linear"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const db = `>sp|P1|ONE_HUMAN First protein
MKPEPTIDER
>sp|P2|TWO_HUMAN
ACDEFGHIK
`

func writeDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.fasta")
	require.NoError(t, os.WriteFile(path, []byte(db), 0644))
	return path
}

func readAll(t *testing.T, path string) map[string]string {
	t.Helper()
	seqs := map[string]string{}
	require.NoError(t, eachSequence(path, func(s *linear.Seq) error {
		seqs[s.ID] = s.Seq.String()
		return nil
	}))
	return seqs
}

func TestCreateDecoyReversed(t *testing.T) {
	in := writeDB(t)
	out := DecoyName(in)
	assert.True(t, strings.HasSuffix(out, "db_concatenated_target_decoy.fasta"))

	stats, err := CreateDecoy(in, out, DecoyOptions{})
	require.NoError(t, err)
	assert.Equal(t, DecoyStats{Targets: 2, Decoys: 2}, stats)

	seqs := readAll(t, out)
	assert.Equal(t, map[string]string{
		"sp|P1|ONE_HUMAN":          "MKPEPTIDER",
		"sp|P2|TWO_HUMAN":          "ACDEFGHIK",
		"sp|P1|ONE_HUMAN_REVERSED": "REDITPEPKM",
		"sp|P2|TWO_HUMAN_REVERSED": "KIHGFEDCA",
	}, seqs)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), ">sp|P1|ONE_HUMAN_REVERSED First protein")
	assert.Less(t, strings.Index(string(data), "TWO_HUMAN\n"), strings.Index(string(data), "ONE_HUMAN_REVERSED"))

	has, err := HasDecoys(out, "")
	require.NoError(t, err)
	assert.True(t, has)
	has, err = HasDecoys(in, "")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestCreateDecoyShuffledIsReproducible(t *testing.T) {
	in := writeDB(t)
	dir := t.TempDir()
	opts := DecoyOptions{Tag: "_DECOY", Shuffle: true, Seed: 42}

	_, err := CreateDecoy(in, filepath.Join(dir, "a.fasta"), opts)
	require.NoError(t, err)
	_, err = CreateDecoy(in, filepath.Join(dir, "b.fasta"), opts)
	require.NoError(t, err)

	a := readAll(t, filepath.Join(dir, "a.fasta"))
	b := readAll(t, filepath.Join(dir, "b.fasta"))
	assert.Equal(t, a, b)

	decoy := []byte(a["sp|P1|ONE_HUMAN_DECOY"])
	target := []byte("MKPEPTIDER")
	assert.ElementsMatch(t, target, decoy)
}

func TestCreateDecoyErrors(t *testing.T) {
	in := writeDB(t)
	_, err := CreateDecoy(in, in, DecoyOptions{})
	assert.ErrorIs(t, err, ErrSameFile)

	out := filepath.Join(t.TempDir(), "out.fasta")
	_, err = CreateDecoy(filepath.Join(t.TempDir(), "absent.fasta"), out, DecoyOptions{})
	assert.Error(t, err)
	assert.NoFileExists(t, out)
}
