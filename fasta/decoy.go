// Package fasta prepares protein sequence databases for target/decoy
// searches.
package fasta

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"golang.org/x/exp/rand"
)

const (
	DefaultDecoyTag = "_REVERSED"
	lineWidth       = 60
)

var ErrSameFile = errors.New("input and output are the same file")

// DecoyOptions control how decoy sequences are made.
type DecoyOptions struct {
	// Tag is appended to each decoy accession.
	Tag string
	// Shuffle the residues instead of reversing them.
	Shuffle bool
	// Seed of the shuffle, so that a database can be rebuilt identically.
	Seed uint64
}

// DecoyStats counts the sequences written.
type DecoyStats struct {
	Targets int
	Decoys  int
}

func eachSequence(path string, fn func(s *linear.Seq) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := seqio.NewScanner(fasta.NewReader(f, linear.NewSeq("", nil, alphabet.Protein)))
	for sc.Next() {
		if err := fn(sc.Seq().(*linear.Seq)); err != nil {
			return err
		}
	}
	if err := sc.Error(); err != nil && err != io.EOF {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

func decoySequence(s *linear.Seq, opts DecoyOptions, rng *rand.Rand) *linear.Seq {
	letters := make(alphabet.Letters, len(s.Seq))
	copy(letters, s.Seq)
	if opts.Shuffle {
		rng.Shuffle(len(letters), func(i, j int) { letters[i], letters[j] = letters[j], letters[i] })
	} else {
		for i, j := 0, len(letters)-1; i < j; i, j = i+1, j-1 {
			letters[i], letters[j] = letters[j], letters[i]
		}
	}
	decoy := linear.NewSeq(s.ID+opts.Tag, letters, alphabet.Protein)
	decoy.Desc = s.Desc
	return decoy
}

// CreateDecoy writes every target sequence of input to output followed by
// one decoy per target.
func CreateDecoy(input, output string, opts DecoyOptions) (DecoyStats, error) {
	var stats DecoyStats
	if opts.Tag == "" {
		opts.Tag = DefaultDecoyTag
	}
	in, err := filepath.Abs(input)
	if err != nil {
		return stats, err
	}
	out, err := filepath.Abs(output)
	if err != nil {
		return stats, err
	}
	if in == out {
		return stats, fmt.Errorf("%w: %s", ErrSameFile, input)
	}

	f, err := os.Create(output)
	if err != nil {
		return stats, err
	}
	buf := bufio.NewWriter(f)
	w := fasta.NewWriter(buf, lineWidth)

	err = eachSequence(input, func(s *linear.Seq) error {
		stats.Targets++
		_, err := w.Write(s)
		return err
	})
	if err == nil {
		rng := rand.New(rand.NewSource(opts.Seed))
		err = eachSequence(input, func(s *linear.Seq) error {
			stats.Decoys++
			_, err := w.Write(decoySequence(s, opts, rng))
			return err
		})
	}
	if err == nil {
		err = buf.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(output)
		return DecoyStats{}, err
	}
	return stats, nil
}

// HasDecoys reports whether any accession in the file carries tag.
func HasDecoys(path, tag string) (bool, error) {
	if tag == "" {
		tag = DefaultDecoyTag
	}
	errFound := errors.New("found")
	err := eachSequence(path, func(s *linear.Seq) error {
		if strings.Contains(s.ID, tag) {
			return errFound
		}
		return nil
	})
	if errors.Is(err, errFound) {
		return true, nil
	}
	return false, err
}

// DecoyName is the file CreateDecoy writes by default: db.fasta becomes
// db_concatenated_target_decoy.fasta.
func DecoyName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_concatenated_target_decoy" + ext
}
