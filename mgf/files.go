package mgf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrBadChunkSize = errors.New("spectra per file must be positive")

// scan calls fn for each spectrum of the file at path.
func scan(path string, fn func(r *Reader, s *Spectrum) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := NewReader(f)
	for r.Next() {
		if err := fn(r, r.Spectrum()); err != nil {
			return err
		}
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// output writes to a temporary file next to path and renames it into
// place on Close, so that a failed run never leaves half a file and input
// and output may be the same file.
type output struct {
	*Writer
	file *os.File
	path string
}

func create(path string) (*output, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, err
	}
	return &output{Writer: NewWriter(f), file: f, path: path}, nil
}

func (o *output) Close() error {
	if err := o.Flush(); err != nil {
		o.Abort()
		return err
	}
	if err := o.file.Close(); err != nil {
		os.Remove(o.file.Name())
		return err
	}
	return os.Rename(o.file.Name(), o.path)
}

// Abort drops the temporary file.
func (o *output) Abort() {
	o.file.Close()
	os.Remove(o.file.Name())
}

// Count returns the number of spectra in the file.
func Count(path string) (int, error) {
	n := 0
	err := scan(path, func(*Reader, *Spectrum) error {
		n++
		return nil
	})
	return n, err
}

// Merge concatenates the spectra of inputs into output and returns the
// number of spectra written. Global parameters of the first input are
// kept, except CHARGE: a spectrum without its own charge gets the global
// CHARGE of the file it came from.
func Merge(inputs []string, outputPath string) (int, error) {
	if len(inputs) == 0 {
		return 0, errors.New("no MGF files to merge")
	}
	out, err := create(outputPath)
	if err != nil {
		return 0, err
	}

	n := 0
	for i, in := range inputs {
		headerDone := i > 0
		err := scan(in, func(r *Reader, s *Spectrum) error {
			if !headerDone {
				if err := out.WriteHeader(withoutCharge(r.Header())); err != nil {
					return err
				}
				headerDone = true
			}
			if len(s.Charges) == 0 {
				charges, err := globalCharges(r.Header())
				if err != nil {
					return fmt.Errorf("%s: %w", in, err)
				}
				s.Charges = charges
			}
			n++
			return out.Write(s)
		})
		if err != nil {
			out.Abort()
			return 0, err
		}
	}
	return n, out.Close()
}

func isChargeLine(line string) bool {
	return strings.HasPrefix(strings.ToUpper(line), "CHARGE=")
}

func withoutCharge(header []string) []string {
	var kept []string
	for _, h := range header {
		if !isChargeLine(h) {
			kept = append(kept, h)
		}
	}
	return kept
}

// globalCharges parses the last CHARGE line of a file header.
func globalCharges(header []string) ([]int, error) {
	var charges []int
	for _, h := range header {
		if !isChargeLine(h) {
			continue
		}
		_, value, _ := strings.Cut(h, "=")
		c, err := ParseCharges(value)
		if err != nil {
			return nil, err
		}
		charges = c
	}
	return charges, nil
}

// chunkName is the name of the i-th chunk, starting at 1.
func chunkName(base string, i int) string {
	return base + "_" + strconv.Itoa(i) + ".mgf"
}

// Split writes the spectra of input into chunks of at most maxSpectra
// spectra named <base>_1.mgf, <base>_2.mgf, ... in outDir and returns the
// chunk paths.
func Split(input, outDir string, maxSpectra int) ([]string, error) {
	return SplitAs(input, outDir, "", maxSpectra)
}

// SplitAs is Split with chunks named <name>_1.mgf, ... An empty name
// means the input's base name. On error no chunk is left.
func SplitAs(input, outDir, name string, maxSpectra int) ([]string, error) {
	if maxSpectra <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadChunkSize, maxSpectra)
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}
	var (
		paths   []string
		out     *output
		inChunk int
	)
	err := scan(input, func(r *Reader, s *Spectrum) error {
		if out == nil || inChunk == maxSpectra {
			if out != nil {
				err := out.Close()
				out = nil
				if err != nil {
					return err
				}
			}
			path := filepath.Join(outDir, chunkName(name, len(paths)+1))
			var err error
			if out, err = create(path); err != nil {
				out = nil
				return err
			}
			paths = append(paths, path)
			if err := out.WriteHeader(r.Header()); err != nil {
				return err
			}
			inChunk = 0
		}
		inChunk++
		return out.Write(s)
	})
	if err == nil && out != nil {
		err = out.Close()
		out = nil
	}
	if err != nil {
		if out != nil {
			out.Abort()
		}
		for _, p := range paths {
			os.Remove(p)
		}
		return nil, err
	}
	return paths, nil
}

// RenameDuplicateTitles copies input to output, renaming the second and
// later occurrences of a title T to T_2, T_3, ... Suffixes already taken
// by another spectrum are skipped. It returns the number of renamed
// spectra.
func RenameDuplicateTitles(input, outputPath string) (int, error) {
	used := map[string]bool{}
	err := scan(input, func(_ *Reader, s *Spectrum) error {
		used[s.Title] = true
		return nil
	})
	if err != nil {
		return 0, err
	}

	out, err := create(outputPath)
	if err != nil {
		return 0, err
	}
	occurrences := map[string]int{}
	renamed := 0
	headerDone := false
	err = scan(input, func(r *Reader, s *Spectrum) error {
		if !headerDone {
			if err := out.WriteHeader(r.Header()); err != nil {
				return err
			}
			headerDone = true
		}
		title := s.Title
		n, seen := occurrences[title]
		if !seen {
			occurrences[title] = 1
			return out.Write(s)
		}
		for {
			n++
			candidate := title + "_" + strconv.Itoa(n)
			if !used[candidate] {
				used[candidate] = true
				s.Title = candidate
				break
			}
		}
		occurrences[title] = n
		renamed++
		return out.Write(s)
	})
	if err != nil {
		out.Abort()
		return 0, err
	}
	return renamed, out.Close()
}

// CheckReport lists the problems that make engines reject or mis-handle
// an MGF file.
type CheckReport struct {
	Path            string
	Spectra         int
	MissingTitles   int
	MissingCharges  int
	EmptyPeakLists  int
	DuplicateTitles int
}

// OK reports whether the file can be searched as is.
func (c CheckReport) OK() bool {
	return c.Spectra > 0 && c.MissingTitles == 0 && c.DuplicateTitles == 0 && c.EmptyPeakLists == 0
}

func (c CheckReport) String() string {
	return fmt.Sprintf("%s: %d spectra, %d without title, %d without charge, %d without peaks, %d duplicate titles",
		c.Path, c.Spectra, c.MissingTitles, c.MissingCharges, c.EmptyPeakLists, c.DuplicateTitles)
}

// Check reads the whole file and counts problems. A spectrum without a
// CHARGE line is only counted when the file has no global CHARGE either.
func Check(path string) (CheckReport, error) {
	report := CheckReport{Path: path}
	titles := map[string]bool{}
	var missingCharge int
	globalCharge := false
	err := scan(path, func(r *Reader, s *Spectrum) error {
		report.Spectra++
		if strings.TrimSpace(s.Title) == "" {
			report.MissingTitles++
		} else if titles[s.Title] {
			report.DuplicateTitles++
		} else {
			titles[s.Title] = true
		}
		if len(s.Charges) == 0 {
			missingCharge++
		}
		if len(s.Peaks) == 0 {
			report.EmptyPeakLists++
		}
		if !globalCharge {
			for _, h := range r.Header() {
				if isChargeLine(h) {
					globalCharge = true
				}
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	if !globalCharge {
		report.MissingCharges = missingCharge
	}
	return report, nil
}
