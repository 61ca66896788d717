// Package mgf reads and writes Mascot Generic Format peak lists and
// implements the file operations run before a search: merge, split,
// duplicate title renaming and sanity checks.
package mgf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	ErrUnterminated = errors.New("spectrum without END IONS")
	ErrMalformed    = errors.New("malformed MGF line")
)

const (
	beginIons = "BEGIN IONS"
	endIons   = "END IONS"
)

// Peak is one fragment ion. Charge is zero when the line has none.
type Peak struct {
	MZ        float64
	Intensity float64
	Charge    int
}

// Spectrum is one BEGIN IONS ... END IONS block.
type Spectrum struct {
	Title        string
	PepMass      float64
	PepIntensity float64
	// Precursor charges, negative for negative ions.
	Charges     []int
	RTInSeconds string
	Scans       string
	// Other KEY=VALUE lines, kept verbatim.
	Extra []string
	Peaks []Peak
}

// RT returns the retention time in seconds when it parses as a number.
func (s *Spectrum) RT() (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s.RTInSeconds), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// TotalIonCurrent sums the fragment intensities.
func (s *Spectrum) TotalIonCurrent() float64 {
	var tic float64
	for _, p := range s.Peaks {
		tic += p.Intensity
	}
	return tic
}

// Reader streams spectra from an MGF file.
type Reader struct {
	scanner *bufio.Scanner
	lineNum int
	header  []string
	current *Spectrum
	err     error
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &Reader{scanner: scanner}
}

// Next advances to the next spectrum. It returns false at the end of the
// input or on error; check Err afterwards.
func (r *Reader) Next() bool {
	r.current = nil
	if r.err != nil {
		return false
	}
	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}
	r.current = spec
	return true
}

// Spectrum returns the spectrum read by the last call to Next.
func (r *Reader) Spectrum() *Spectrum {
	return r.current
}

func (r *Reader) Err() error {
	return r.err
}

// Header returns the global parameter lines seen so far, i.e. the lines
// outside any BEGIN IONS block.
func (r *Reader) Header() []string {
	return r.header
}

func skippable(line string) bool {
	return line == "" || strings.ContainsAny(line[:1], "#;!/")
}

func (r *Reader) readSpectrum() (*Spectrum, error) {
	var spec *Spectrum
	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if skippable(line) {
			continue
		}

		if spec == nil {
			if strings.EqualFold(line, beginIons) {
				spec = &Spectrum{}
				continue
			}
			if strings.Contains(line, "=") {
				r.header = append(r.header, line)
				continue
			}
			return nil, fmt.Errorf("line %d: %w: %q outside BEGIN IONS", r.lineNum, ErrMalformed, line)
		}

		if strings.EqualFold(line, endIons) {
			return spec, nil
		}
		if strings.EqualFold(line, beginIons) {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, ErrUnterminated)
		}
		if err := parseLine(spec, line); err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if spec != nil {
		return nil, fmt.Errorf("line %d: %w", r.lineNum, ErrUnterminated)
	}
	return nil, io.EOF
}

func parseLine(spec *Spectrum, line string) error {
	first := line[0]
	if (first >= 'A' && first <= 'Z') || (first >= 'a' && first <= 'z') {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("%w: %q", ErrMalformed, line)
		}
		return parseHeader(spec, key, value, line)
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return fmt.Errorf("%w: peak %q", ErrMalformed, line)
	}
	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return fmt.Errorf("%w: peak m/z %q", ErrMalformed, fields[0])
	}
	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return fmt.Errorf("%w: peak intensity %q", ErrMalformed, fields[1])
	}
	peak := Peak{MZ: mz, Intensity: intensity}
	if len(fields) > 2 {
		if z, err := parseCharge(fields[2]); err == nil {
			peak.Charge = z
		}
	}
	spec.Peaks = append(spec.Peaks, peak)
	return nil
}

func parseHeader(spec *Spectrum, key, value, line string) error {
	switch strings.ToUpper(strings.TrimSpace(key)) {
	case "TITLE":
		spec.Title = value
	case "PEPMASS":
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return fmt.Errorf("%w: empty PEPMASS", ErrMalformed)
		}
		mz, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return fmt.Errorf("%w: PEPMASS %q", ErrMalformed, value)
		}
		spec.PepMass = mz
		if len(fields) > 1 {
			if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
				spec.PepIntensity = v
			}
		}
	case "CHARGE":
		charges, err := ParseCharges(value)
		if err != nil {
			return err
		}
		spec.Charges = charges
	case "RTINSECONDS":
		spec.RTInSeconds = value
	case "SCANS":
		spec.Scans = value
	default:
		spec.Extra = append(spec.Extra, line)
	}
	return nil
}

// ParseCharges reads a CHARGE value such as "2+", "2+ and 3+" or "2+,3+".
func ParseCharges(value string) ([]int, error) {
	value = strings.ReplaceAll(value, "and", ",")
	var charges []int
	for _, tok := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
		z, err := parseCharge(tok)
		if err != nil {
			return nil, err
		}
		charges = append(charges, z)
	}
	return charges, nil
}

func parseCharge(tok string) (int, error) {
	sign := 1
	digits := tok
	switch {
	case strings.HasSuffix(tok, "+"):
		digits = strings.TrimSuffix(tok, "+")
	case strings.HasSuffix(tok, "-"):
		digits, sign = strings.TrimSuffix(tok, "-"), -1
	case strings.HasPrefix(tok, "+"):
		digits = strings.TrimPrefix(tok, "+")
	case strings.HasPrefix(tok, "-"):
		digits, sign = strings.TrimPrefix(tok, "-"), -1
	}
	z, err := strconv.Atoi(digits)
	if err != nil || z <= 0 {
		return 0, fmt.Errorf("%w: charge %q", ErrMalformed, tok)
	}
	return sign * z, nil
}

// FormatCharge renders a charge the way MGF writes it, e.g. 2+ or 1-.
func FormatCharge(z int) string {
	if z < 0 {
		return strconv.Itoa(-z) + "-"
	}
	return strconv.Itoa(z) + "+"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Writer writes spectra in MGF.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteHeader writes global parameter lines. Call it before any spectrum.
func (w *Writer) WriteHeader(lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w.w, l); err != nil {
			return err
		}
	}
	if len(lines) > 0 {
		_, err := fmt.Fprintln(w.w)
		return err
	}
	return nil
}

func (w *Writer) Write(s *Spectrum) error {
	b := w.w
	b.WriteString(beginIons + "\n")
	if s.Title != "" {
		fmt.Fprintf(b, "TITLE=%s\n", s.Title)
	}
	if s.PepMass != 0 {
		if s.PepIntensity != 0 {
			fmt.Fprintf(b, "PEPMASS=%s %s\n", formatFloat(s.PepMass), formatFloat(s.PepIntensity))
		} else {
			fmt.Fprintf(b, "PEPMASS=%s\n", formatFloat(s.PepMass))
		}
	}
	if len(s.Charges) > 0 {
		charges := make([]string, len(s.Charges))
		for i, z := range s.Charges {
			charges[i] = FormatCharge(z)
		}
		fmt.Fprintf(b, "CHARGE=%s\n", strings.Join(charges, " and "))
	}
	if s.RTInSeconds != "" {
		fmt.Fprintf(b, "RTINSECONDS=%s\n", s.RTInSeconds)
	}
	if s.Scans != "" {
		fmt.Fprintf(b, "SCANS=%s\n", s.Scans)
	}
	for _, l := range s.Extra {
		b.WriteString(l + "\n")
	}
	for _, p := range s.Peaks {
		if p.Charge != 0 {
			fmt.Fprintf(b, "%s %s %s\n", formatFloat(p.MZ), formatFloat(p.Intensity), FormatCharge(p.Charge))
		} else {
			fmt.Fprintf(b, "%s %s\n", formatFloat(p.MZ), formatFloat(p.Intensity))
		}
	}
	_, err := b.WriteString(endIons + "\n\n")
	return err
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}
