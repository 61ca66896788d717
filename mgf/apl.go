package mgf

import (
	"bufio"
	"fmt"
	"os"
)

// WriteAPL converts an MGF file to Andromeda's peak list format. A
// spectrum with several candidate charges is written once per charge;
// spectra without charge are written as 2+. It returns the number of
// peak lists written.
func WriteAPL(input, aplPath string) (int, error) {
	f, err := os.Create(aplPath)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(f)
	n := 0
	err = scan(input, func(_ *Reader, s *Spectrum) error {
		charges := s.Charges
		if len(charges) == 0 {
			charges = []int{2}
		}
		for _, z := range charges {
			fmt.Fprintln(w, "peaklist start")
			fmt.Fprintf(w, "mz=%s\n", formatFloat(s.PepMass))
			fmt.Fprintln(w, "fragmentation=CID")
			fmt.Fprintf(w, "charge=%d\n", z)
			fmt.Fprintf(w, "header=%s\n", s.Title)
			for _, p := range s.Peaks {
				fmt.Fprintf(w, "%s\t%s\n", formatFloat(p.MZ), formatFloat(p.Intensity))
			}
			if _, err := fmt.Fprintln(w, "peaklist end"); err != nil {
				return err
			}
			fmt.Fprintln(w)
			n++
		}
		return nil
	})
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(aplPath)
		return 0, err
	}
	return n, nil
}
