package mgf

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/stat"
)

var ErrNoSpectra = errors.New("no spectra")

// Bin width and upper limit of the precursor m/z histogram.
const (
	mzBinWidth = 100.0
	maxChartMZ = 5000.0
)

// SpectrumRow is one line of the per-spectrum report table.
type SpectrumRow struct {
	Title       string  `dataframe:"TITLE,string"`
	PrecursorMZ float64 `dataframe:"PEPMASS,float"`
	Charge      string  `dataframe:"CHARGE,string"`
	RT          string  `dataframe:"RTINSECONDS,string"`
	Peaks       int     `dataframe:"PEAKS,int"`
	TIC         float64 `dataframe:"TIC,float"`
}

// Stats describes one numeric column.
type Stats struct {
	Min, Max, Mean, StdDev, Median float64
}

// Summary holds statistics over every spectrum of an MGF file.
type Summary struct {
	Path        string
	Spectra     int
	PrecursorMZ Stats
	PeakCount   Stats
	// Spectra per precursor charge; 0 collects spectra without charge.
	Charges map[int]int
	Rows    []SpectrumRow
}

func describe(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	s := Stats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	return s
}

// Summarize reads path and computes precursor and peak statistics.
func Summarize(path string) (Summary, error) {
	summary := Summary{Path: path, Charges: map[int]int{}}
	var mz, peaks []float64
	err := scan(path, func(_ *Reader, s *Spectrum) error {
		summary.Spectra++
		mz = append(mz, s.PepMass)
		peaks = append(peaks, float64(len(s.Peaks)))
		charges := make([]string, len(s.Charges))
		for i, z := range s.Charges {
			charges[i] = FormatCharge(z)
		}
		if len(s.Charges) == 0 {
			summary.Charges[0]++
		} else {
			for _, z := range s.Charges {
				summary.Charges[z]++
			}
		}
		summary.Rows = append(summary.Rows, SpectrumRow{
			Title:       s.Title,
			PrecursorMZ: s.PepMass,
			Charge:      strings.Join(charges, " and "),
			RT:          s.RTInSeconds,
			Peaks:       len(s.Peaks),
			TIC:         s.TotalIonCurrent(),
		})
		return nil
	})
	if err != nil {
		return summary, err
	}
	summary.PrecursorMZ = describe(mz)
	summary.PeakCount = describe(peaks)
	return summary, nil
}

// WriteReport writes the per-spectrum table as CSV and the charge and
// precursor m/z histograms as an HTML page. Either path may be empty.
func WriteReport(summary Summary, csvPath, htmlPath string) error {
	if len(summary.Rows) == 0 {
		return fmt.Errorf("%s: %w", summary.Path, ErrNoSpectra)
	}
	if csvPath != "" {
		df := dataframe.LoadStructs(summary.Rows)
		if df.Err != nil {
			return df.Err
		}
		f, err := os.Create(csvPath)
		if err != nil {
			return err
		}
		if err := df.WriteCSV(f, dataframe.WriteHeader(true)); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	if htmlPath == "" {
		return nil
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(chargeChart(summary), precursorChart(summary))
	f, err := os.Create(htmlPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}

func chargeChart(summary Summary) *charts.Bar {
	charges := make([]int, 0, len(summary.Charges))
	for z := range summary.Charges {
		charges = append(charges, z)
	}
	sort.Ints(charges)

	labels := make([]string, 0, len(charges))
	data := make([]opts.BarData, 0, len(charges))
	for _, z := range charges {
		label := "unknown"
		if z != 0 {
			label = FormatCharge(z)
		}
		labels = append(labels, label)
		data = append(data, opts.BarData{Value: summary.Charges[z]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithTitleOpts(opts.Title{Title: "Precursor charge"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Spectra"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Charge"}),
	)
	bar.SetXAxis(labels).AddSeries("spectra", data)
	return bar
}

// precursorBins counts precursors per m/z bin. Values at or above
// maxChartMZ share the last bin and values below zero the first.
func precursorBins(rows []SpectrumRow) (labels []string, counts []int) {
	last := int(maxChartMZ / mzBinWidth)
	perBin := map[int]int{}
	lo, hi := last, 0
	for _, row := range rows {
		mz := row.PrecursorMZ
		if math.IsNaN(mz) {
			continue
		}
		bin := last
		if mz < maxChartMZ {
			bin = max(0, int(math.Floor(mz/mzBinWidth)))
		}
		perBin[bin]++
		lo = min(lo, bin)
		hi = max(hi, bin)
	}
	for bin := lo; bin <= hi; bin++ {
		label := strconv.Itoa(bin * int(mzBinWidth))
		if bin == last {
			label = ">=" + label
		}
		labels = append(labels, label)
		counts = append(counts, perBin[bin])
	}
	return labels, counts
}

func precursorChart(summary Summary) *charts.Bar {
	labels, counts := precursorBins(summary.Rows)
	data := make([]opts.BarData, 0, len(counts))
	for _, n := range counts {
		data = append(data, opts.BarData{Value: n})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithTitleOpts(opts.Title{Title: "Precursor m/z"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Spectra"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "m/z"}),
	)
	bar.SetXAxis(labels).AddSeries("spectra", data)
	return bar
}
