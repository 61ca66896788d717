// Package search runs the enabled search engines on a set of spectrum
// files: input conversion and checks, database preparation, the engine
// runs themselves on a bounded worker pool, and the hand-off of the
// results to PeptideShaker.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gmaffy/search-whisperer/advocate"
	"github.com/gmaffy/search-whisperer/engines"
	"github.com/gmaffy/search-whisperer/fasta"
	"github.com/gmaffy/search-whisperer/mgf"
	"github.com/gmaffy/search-whisperer/toolcheck"
	"github.com/gmaffy/search-whisperer/utils"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoSpectra         = errors.New("no spectrum files")
	ErrNoEngines         = errors.New("no search engine selected")
	ErrToolNotConfigured = errors.New("tool folder not configured")
	ErrInvalidSpectra    = errors.New("spectrum file cannot be searched")
)

const (
	LogFileName     = "search.log"
	ParamsFileName  = "search_parameters.yaml"
	ArchiveFileName = "search_results.zip"
	PeptideShakerDB = "peptideshaker.psdb"

	// Stage name and spectrum used for steps that cover the whole run.
	stageAll = "ALL"
)

// Request names the inputs of one search.
type Request struct {
	// MGF files.
	Spectra []string
	// Raw files converted to MGF with msconvert before searching.
	Raw   []string
	Fasta string
	// OutputDir and Engines override the config when set.
	OutputDir string
	Engines   []string
}

// JobResult is the outcome of one engine on one spectrum file.
type JobResult struct {
	Engine   string
	Spectrum string
	Output   string
	Status   string
	Err      error
	Duration time.Duration
}

// Summary describes a finished or aborted run.
type Summary struct {
	RunID         string
	OutputDir     string
	Fasta         string
	Spectra       []string
	Jobs          []JobResult
	Skipped       []string
	Archive       string
	PeptideShaker string
}

// Completed returns the identification files of the jobs that succeeded,
// including the ones completed by an earlier run.
func (s Summary) Completed() []string {
	done := lo.Filter(s.Jobs, func(j JobResult, _ int) bool {
		return j.Status == utils.StatusCompleted || j.Status == utils.StatusSkipped
	})
	return lo.Map(done, func(j JobResult, _ int) string { return j.Output })
}

// Handler runs searches with the tools and preferences of Config.
type Handler struct {
	Config utils.Config
	Params engines.SearchParameters
	Runner Runner
	// Logger receives the run events next to the JSON run log. Nil means
	// the JSON log only.
	Logger *slog.Logger
}

type engineSetup struct {
	adv     advocate.Advocate
	builder engines.Builder
	exe     string
	java    string
}

type run struct {
	h       *Handler
	log     *slog.Logger
	entries []utils.LogEntry
	outDir  string
	summary Summary
}

// Run executes the whole search. Jobs already logged as COMPLETED in the
// output folder's run log are not run again. The first failing job
// cancels the others.
func (h *Handler) Run(ctx context.Context, req Request) (Summary, error) {
	outDir := req.OutputDir
	if outDir == "" {
		outDir = h.Config.OutputDir
	}
	if outDir == "" {
		return Summary{}, fmt.Errorf("%w: output folder", engines.ErrMissingInput)
	}
	if len(req.Spectra) == 0 && len(req.Raw) == 0 {
		return Summary{}, ErrNoSpectra
	}
	if req.Fasta == "" || !utils.FileExists(req.Fasta) {
		return Summary{}, fmt.Errorf("%w: FASTA file %q", engines.ErrMissingInput, req.Fasta)
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return Summary{}, err
	}
	if h.Runner == nil {
		h.Runner = ExecRunner{}
	}

	logPath := filepath.Join(outDir, LogFileName)
	entries, err := utils.ParseLogFile(logPath)
	if err != nil {
		return Summary{}, fmt.Errorf("reading run log: %w", err)
	}
	var extra []slog.Handler
	if h.Logger != nil {
		extra = append(extra, h.Logger.Handler())
	}
	jlog, logFile, err := utils.OpenRunLog(logPath, slog.LevelInfo, extra...)
	if err != nil {
		return Summary{}, err
	}
	defer logFile.Close()

	runID := uuid.NewString()
	r := &run{
		h:       h,
		log:     jlog.With("RUN", runID),
		entries: entries,
		outDir:  outDir,
		summary: Summary{RunID: runID, OutputDir: outDir, Fasta: req.Fasta},
	}
	r.log.Info("SEARCH", "PROGRAM", "INITIALISE", "SPECTRUM", stageAll, "STATUS", utils.StatusStarted, "CMD", stageAll)

	err = r.execute(ctx, req)
	if err != nil {
		r.log.Error("SEARCH", "PROGRAM", "SEARCH", "SPECTRUM", stageAll, "STATUS", utils.StatusFailed, "ERROR", err.Error())
		return r.summary, err
	}
	r.log.Info("SEARCH", "PROGRAM", "SEARCH", "SPECTRUM", stageAll, "STATUS", utils.StatusCompleted, "CMD", stageAll)
	return r.summary, nil
}

func (r *run) execute(ctx context.Context, req Request) error {
	cfg := r.h.Config
	params := r.h.Params
	params.Threads = cfg.Threads
	if err := params.Validate(); err != nil {
		return err
	}
	if err := params.Save(filepath.Join(r.outDir, ParamsFileName)); err != nil {
		return err
	}

	setups, err := r.resolveEngines(req)
	if err != nil {
		return err
	}

	spectra := append([]string(nil), req.Spectra...)
	if len(req.Raw) > 0 {
		converted, err := r.convertRaw(ctx, req.Raw)
		if err != nil {
			return err
		}
		spectra = append(spectra, converted...)
	}
	if spectra, err = r.prepareSpectra(spectra); err != nil {
		return err
	}
	r.summary.Spectra = spectra

	if cfg.CreateDecoys {
		if r.summary.Fasta, err = r.ensureDecoys(req.Fasta, params.DecoyTag); err != nil {
			return err
		}
	}

	helpers := map[string]string{}
	if exe, err := r.locate("makeblastdb"); err == nil {
		helpers["makeblastdb"] = exe
	}

	newJob := func(s engineSetup, spectrum string) engines.Job {
		return engines.Job{
			Spectrum:   spectrum,
			Fasta:      r.summary.Fasta,
			OutputDir:  filepath.Join(r.outDir, s.adv.ID),
			Executable: s.exe,
			Java:       s.java,
			MemoryMB:   cfg.MemoryMB,
			Params:     params,
			Helpers:    helpers,
		}
	}

	for _, s := range setups {
		prep, ok := s.builder.(engines.DatabasePreparer)
		if !ok {
			continue
		}
		program := strings.ToUpper(s.adv.ID) + "_DB"
		invs, err := prep.PrepareDatabase(newJob(s, ""))
		if err != nil {
			return err
		}
		if err := r.stage(ctx, program, stageAll, invs, filepath.Join(r.outDir, s.adv.ID, "database.log")); err != nil {
			return err
		}
	}

	if err := r.runJobs(ctx, setups, spectra, newJob); err != nil {
		return err
	}

	if cfg.ZipResults {
		if err := r.archive(); err != nil {
			return err
		}
	}
	if cfg.PeptideShaker {
		if err := r.peptideShaker(ctx); err != nil {
			return err
		}
	}
	return nil
}

// locate finds the executable of an advocate in its configured folder.
func (r *run) locate(id string) (string, error) {
	adv, err := advocate.Lookup(id)
	if err != nil {
		return "", err
	}
	dir, ok := r.h.Config.ToolDir(adv.ID)
	if !ok {
		return "", fmt.Errorf("%w: set tools.%s in the config file", ErrToolNotConfigured, adv.ID)
	}
	return advocate.ValidateFolder(adv, dir)
}

func (r *run) resolveEngines(req Request) ([]engineSetup, error) {
	names := req.Engines
	if len(names) == 0 {
		names = r.h.Config.Engines
	}
	ids := make([]string, 0, len(names))
	for _, name := range names {
		adv, err := advocate.Lookup(name)
		if err != nil {
			return nil, err
		}
		if !adv.Engine {
			return nil, fmt.Errorf("%s is not a search engine", adv.Name)
		}
		ids = append(ids, adv.ID)
	}
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return nil, ErrNoEngines
	}

	var setups []engineSetup
	for _, id := range ids {
		b, err := engines.For(id)
		if err != nil {
			return nil, err
		}
		adv := b.Advocate()
		if !adv.Supported(runtime.GOOS) {
			r.log.Warn("SEARCH", "PROGRAM", strings.ToUpper(adv.ID), "SPECTRUM", stageAll,
				"STATUS", utils.StatusSkipped, "CMD", fmt.Sprintf("%s does not run on %s", adv.Name, runtime.GOOS))
			r.summary.Skipped = append(r.summary.Skipped, adv.ID)
			continue
		}
		exe, err := r.locate(adv.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", adv.Name, err)
		}
		s := engineSetup{adv: adv, builder: b, exe: exe}
		if adv.JVM {
			if s.java, err = toolcheck.FindJava(r.h.Config.Java); err != nil {
				return nil, fmt.Errorf("%s: %w", adv.Name, err)
			}
		}
		setups = append(setups, s)
	}
	if len(setups) == 0 {
		return nil, ErrNoEngines
	}
	return setups, nil
}

func spectrumKey(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// stage runs invocations one after the other under one log stage, unless
// the log shows the stage completed already.
func (r *run) stage(ctx context.Context, program, spectrum string, invs []engines.Invocation, outputPath string) error {
	if utils.StageHasCompleted(r.entries, program, spectrum) {
		r.log.Info("SEARCH", "PROGRAM", program, "SPECTRUM", spectrum, "STATUS", utils.StatusSkipped, "CMD", "already completed")
		return nil
	}
	if len(invs) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	for _, inv := range invs {
		r.log.Info("SEARCH", "PROGRAM", program, "SPECTRUM", spectrum, "STATUS", utils.StatusStarted, "CMD", inv.String())
		if err := r.h.Runner.Run(ctx, inv, out); err != nil {
			r.log.Error("SEARCH", "PROGRAM", program, "SPECTRUM", spectrum, "STATUS", utils.StatusFailed,
				"CMD", inv.String(), "ERROR", err.Error())
			return fmt.Errorf("%s on %s: %w", program, spectrum, err)
		}
	}
	r.log.Info("SEARCH", "PROGRAM", program, "SPECTRUM", spectrum, "STATUS", utils.StatusCompleted, "CMD", invs[len(invs)-1].String())
	return nil
}

// uniqueNames returns the base name of each path, with _2, _3, ... added to
// the second and later paths sharing a base name.
func uniqueNames(paths []string) []string {
	used := map[string]bool{}
	for _, p := range paths {
		used[spectrumKey(p)] = true
	}
	seen := map[string]int{}
	names := make([]string, len(paths))
	for i, p := range paths {
		base := spectrumKey(p)
		seen[base]++
		if seen[base] == 1 {
			names[i] = base
			continue
		}
		n := seen[base]
		name := fmt.Sprintf("%s_%d", base, n)
		for used[name] {
			n++
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func (r *run) convertRaw(ctx context.Context, raws []string) ([]string, error) {
	exe, err := r.locate("msconvert")
	if err != nil {
		return nil, fmt.Errorf("converting raw files: %w", err)
	}
	mgfDir := filepath.Join(r.outDir, "mgf")
	var out []string
	for i, name := range uniqueNames(raws) {
		raw := raws[i]
		dir := mgfDir
		if name != spectrumKey(raw) {
			dir = filepath.Join(mgfDir, name)
		}
		inv, mgfPath, err := engines.MSConvert(exe, raw, dir)
		if err != nil {
			return nil, err
		}
		logPath := filepath.Join(mgfDir, name+".msconvert.log")
		if err := r.stage(ctx, "MSCONVERT", name, []engines.Invocation{inv}, logPath); err != nil {
			return nil, err
		}
		out = append(out, mgfPath)
	}
	return out, nil
}

// prepareSpectra checks every MGF file and splits files above the
// configured size. Files with duplicate titles, and files sharing a base
// name with an earlier one, are copied into the work folder under a name
// of their own, so that every search job has its own output files.
func (r *run) prepareSpectra(inputs []string) ([]string, error) {
	workDir := filepath.Join(r.outDir, "spectra")
	maxSpectra := r.h.Config.MaxSpectraPerFile
	var out []string
	for i, name := range uniqueNames(inputs) {
		in := inputs[i]
		report, err := mgf.Check(in)
		if err != nil {
			return nil, err
		}
		if report.Spectra == 0 {
			return nil, fmt.Errorf("%w: %s has no spectra", ErrInvalidSpectra, in)
		}
		if report.MissingTitles > 0 {
			return nil, fmt.Errorf("%w: %d spectra without title in %s", ErrInvalidSpectra, report.MissingTitles, in)
		}
		if report.MissingCharges > 0 || report.EmptyPeakLists > 0 {
			r.log.Warn("SEARCH", "PROGRAM", "MGF_CHECK", "SPECTRUM", name, "CMD", report.String())
		}

		path := in
		if report.DuplicateTitles > 0 || name != spectrumKey(in) {
			if err := utils.EnsureDir(workDir); err != nil {
				return nil, err
			}
			path = filepath.Join(workDir, name+".mgf")
			if same(path, in) {
				path = filepath.Join(workDir, name+"_renamed.mgf")
			}
			n, err := mgf.RenameDuplicateTitles(in, path)
			if err != nil {
				return nil, err
			}
			r.log.Info("SEARCH", "PROGRAM", "MGF_RENAME", "SPECTRUM", name, "STATUS", utils.StatusCompleted,
				"CMD", fmt.Sprintf("renamed %d duplicate titles of %s into %s", n, in, path))
		}

		if maxSpectra > 0 && report.Spectra > maxSpectra {
			chunks, err := mgf.SplitAs(path, workDir, name, maxSpectra)
			if err != nil {
				return nil, err
			}
			r.log.Info("SEARCH", "PROGRAM", "MGF_SPLIT", "SPECTRUM", name, "STATUS", utils.StatusCompleted,
				"CMD", fmt.Sprintf("split into %d files", len(chunks)))
			out = append(out, chunks...)
			continue
		}
		out = append(out, path)
	}

	// A chunk such as run_1.mgf can still meet an input of that name.
	owner := map[string]string{}
	for _, p := range out {
		key := spectrumKey(p)
		if prev, ok := owner[key]; ok {
			return nil, fmt.Errorf("%w: %s and %s would write the same result files; rename one of them",
				ErrInvalidSpectra, prev, p)
		}
		owner[key] = p
	}
	return out, nil
}

func same(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

func (r *run) ensureDecoys(fastaPath, tag string) (string, error) {
	has, err := fasta.HasDecoys(fastaPath, tag)
	if err != nil {
		return "", err
	}
	if has {
		return fastaPath, nil
	}
	out := filepath.Join(r.outDir, filepath.Base(fasta.DecoyName(fastaPath)))
	if utils.StageHasCompleted(r.entries, "DECOY", stageAll) && utils.FileExists(out) {
		return out, nil
	}
	stats, err := fasta.CreateDecoy(fastaPath, out, fasta.DecoyOptions{Tag: tag})
	if err != nil {
		return "", err
	}
	r.log.Info("SEARCH", "PROGRAM", "DECOY", "SPECTRUM", stageAll, "STATUS", utils.StatusCompleted,
		"CMD", fmt.Sprintf("%d targets, %d decoys in %s", stats.Targets, stats.Decoys, out))
	return out, nil
}

func (r *run) runJobs(ctx context.Context, setups []engineSetup, spectra []string, newJob func(engineSetup, string) engines.Job) error {
	type task struct {
		setup    engineSetup
		spectrum string
	}
	var tasks []task
	for _, s := range setups {
		for _, spectrum := range spectra {
			tasks = append(tasks, task{setup: s, spectrum: spectrum})
		}
	}
	results := make([]JobResult, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.h.Config.Jobs))
	for i, t := range tasks {
		job := newJob(t.setup, t.spectrum)
		program := strings.ToUpper(t.setup.adv.ID)
		key := spectrumKey(t.spectrum)
		results[i] = JobResult{
			Engine:   t.setup.adv.ID,
			Spectrum: t.spectrum,
			Output:   t.setup.builder.OutputFile(job),
		}
		g.Go(func() error {
			res := &results[i]
			if err := gctx.Err(); err != nil {
				res.Err = err
				return err
			}
			if utils.StageHasCompleted(r.entries, program, key) {
				res.Status = utils.StatusSkipped
				r.log.Info("SEARCH", "PROGRAM", program, "SPECTRUM", key, "STATUS", utils.StatusSkipped, "CMD", "already completed")
				return nil
			}
			start := time.Now()
			defer func() { res.Duration = time.Since(start) }()

			invs, err := t.setup.builder.Prepare(job)
			if err != nil {
				res.Status, res.Err = utils.StatusFailed, err
				r.log.Error("SEARCH", "PROGRAM", program, "SPECTRUM", key, "STATUS", utils.StatusFailed, "ERROR", err.Error())
				return fmt.Errorf("%s on %s: %w", t.setup.adv.Name, key, err)
			}
			err = r.stage(gctx, program, key, invs, filepath.Join(job.OutputDir, key+".log"))
			if err != nil {
				res.Status, res.Err = utils.StatusFailed, err
				return err
			}
			res.Status = utils.StatusCompleted
			return nil
		})
	}
	err := g.Wait()
	r.summary.Jobs = results
	return err
}

func (r *run) archive() error {
	files := append([]string{filepath.Join(r.outDir, ParamsFileName), r.summary.Fasta}, r.summary.Spectra...)
	for _, out := range r.summary.Completed() {
		if utils.FileExists(out) {
			files = append(files, out)
		}
	}
	path := filepath.Join(r.outDir, ArchiveFileName)
	if err := writeArchive(path, r.outDir, lo.Uniq(files)); err != nil {
		r.log.Error("SEARCH", "PROGRAM", "ZIP", "SPECTRUM", stageAll, "STATUS", utils.StatusFailed, "ERROR", err.Error())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	r.log.Info("SEARCH", "PROGRAM", "ZIP", "SPECTRUM", stageAll, "STATUS", utils.StatusCompleted, "CMD", path)
	r.summary.Archive = path
	return nil
}

func (r *run) peptideShaker(ctx context.Context) error {
	jar, err := r.locate("peptideshaker")
	if err != nil {
		return fmt.Errorf("PeptideShaker: %w", err)
	}
	java, err := toolcheck.FindJava(r.h.Config.Java)
	if err != nil {
		return fmt.Errorf("PeptideShaker: %w", err)
	}
	ids := lo.Filter(r.summary.Completed(), func(p string, _ int) bool { return utils.FileExists(p) })
	output := filepath.Join(r.outDir, PeptideShakerDB)
	inv, err := engines.PeptideShakerJob{
		Jar:                 jar,
		Java:                java,
		MemoryMB:            r.h.Config.MemoryMB,
		Reference:           filepath.Base(r.outDir),
		Fasta:               r.summary.Fasta,
		IdentificationFiles: ids,
		SpectrumFiles:       r.summary.Spectra,
		Output:              output,
	}.Invocation()
	if err != nil {
		return fmt.Errorf("PeptideShaker: %w", err)
	}
	if err := r.stage(ctx, "PEPTIDESHAKER", stageAll, []engines.Invocation{inv}, filepath.Join(r.outDir, "peptideshaker.log")); err != nil {
		return err
	}
	r.summary.PeptideShaker = output
	return nil
}
