package utils

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Stage status values written to the run log.
const (
	StatusStarted   = "STARTED"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusSkipped   = "SKIPPED"
)

// LogEntry is one JSON line of a run log.
type LogEntry struct {
	Timestamp string `json:"time"`
	Level     string `json:"level"`
	Tool      string `json:"msg"`
	Program   string `json:"PROGRAM"`
	Spectrum  string `json:"SPECTRUM"`
	Status    string `json:"STATUS"`
	Cmd       string `json:"CMD"`
	Run       string `json:"RUN"`
}

// NewRunLogger returns a logger writing JSON lines to logPath and plain
// text to console. Close the returned file when the run is over.
func NewRunLogger(logPath string, console io.Writer, level slog.Level) (*slog.Logger, *os.File, error) {
	if console == nil {
		return OpenRunLog(logPath, level)
	}
	return OpenRunLog(logPath, level, slog.NewTextHandler(console, &slog.HandlerOptions{Level: level}))
}

// OpenRunLog appends JSON lines to logPath and also sends every record to
// the extra handlers.
func OpenRunLog(logPath string, level slog.Level, also ...slog.Handler) (*slog.Logger, *os.File, error) {
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", logPath, err)
	}

	jsonHandler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: level})
	if len(also) == 0 {
		return slog.New(jsonHandler), logFile, nil
	}
	return slog.New(slogmulti.Fanout(append([]slog.Handler{jsonHandler}, also...)...)), logFile, nil
}

// ParseLogFile reads the JSON lines of a run log. A missing file is an
// empty log; lines that are not JSON are skipped.
func ParseLogFile(logPath string) ([]LogEntry, error) {
	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, err
	}
	return entries, nil
}

// StageHasCompleted reports whether the latest status logged for program
// on spectrum is COMPLETED. A stage that was restarted and then failed
// counts as not completed. SKIPPED lines do not change the status.
func StageHasCompleted(entries []LogEntry, program, spectrum string) bool {
	last := ""
	for _, e := range entries {
		if e.Program == program && e.Spectrum == spectrum && e.Status != "" && e.Status != StatusSkipped {
			last = e.Status
		}
	}
	return last == StatusCompleted
}
