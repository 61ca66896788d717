package advocate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"github.com/gmaffy/search-whisperer/utils"
)

var (
	ErrNotDirectory       = errors.New("not a directory")
	ErrExecutableNotFound = errors.New("executable not found")
)

// ValidateFolder checks that dir holds an installation of a and returns the
// path of the executable. The folder itself and a bin/ subfolder are
// searched. When several versioned files match, the highest version wins.
func ValidateFolder(a Advocate, dir string) (string, error) {
	return validateFolder(a, dir, runtime.GOOS)
}

func validateFolder(a Advocate, dir string, goos string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("%s folder %s: %w", a.Name, dir, ErrNotDirectory)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s folder %s: %w", a.Name, dir, ErrNotDirectory)
	}

	var re *regexp.Regexp
	if a.Pattern != "" {
		re, err = regexp.Compile("^" + a.Pattern + "$")
		if err != nil {
			return "", fmt.Errorf("bad pattern for %s: %w", a.Name, err)
		}
	}
	names := a.ExecutableNames(goos)

	for _, d := range []string{dir, filepath.Join(dir, "bin")} {
		entries, err := os.ReadDir(d)
		if err != nil {
			continue
		}
		present := make(map[string]bool, len(entries))
		var matched []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			present[e.Name()] = true
			if re != nil && re.MatchString(e.Name()) {
				matched = append(matched, e.Name())
			}
		}
		for _, n := range names {
			if present[n] {
				return filepath.Join(d, n), nil
			}
		}
		if len(matched) > 0 {
			sort.Slice(matched, func(i, j int) bool {
				return utils.CompareVersions(utils.VersionFromName(matched[i]), utils.VersionFromName(matched[j])) < 0
			})
			return filepath.Join(d, matched[len(matched)-1]), nil
		}
	}

	expected := strings.Join(names, ", ")
	if re != nil {
		if expected != "" {
			expected += ", "
		}
		expected += a.Pattern
	}
	return "", fmt.Errorf("%s: no %s in %s: %w", a.Name, expected, dir, ErrExecutableNotFound)
}
