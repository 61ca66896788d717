package toolcheck

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

var ErrJavaNotFound = errors.New("no java runtime found")

const JavaRemediation = "Install Java 8 or newer and set JAVA_HOME, or set java in the config file."

// FindJava returns the java executable to use. The order is the explicit
// hint, $JAVA_HOME/bin/java, then java on PATH.
func FindJava(hint string) (string, error) {
	if hint != "" {
		if info, err := os.Stat(hint); err == nil && !info.IsDir() {
			return hint, nil
		}
		if p, err := exec.LookPath(hint); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("%w: %s does not exist", ErrJavaNotFound, hint)
	}

	name := "java"
	if runtime.GOOS == "windows" {
		name = "java.exe"
	}
	if home := os.Getenv("JAVA_HOME"); home != "" {
		candidate := filepath.Join(home, "bin", name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	return "", ErrJavaNotFound
}
