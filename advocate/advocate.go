// Package advocate describes the search engines and helper tools that can
// be driven from the command line, and how to recognise an installation.
package advocate

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/exp/maps"
)

var ErrUnknownAdvocate = errors.New("unknown advocate")

// Coordinates locate an artifact in a Maven repository.
type Coordinates struct {
	GroupID    string
	ArtifactID string
}

// Advocate identifies one tool integration.
type Advocate struct {
	ID   string
	Name string

	// Executable file names per GOOS. The "" key applies to every other OS.
	Executables map[string][]string

	// Pattern, when set, is a regular expression matched against the whole
	// file name, for versioned jars such as PeptideShaker-3.0.1.jar.
	Pattern string

	// JVM hosted tools are launched with java -jar.
	JVM bool

	// Wrapper is an interpreter put in front of the executable, e.g. mono.
	Wrapper string

	// CheckArg is passed when checking that the tool starts.
	CheckArg string

	// IgnorableStderr marks stderr lines that are a banner, not an error.
	IgnorableStderr string

	// GUI tools open a window when launched, so they are never launched by a check.
	GUI bool

	Engine      bool
	WindowsOnly bool

	Remediation string

	Maven *Coordinates
}

var registry = map[string]Advocate{
	"omssa": {
		ID:          "omssa",
		Name:        "OMSSA",
		Executables: map[string][]string{"windows": {"omssacl.exe"}, "": {"omssacl"}},
		CheckArg:    "-version",
		Engine:      true,
		Remediation: "OMSSA could not be started. Make sure omssacl is executable (chmod a+x omssacl) " +
			"and that mods.xml and usermods.xml are in the same folder.",
	},
	"xtandem": {
		ID:          "xtandem",
		Name:        "X!Tandem",
		Executables: map[string][]string{"windows": {"tandem.exe"}, "": {"tandem"}},
		Engine:      true,
		Remediation: "X!Tandem could not be started. Make sure tandem is executable (chmod a+x tandem) " +
			"and that libexpat and libpthread are installed.",
	},
	"msgf": {
		ID:          "msgf",
		Name:        "MS-GF+",
		Executables: map[string][]string{"": {"MSGFPlus.jar"}},
		JVM:         true,
		Engine:      true,
		Remediation: "MS-GF+ could not be started. MS-GF+ needs Java 8 or newer; " +
			"set java in the config file or JAVA_HOME.",
	},
	"msamanda": {
		ID:          "msamanda",
		Name:        "MS Amanda",
		Executables: map[string][]string{"windows": {"MSAmanda.exe"}, "": {"MSAmanda"}},
		CheckArg:    "--version",
		Engine:      true,
		Remediation: "MS Amanda could not be started. MS Amanda needs the .NET runtime; " +
			"make sure it is installed and that MSAmanda is executable.",
	},
	"myrimatch": {
		ID:          "myrimatch",
		Name:        "MyriMatch",
		Executables: map[string][]string{"windows": {"myrimatch.exe"}, "": {"myrimatch"}},
		CheckArg:    "-help",
		Engine:      true,
		Remediation: "MyriMatch could not be started. Make sure myrimatch is executable (chmod a+x myrimatch).",
	},
	"comet": {
		ID:   "comet",
		Name: "Comet",
		Executables: map[string][]string{
			"windows": {"comet.exe"},
			"darwin":  {"comet.macos.exe", "comet"},
			"":        {"comet.linux.exe", "comet"},
		},
		IgnorableStderr: "Comet version",
		Engine:          true,
		Remediation:     "Comet could not be started. Make sure the Comet binary for your platform is executable.",
	},
	"tide": {
		ID:              "tide",
		Name:            "Tide",
		Executables:     map[string][]string{"windows": {"crux.exe"}, "": {"crux"}},
		CheckArg:        "version",
		IgnorableStderr: "INFO:",
		Engine:          true,
		Remediation:     "Tide could not be started. Tide ships with crux; make sure crux is executable.",
	},
	"andromeda": {
		ID:          "andromeda",
		Name:        "Andromeda",
		Executables: map[string][]string{"": {"AndromedaCmd.exe"}},
		Engine:      true,
		WindowsOnly: true,
		Remediation: "Andromeda could not be started. Andromeda runs on Windows only and needs the .NET framework.",
	},
	"peptideshaker": {
		ID:          "peptideshaker",
		Name:        "PeptideShaker",
		Pattern:     `PeptideShaker-\d+(\.\d+)*(-[A-Za-z0-9.]+)?\.jar`,
		JVM:         true,
		GUI:         true,
		Remediation: "PeptideShaker was not found. Point tools.peptideshaker at the folder holding PeptideShaker-X.Y.Z.jar.",
		Maven:       &Coordinates{GroupID: "eu.isas.peptideshaker", ArtifactID: "PeptideShaker"},
	},
	"msconvert": {
		ID:          "msconvert",
		Name:        "ProteoWizard msconvert",
		Executables: map[string][]string{"windows": {"msconvert.exe"}, "": {"msconvert"}},
		CheckArg:    "--help",
		Remediation: "msconvert could not be started. Install ProteoWizard and point tools.msconvert at its folder.",
	},
	"makeblastdb": {
		ID:          "makeblastdb",
		Name:        "makeblastdb",
		Executables: map[string][]string{"windows": {"makeblastdb.exe"}, "": {"makeblastdb"}},
		CheckArg:    "-version",
		Remediation: "makeblastdb could not be started. OMSSA needs it to format the FASTA database; install BLAST+.",
	},
}

var aliases = buildAliases()

func buildAliases() map[string]string {
	a := make(map[string]string)
	for id, adv := range registry {
		a[normalize(id)] = id
		a[normalize(adv.Name)] = id
	}
	a["tandem"] = "xtandem"
	a["msgfplus"] = "msgf"
	a["crux"] = "tide"
	a["proteowizard"] = "msconvert"
	return a
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Lookup finds an advocate by id or display name, ignoring case and
// punctuation, so "X!Tandem", "xtandem" and "tandem" are the same tool.
func Lookup(name string) (Advocate, error) {
	id, ok := aliases[normalize(name)]
	if !ok {
		return Advocate{}, fmt.Errorf("%w: %q", ErrUnknownAdvocate, name)
	}
	return registry[id], nil
}

// All returns every advocate sorted by id.
func All() []Advocate {
	ids := maps.Keys(registry)
	slices.Sort(ids)
	out := make([]Advocate, 0, len(ids))
	for _, id := range ids {
		out = append(out, registry[id])
	}
	return out
}

// Engines returns the search engines sorted by id.
func Engines() []Advocate {
	var out []Advocate
	for _, adv := range All() {
		if adv.Engine {
			out = append(out, adv)
		}
	}
	return out
}

// ExecutableNames returns the expected file names on goos.
func (a Advocate) ExecutableNames(goos string) []string {
	if names, ok := a.Executables[goos]; ok {
		return names
	}
	return a.Executables[""]
}

// Executable returns the primary executable name for the running OS.
func (a Advocate) Executable() string {
	names := a.ExecutableNames(runtime.GOOS)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Supported reports whether the tool can run on goos.
func (a Advocate) Supported(goos string) bool {
	return !a.WindowsOnly || goos == "windows"
}

func (a Advocate) String() string {
	return a.Name
}
