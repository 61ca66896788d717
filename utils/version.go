package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var versionRe = regexp.MustCompile(`\d+(\.\d+)*(-[A-Za-z0-9]+(\.\d+)*)?`)

// VersionFromName pulls the first dotted version out of a file name such as
// PeptideShaker-3.0.1.jar. It returns "" when there is none.
func VersionFromName(name string) string {
	return versionRe.FindString(name)
}

// CompareVersions compares dotted numeric versions. Missing parts count as
// zero and a pre-release suffix (3.0.0-beta) sorts before the release.
// The result is -1, 0 or 1.
func CompareVersions(a, b string) int {
	aNum, aPre := splitVersion(a)
	bNum, bPre := splitVersion(b)

	n := len(aNum)
	if len(bNum) > n {
		n = len(bNum)
	}
	for i := 0; i < n; i++ {
		var x, y int
		if i < len(aNum) {
			x = aNum[i]
		}
		if i < len(bNum) {
			y = bNum[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}

	switch {
	case aPre == bPre:
		return 0
	case aPre == "":
		return 1
	case bPre == "":
		return -1
	}
	return comparePreRelease(aPre, bPre)
}

// comparePreRelease orders dotted pre-release suffixes part by part:
// numeric parts numerically, anything else as text, and a shorter suffix
// before a longer one it prefixes (beta < beta.1 < beta.2 < beta.10).
func comparePreRelease(a, b string) int {
	aParts, bParts := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(aParts) && i < len(bParts); i++ {
		x, xErr := strconv.Atoi(aParts[i])
		y, yErr := strconv.Atoi(bParts[i])
		switch {
		case xErr == nil && yErr == nil:
			if x != y {
				return sign(x - y)
			}
		case xErr == nil:
			return -1
		case yErr == nil:
			return 1
		default:
			if c := strings.Compare(aParts[i], bParts[i]); c != 0 {
				return c
			}
		}
	}
	return sign(len(aParts) - len(bParts))
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func splitVersion(v string) ([]int, string) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	pre := ""
	if i := strings.IndexByte(v, '-'); i >= 0 {
		pre = v[i+1:]
		v = v[:i]
	}
	var nums []int
	for _, p := range strings.Split(v, ".") {
		n, err := strconv.Atoi(p)
		if err != nil {
			n = 0
		}
		nums = append(nums, n)
	}
	return nums, pre
}
