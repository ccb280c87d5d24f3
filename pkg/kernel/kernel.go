// Package kernel reads the running kernel release and gates io_uring
// features on it.
package kernel

import (
	"fmt"
	"strconv"
	"strings"
)

type Version struct {
	Major  int
	Minor  int
	Patch  int
	Flavor string
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d%s", v.Major, v.Minor, v.Patch, v.Flavor)
}

func Compare(a, b Version) int {
	if a.Major != b.Major {
		return sign(a.Major - b.Major)
	}
	if a.Minor != b.Minor {
		return sign(a.Minor - b.Minor)
	}
	return sign(a.Patch - b.Patch)
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

// Check reports whether the running kernel is at least major.minor.
func Check(major, minor int) (bool, error) {
	v, err := Get()
	if err != nil {
		return false, err
	}
	return Compare(v, Version{Major: major, Minor: minor}) >= 0, nil
}

// Parse reads a release string such as "6.8.0-45-generic" or "5.10".
func Parse(release string) (v Version, err error) {
	parts := strings.SplitN(release, ".", 3)
	if len(parts) < 2 {
		err = fmt.Errorf("kernel: cannot parse version %q", release)
		return
	}
	if v.Major, err = strconv.Atoi(parts[0]); err != nil {
		err = fmt.Errorf("kernel: cannot parse version %q", release)
		return
	}
	minor, rest := leadingDigits(parts[1])
	if minor == "" {
		err = fmt.Errorf("kernel: cannot parse version %q", release)
		return
	}
	v.Minor, _ = strconv.Atoi(minor)
	if len(parts) == 3 && rest == "" {
		var patch string
		patch, rest = leadingDigits(parts[2])
		v.Patch, _ = strconv.Atoi(patch)
		if patch == "" {
			rest = "." + parts[2]
		}
	}
	v.Flavor = rest
	return
}

func leadingDigits(s string) (digits string, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}
