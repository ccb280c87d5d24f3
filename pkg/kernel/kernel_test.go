package kernel_test

import (
	"runtime"
	"testing"

	"github.com/dignifiedquire/rio/pkg/kernel"
	"github.com/google/go-cmp/cmp"
)

func TestGet(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("linux only")
	}
	v, err := kernel.Get()
	if err != nil {
		t.Fatal(err)
	}
	t.Log(v)
	if v.Major < 2 {
		t.Error("implausible kernel version", v)
	}
}

func TestParse(t *testing.T) {
	cases := map[string]kernel.Version{
		"6.8.0-45-generic":      {Major: 6, Minor: 8, Patch: 0, Flavor: "-45-generic"},
		"5.10":                  {Major: 5, Minor: 10},
		"5.4.0":                 {Major: 5, Minor: 4},
		"5.15-rc1":              {Major: 5, Minor: 15, Flavor: "-rc1"},
		"4.19.112+":             {Major: 4, Minor: 19, Patch: 112, Flavor: "+"},
		"6.1.0.fc-custom":       {Major: 6, Minor: 1, Flavor: ".fc-custom"},
		"5.6.19-microsoft-wsl2": {Major: 5, Minor: 6, Patch: 19, Flavor: "-microsoft-wsl2"},
	}
	for release, want := range cases {
		got, err := kernel.Parse(release)
		if err != nil {
			t.Errorf("%s: %v", release, err)
			continue
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s (-want +got):\n%s", release, diff)
		}
	}
	for _, release := range []string{"", "linux", "x.1", "6"} {
		if _, err := kernel.Parse(release); err == nil {
			t.Errorf("%q: want error", release)
		}
	}
}

func TestCompare(t *testing.T) {
	a := kernel.Version{Major: 5, Minor: 6}
	b := kernel.Version{Major: 5, Minor: 10}
	if kernel.Compare(a, b) != -1 || kernel.Compare(b, a) != 1 || kernel.Compare(a, a) != 0 {
		t.Error("unexpected ordering")
	}
	if kernel.Compare(kernel.Version{Major: 6}, b) != 1 {
		t.Error("major should dominate")
	}
}
