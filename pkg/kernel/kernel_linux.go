//go:build linux

package kernel

import (
	"sync"

	"golang.org/x/sys/unix"
)

var (
	version     Version
	versionErr  error
	versionOnce sync.Once
)

func Get() (Version, error) {
	versionOnce.Do(func() {
		uts := unix.Utsname{}
		if versionErr = unix.Uname(&uts); versionErr != nil {
			return
		}
		version, versionErr = Parse(unix.ByteSliceToString(uts.Release[:]))
	})
	return version, versionErr
}
