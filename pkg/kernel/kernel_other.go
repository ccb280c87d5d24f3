//go:build !linux

package kernel

import "errors"

func Get() (Version, error) {
	return Version{}, errors.ErrUnsupported
}
