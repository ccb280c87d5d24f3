//go:build !linux

package process

import "errors"

func SetCPUAffinity(index int) error {
	return errors.ErrUnsupported
}
