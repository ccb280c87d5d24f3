//go:build !unix

package process

import "errors"

func SetCurrentProcessPriority(level Priority) error {
	return errors.ErrUnsupported
}
