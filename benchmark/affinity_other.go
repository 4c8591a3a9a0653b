//go:build !linux

package benchmark

import "github.com/pkg/errors"

func pinThread(cpu int) error {
	return errors.Errorf("host cpu pinning is not supported on this platform (cpu %d)", cpu)
}
