//go:build linux

package benchmark

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// pinThread restricts the calling OS thread to one host CPU. The caller must hold the
// thread with runtime.LockOSThread.
func pinThread(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return errors.Wrapf(err, "pin thread to cpu %d", cpu)
	}
	return nil
}
