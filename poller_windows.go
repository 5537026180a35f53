//go:build windows

package corofiber

import (
	"time"
	"unsafe"
)

// windowsPoller is a best-effort stub: spec.md and SPEC_FULL.md carry
// Windows only as "returns not implemented", matching the teacher's own
// platform-stub shape for unsupported backends rather than attempting a
// real IOCP port.
type windowsPoller struct{}

func newPoller() (Poller, error) {
	return nil, ErrUnsupportedPlatform
}

func (windowsPoller) Associate(fd int, events IOEvents, ptr unsafe.Pointer, fired bool) error {
	return ErrUnsupportedPlatform
}

func (windowsPoller) Dissociate(fd int, fired, onclose bool) error {
	return ErrUnsupportedPlatform
}

func (windowsPoller) Wait(events []ReadyEvent, timeout time.Duration) (int, error) {
	return 0, ErrUnsupportedPlatform
}

func (windowsPoller) Close() error {
	return nil
}
