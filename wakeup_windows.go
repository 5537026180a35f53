//go:build windows

package corofiber

// createWakeFd has no portable implementation on Windows in this
// package; the poller itself is already unsupported there (see
// poller_windows.go), so this is never called.
func createWakeFd() (readFD, writeFD int, err error) {
	return -1, -1, ErrUnsupportedPlatform
}

func closeWakeFd(readFD, writeFD int) {}

func writeWake(fd int) error { return ErrUnsupportedPlatform }

func drainWake(fd int) {}
