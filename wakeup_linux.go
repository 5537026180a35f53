//go:build linux

package corofiber

import "golang.org/x/sys/unix"

// createWakeFd returns a single eventfd used as both the read and write
// end of the runtime's wakeup mechanism.
func createWakeFd() (readFD, writeFD int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, WrapError("eventfd", err)
	}
	return fd, fd, nil
}

func closeWakeFd(readFD, writeFD int) {
	_ = unix.Close(readFD)
}

func writeWake(fd int) error {
	var one [8]byte
	one[0] = 1
	_, err := unix.Write(fd, one[:])
	if err == unix.EAGAIN {
		return nil // a wakeup is already pending
	}
	return err
}

func drainWake(fd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			return
		}
	}
}
