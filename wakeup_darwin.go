//go:build darwin

package corofiber

import "golang.org/x/sys/unix"

// createWakeFd returns a self-pipe's read and write ends, the Darwin
// substitute for Linux's eventfd (kqueue has no native eventfd-like
// primitive usable across process boundaries here).
func createWakeFd() (readFD, writeFD int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, WrapError("pipe", err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return -1, -1, WrapError("set nonblock", err)
		}
	}
	return fds[0], fds[1], nil
}

func closeWakeFd(readFD, writeFD int) {
	_ = unix.Close(readFD)
	if writeFD != readFD {
		_ = unix.Close(writeFD)
	}
}

func writeWake(fd int) error {
	_, err := unix.Write(fd, []byte{1})
	if err == unix.EAGAIN {
		return nil // pipe already has a pending byte
	}
	return err
}

func drainWake(fd int) {
	var buf [64]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			return
		}
	}
}
