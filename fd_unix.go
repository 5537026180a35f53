//go:build linux || darwin

package corofiber

import "golang.org/x/sys/unix"

func closeFD(fd int) error {
	return unix.Close(fd)
}

func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

func socketError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

// acceptNonblock accepts one pending connection on a nonblocking
// listening socket.
func acceptNonblock(fd int) (int, error) {
	connFD, _, err := unix.Accept(fd)
	if err != nil {
		return -1, err
	}
	return connFD, nil
}

// isWouldBlock reports whether err is the nonblocking "no work right
// now" signal (EAGAIN/EWOULDBLOCK), as opposed to a genuine failure.
func isWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// isFDExhausted reports whether err indicates the process or system is out
// of file descriptors, the condition the fd-cache spare-descriptor trick
// exists to recover from.
func isFDExhausted(err error) bool {
	return err == unix.EMFILE || err == unix.ENFILE
}

// openSpareFD opens one throwaway descriptor held in reserve for the
// fd-cache trick: when accept(2) fails with EMFILE/ENFILE, closing one of
// these frees up exactly one slot.
func openSpareFD() (int, error) {
	fd, err := unix.Open("/dev/null", unix.O_RDONLY, 0)
	if err != nil {
		return -1, WrapError("open spare fd", err)
	}
	return fd, nil
}
