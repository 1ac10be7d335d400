//go:build darwin || linux

package transport

import (
	"net"
	"syscall"

	"fortio.org/log"
	"golang.org/x/sys/unix"
)

// waitReadable checks readiness with a zero-timeout poll(2). When nothing is
// pending the runtime poller parks until the descriptor becomes readable or
// the read deadline passes.
func waitReadable(nc net.Conn) error {
	sc, ok := nc.(syscall.Conn)
	if !ok {
		return nil
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		log.LogVf("No raw descriptor for %v, falling back to blocking reads: %v", nc.RemoteAddr(), err)
		return nil
	}

	polled := false
	return raw.Read(func(fd uintptr) bool {
		if polled {
			return true
		}
		polled = true
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		for {
			n, err := unix.Poll(fds, 0)
			if err == unix.EINTR {
				continue
			}
			// errors are left for the following read to report
			return err != nil || n > 0
		}
	})
}
