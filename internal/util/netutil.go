package util

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

const (
	// ListenFdsEnvKey holds the number of listening sockets passed by a
	// socket-activating parent (systemd, systemfd, and similar wrappers).
	ListenFdsEnvKey = "LISTEN_FDS"
	// ListenPidEnvKey names the process the sockets are meant for.
	ListenPidEnvKey = "LISTEN_PID"

	// listenFdsStart is the first passed descriptor; 0-2 are stdio.
	listenFdsStart = 3
)

// SetCloexec sets or clears the close-on-exec flag for a file descriptor.
func SetCloexec(fd uintptr, enabled bool) error {
	flags, err := unix.FcntlInt(fd, unix.F_GETFD, 0)
	if err != nil {
		return fmt.Errorf("fcntl F_GETFD failed for fd %d: %w", fd, err)
	}

	if enabled {
		flags |= unix.FD_CLOEXEC
	} else {
		flags &^= unix.FD_CLOEXEC
	}

	if _, err := unix.FcntlInt(fd, unix.F_SETFD, flags); err != nil {
		return fmt.Errorf("fcntl F_SETFD failed for fd %d: %w", fd, err)
	}
	return nil
}

// isCloexecSet checks if the FD_CLOEXEC flag is set on the given file descriptor.
func isCloexecSet(fd uintptr) (bool, error) {
	flags, err := unix.FcntlInt(fd, unix.F_GETFD, 0)
	if err != nil {
		return false, fmt.Errorf("fcntl F_GETFD failed for fd %d: %w", fd, err)
	}
	return flags&unix.FD_CLOEXEC != 0, nil
}

// NewListenerFromFD creates a net.Listener from an inherited descriptor.
// The descriptor is marked close-on-exec first so it does not leak into
// processes the server might start. net.FileListener works on a duplicate,
// so the original descriptor is closed before returning.
func NewListenerFromFD(fd uintptr) (net.Listener, error) {
	if err := SetCloexec(fd, true); err != nil {
		return nil, fmt.Errorf("failed to set FD_CLOEXEC on inherited FD %d: %w", fd, err)
	}

	file := os.NewFile(fd, fmt.Sprintf("inherited-listener-%d", fd))
	if file == nil {
		return nil, fmt.Errorf("os.NewFile returned nil for FD %d", fd)
	}
	defer file.Close()

	listener, err := net.FileListener(file)
	if err != nil {
		return nil, fmt.Errorf("net.FileListener failed for FD %d: %w", fd, err)
	}
	return listener, nil
}

// ParseInheritedListenerFDs returns the descriptors passed to process pid,
// reading the environment through getenv. It returns nil when nothing was
// passed or when LISTEN_PID names another process.
func ParseInheritedListenerFDs(getenv func(string) string, pid int) ([]uintptr, error) {
	countStr := getenv(ListenFdsEnvKey)
	if countStr == "" {
		return nil, nil
	}

	if pidStr := getenv(ListenPidEnvKey); pidStr != "" {
		target, err := strconv.Atoi(pidStr)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", ListenPidEnvKey, pidStr, err)
		}
		if target != pid {
			return nil, nil
		}
	}

	count, err := strconv.Atoi(countStr)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", ListenFdsEnvKey, countStr, err)
	}
	if count < 0 {
		return nil, fmt.Errorf("invalid negative %s value: %d", ListenFdsEnvKey, count)
	}

	fds := make([]uintptr, count)
	for i := range fds {
		fds[i] = uintptr(listenFdsStart + i)
	}
	return fds, nil
}

// GetInheritedListeners converts the sockets passed to this process into
// listeners. The activation variables are unset afterwards so they are not
// inherited again.
func GetInheritedListeners() ([]net.Listener, error) {
	fds, err := ParseInheritedListenerFDs(os.Getenv, os.Getpid())
	if err != nil {
		return nil, err
	}
	os.Unsetenv(ListenFdsEnvKey)
	os.Unsetenv(ListenPidEnvKey)

	listeners := make([]net.Listener, 0, len(fds))
	for _, fd := range fds {
		l, err := NewListenerFromFD(fd)
		if err != nil {
			for _, prev := range listeners {
				prev.Close()
			}
			return nil, err
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}
