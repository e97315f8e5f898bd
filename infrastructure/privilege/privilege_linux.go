// Package privilege best-effort drops process privileges once setup is
// done: root to create/configure the tun device and set up NAT, then
// an unprivileged user for the run loop.
package privilege

import (
	"fmt"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// DropTo switches the process's effective uid/gid to the named
// unprivileged user. username == "" is a no-op: the caller keeps
// whatever privileges it started with.
func DropTo(username string) error {
	if username == "" {
		return nil
	}
	u, err := user.Lookup(username)
	if err != nil {
		return fmt.Errorf("privilege: lookup %q: %w", username, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("privilege: parse gid %q: %w", u.Gid, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("privilege: parse uid %q: %w", u.Uid, err)
	}
	if err := unix.Setgid(gid); err != nil {
		return fmt.Errorf("privilege: setgid %d: %w", gid, err)
	}
	if err := unix.Setuid(uid); err != nil {
		return fmt.Errorf("privilege: setuid %d: %w", uid, err)
	}
	return nil
}

// IsElevated reports whether the process is currently running as root,
// required for tun device creation and NAT configuration.
func IsElevated() bool {
	return unix.Geteuid() == 0
}
