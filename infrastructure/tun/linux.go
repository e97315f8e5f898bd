// Package tun creates and configures the Linux TUN device the engine
// reads inner IP datagrams from and writes them back to.
package tun

import (
	"fmt"
	"os"
	"os/exec"
	"unsafe"

	"golang.org/x/sys/unix"

	"sipvpn/application"
)

const (
	ifNameSize = 16
	tunSetIff  = 0x400454ca
	iffTun     = 0x0001
	iffNoPI    = 0x1000
)

type ifReq struct {
	Name  [ifNameSize]byte
	Flags uint16
	_     [22]byte // pad to the kernel's struct ifreq size
}

// Config describes how to create and address a TUN interface.
type Config struct {
	InterfaceName string
	InterfaceCIDR string // e.g. "10.0.0.1/24"
	MTU           int
}

// Open creates (if needed) and opens the named TUN device, assigns it
// the configured address and MTU, and brings it up. It must run with
// CAP_NET_ADMIN (or as root), before any privilege drop.
func Open(cfg Config) (application.TunDevice, error) {
	file, err := os.OpenFile("/dev/net/tun", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("tun: open /dev/net/tun: %w", err)
	}

	var req ifReq
	copy(req.Name[:], cfg.InterfaceName)
	req.Flags = iffTun | iffNoPI

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, file.Fd(), uintptr(tunSetIff), uintptr(unsafe.Pointer(&req))); errno != 0 {
		_ = file.Close()
		return nil, fmt.Errorf("tun: TUNSETIFF %s: %w", cfg.InterfaceName, errno)
	}

	if err := configureLink(cfg); err != nil {
		_ = file.Close()
		return nil, err
	}

	return &device{file: file}, nil
}

func configureLink(cfg Config) error {
	if err := runIP("addr", "add", cfg.InterfaceCIDR, "dev", cfg.InterfaceName); err != nil {
		return err
	}
	if err := runIP("link", "set", "dev", cfg.InterfaceName, "mtu", fmt.Sprintf("%d", cfg.MTU)); err != nil {
		return err
	}
	if err := runIP("link", "set", "dev", cfg.InterfaceName, "up"); err != nil {
		return err
	}
	return nil
}

// Destroy removes the named TUN interface, undoing Open's link setup.
func Destroy(ifName string) error {
	return runIP("link", "delete", ifName)
}

func runIP(args ...string) error {
	cmd := exec.Command("ip", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("tun: ip %v: %w, output: %s", args, err, output)
	}
	return nil
}

type device struct {
	file *os.File
}

func (d *device) Read(b []byte) (int, error)  { return d.file.Read(b) }
func (d *device) Write(b []byte) (int, error) { return d.file.Write(b) }
func (d *device) Close() error                { return d.file.Close() }

var _ application.TunDevice = (*device)(nil)
