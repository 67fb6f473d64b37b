// Package dchan opens the raw D-channel character device and exchanges
// HDLC-framed octets with it. It is the lowest layer of the stack: q921
// reads whole frames from Device.Read and writes whole frames to
// Device.Write; bit-stuffing, flag and FCS handling belong to the kernel
// driver (mISDN/wanpipe-style), not to this package.
//
// Grounded on the host ioctl idiom from
// BigBossBoolingB-VDATABPro/core_engine/network/tap_device.go: open the
// character device, configure it with one ioctl, then plain read/write.
// See SPEC_FULL.md §3 (domain dependency table, golang.org/x/sys row).
package dchan

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Device is an open D-channel character device.
type Device struct {
	f    *os.File
	name string
}

// lineDiscipline mirrors the ifreq-shaped struct Linux HDLC line
// discipline ioctls expect: a name buffer followed by a small union of
// flags, the same layout tap_device.go's ifr struct uses for TUNSETIFF.
type lineDiscipline struct {
	Name  [16]byte
	Flags uint16
	_     [2]byte // padding to match the kernel's packed ifreq tail
}

// hdlcSetLineDiscipline is the request code this engine issues to put
// the device into raw HDLC-framed mode (analogous to TUNSETIFF's
// IFF_TAP|IFF_NO_PI: "hand me framed octets, no extra header").
// The numeric value follows the Linux generic HDLC ioctl numbering
// convention (SIOCWANDEV family); actual device behavior is
// hardware/driver specific, and this constant is the engine's own
// convention, not a kernel UAPI constant this module can import.
const hdlcSetLineDiscipline = 0x89f0

// Open opens the device at path and configures it for framed HDLC I/O.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("dchan: open %s: %w", path, err)
	}

	var ld lineDiscipline
	copy(ld.Name[:], path)
	ld.Flags = unix.IFF_NO_PI

	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uintptr(hdlcSetLineDiscipline), uintptr(unsafe.Pointer(&ld)))
	if errno != 0 {
		f.Close()
		return nil, fmt.Errorf("dchan: set line discipline on %s: %w", path, errno)
	}

	return &Device{f: f, name: path}, nil
}

// Read reads one HDLC frame's worth of octets (flags/FCS already
// stripped by the driver) into buf.
func (d *Device) Read(buf []byte) (int, error) {
	n, err := d.f.Read(buf)
	if err != nil {
		return n, fmt.Errorf("dchan: read %s: %w", d.name, err)
	}
	return n, nil
}

// Write sends one frame's worth of octets; the driver adds flags/FCS.
func (d *Device) Write(frame []byte) error {
	if _, err := d.f.Write(frame); err != nil {
		return fmt.Errorf("dchan: write %s: %w", d.name, err)
	}
	return nil
}

// Close releases the device file descriptor.
func (d *Device) Close() error {
	return d.f.Close()
}
