//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris || aix

package mmapstore

import "golang.org/x/sys/unix"

// remap replaces the read-only view with one covering the current file
// size. Mapping failures leave the view nil; reads fall back to direct I/O.
func (seg *segment) remap() {
	seg.unmap()
	if seg.size == 0 || seg.f == nil {
		return
	}
	data, err := unix.Mmap(int(seg.f.Fd()), 0, int(seg.size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return
	}
	seg.data = data
}

// unmap releases any active mapping.
func (seg *segment) unmap() {
	if seg.data != nil {
		_ = unix.Munmap(seg.data)
		seg.data = nil
	}
}
