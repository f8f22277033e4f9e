//go:build windows

package mmapstore

// Windows reads use direct file I/O only.

func (seg *segment) remap() {
	seg.data = nil
}

func (seg *segment) unmap() {}
