// Package shm provides anonymous shared-memory files and mappings
// for passing pixel data to the compositor.
package shm

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Create returns a file suitable for sharing with the compositor. It
// prefers memfd_create and falls back to an unlinked file in /dev/shm
// on kernels without it. The file has no name in the filesystem
// either way.
func Create() (*os.File, error) {
	fd, err := unix.MemfdCreate("wlsink-shm", unix.MFD_CLOEXEC)
	if err == nil {
		return os.NewFile(uintptr(fd), "wlsink-shm"), nil
	}
	if err != unix.ENOSYS {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}

	path := fmt.Sprintf("/dev/shm/wlsink-%v-%v", os.Getpid(), time.Now().UnixNano())
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_EXCL, 0600)
	if err != nil {
		return nil, err
	}
	return file, os.Remove(path)
}

// Mmap is a mapped region of a shared-memory file.
type Mmap []byte

// MapShared maps size bytes of file with MAP_SHARED, so that writes
// are visible to the compositor's own mapping.
func MapShared(file *os.File, size int, prot int) (mmap Mmap, err error) {
	sc, err := file.SyscallConn()
	if err != nil {
		return nil, err
	}

	cerr := sc.Control(func(fd uintptr) {
		m, merr := unix.Mmap(int(fd), 0, size, prot, unix.MAP_SHARED)
		mmap, err = Mmap(m), merr
	})
	if err == nil {
		err = cerr
	}

	return mmap, err
}

func (mmap Mmap) Unmap() error {
	return unix.Munmap(mmap)
}
