package session

import "syscall"

// freeSpace reports the free and total byte capacity of the filesystem
// containing path, the two quantities the free-space RPC call answers
// with (size-bytes and total_size respectively).
func freeSpace(path string) (free, total int64, err error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	free = int64(st.Bavail) * int64(st.Bsize)
	total = int64(st.Blocks) * int64(st.Bsize)
	return free, total, nil
}
