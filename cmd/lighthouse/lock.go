package main

import (
	"fmt"
	"os"
)

// appLock is an O_EXCL-created lock file guarding against a second
// instance sharing the same data directory.
type appLock struct {
	path string
	f    *os.File
}

// acquireLock creates path exclusively, failing if it already exists, the
// same posture the design's "exit code 2: already running" requirement
// describes.
func acquireLock(path string) (*appLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("lighthouse is already running against this data directory (lock file %s exists)", path)
		}
		return nil, fmt.Errorf("creating lock file: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	return &appLock{path: path, f: f}, nil
}

func (l *appLock) release() {
	l.f.Close()
	os.Remove(l.path)
}
