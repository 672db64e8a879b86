// Package allocator preallocates a torrent's on-disk files to their
// final size before download begins, reporting incremental progress the
// same way verifier does.
package allocator

import (
	"github.com/tearfur/transmission/internal/metainfo"
)

// Progress reports bytes allocated so far.
type Progress struct {
	AllocatedSize int64
}

// Result is the outcome of an allocation pass.
type Result struct {
	Error error
}

// Allocator preallocates the files described by info under dir.
type Allocator struct {
	Info *metainfo.Info
	Dir  string

	ProgressC chan Progress
	ResultC   chan *Result
	stopC     chan struct{}
}

// New returns an Allocator for info's files under dir.
func New(info *metainfo.Info, dir string) *Allocator {
	return &Allocator{
		Info:      info,
		Dir:       dir,
		ProgressC: make(chan Progress),
		ResultC:   make(chan *Result, 1),
		stopC:     make(chan struct{}),
	}
}

// Stop aborts an in-progress allocation run.
func (a *Allocator) Stop() { close(a.stopC) }

// Run truncates every file to its final length, which is enough to
// reserve the space on most filesystems (sparse files); actual disk
// blocks are allocated lazily as pieces are written.
func (a *Allocator) Run() {
	var allocated int64
	for _, f := range a.Info.Files {
		select {
		case <-a.stopC:
			a.ResultC <- &Result{Error: errStopped}
			return
		default:
		}
		if err := a.allocateOne(f); err != nil {
			a.ResultC <- &Result{Error: err}
			return
		}
		allocated += f.Length
		select {
		case a.ProgressC <- Progress{AllocatedSize: allocated}:
		case <-a.stopC:
			a.ResultC <- &Result{Error: errStopped}
			return
		}
	}
	a.ResultC <- &Result{}
}

var errStopped = allocStoppedError{}

type allocStoppedError struct{}

func (allocStoppedError) Error() string { return "allocator: stopped" }
