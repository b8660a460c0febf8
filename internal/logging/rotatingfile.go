package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotatingFile is an io.Writer that rolls over to a fresh file once a day,
// keeping at most maxFiles prior files around. It is a single-platform,
// simplified take on the teacher's RotatingFile/RotationStrategy pair: this
// client only ever needs daily rotation, so the strategy interface the
// teacher uses to pick between RotateNever/RotateOnce/RotateDaily is
// collapsed into the one policy it would have selected anyway.
type RotatingFile struct {
	mu        sync.Mutex
	dir       string
	base      string
	maxFiles  uint16
	file      *os.File
	birthTime time.Time
}

// OpenRotatingFile opens (creating if needed) the log file base+".log" under
// dir. Rotated copies beyond maxFiles are pruned at each rotation, not here.
func OpenRotatingFile(dir, base string, maxFiles uint16) (*RotatingFile, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	rf := &RotatingFile{dir: dir, base: base, maxFiles: maxFiles}
	if err := rf.openCurrent(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *RotatingFile) currentPath() string {
	return filepath.Join(rf.dir, rf.base+".log")
}

func (rf *RotatingFile) openCurrent() error {
	f, err := os.OpenFile(rf.currentPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	rf.file = f
	rf.birthTime = info.ModTime()
	if info.Size() == 0 {
		rf.birthTime = time.Now()
	}
	return nil
}

// Write implements io.Writer, rotating first if the current file was born on
// an earlier calendar day than now.
func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.shouldRotate() {
		if err := rf.rotate(); err != nil {
			return 0, err
		}
	}
	return rf.file.Write(p)
}

func (rf *RotatingFile) shouldRotate() bool {
	now := time.Now()
	info, err := rf.file.Stat()
	if err != nil || info.Size() == 0 {
		return false
	}
	return now.Day() != rf.birthTime.Day() || now.Month() != rf.birthTime.Month() || now.Year() != rf.birthTime.Year()
}

func (rf *RotatingFile) rotate() error {
	_ = rf.file.Close()
	rolled := filepath.Join(rf.dir, fmt.Sprintf("%s-%s.log", rf.base, rf.birthTime.Format("20060102T150405")))
	if err := os.Rename(rf.currentPath(), rolled); err != nil {
		return err
	}
	if err := rf.openCurrent(); err != nil {
		return err
	}
	return rf.prune()
}

func (rf *RotatingFile) prune() error {
	if rf.maxFiles == 0 {
		return nil
	}
	entries, err := os.ReadDir(rf.dir)
	if err != nil {
		return err
	}
	prefix := rf.base + "-"
	var rolled []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".log") {
			rolled = append(rolled, e.Name())
		}
	}
	sort.Strings(rolled)
	for len(rolled) > int(rf.maxFiles) {
		_ = os.Remove(filepath.Join(rf.dir, rolled[0]))
		rolled = rolled[1:]
	}
	return nil
}

// Close closes the underlying file.
func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.file.Close()
}
