// Package disk implements block-addressed synchronous io against the database
// file. Pages are read and written whole; page identifiers are allocated by
// the buffer pool, not here.
package disk

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ncw/directio"
	"github.com/pkg/errors"
)

// PageSize is the size of an individual page (ie the maximum number of bytes
// that a page can hold) - defaults to 4kb.
const PageSize int64 = directio.BlockSize

// PageID uniquely identifies a page within a database file.
type PageID int32

// InvalidPageID is the PageID for when there is no page being held.
const InvalidPageID PageID = -1

// Manager is the contract the buffer pool consumes: blocking, byte-exact page
// reads and writes.
type Manager interface {
	// ReadPage fills buf with the PageSize bytes stored for the given page.
	ReadPage(id PageID, buf []byte) error
	// WritePage durably stores the PageSize bytes of buf for the given page.
	WritePage(id PageID, buf []byte) error
}

// FileManager is a Manager backed by a single database file opened with
// direct io.
type FileManager struct {
	file *os.File
	mtx  sync.Mutex
}

// NewFileManager opens (creating if needed) the database file at filePath.
// Returns an error if the file exists but its size is not page-aligned.
func NewFileManager(filePath string) (*FileManager, error) {
	// Create the necessary prerequisite directories.
	if idx := strings.LastIndex(filePath, "/"); idx != -1 {
		if err := os.MkdirAll(filePath[:idx], 0775); err != nil {
			return nil, err
		}
	}
	file, err := directio.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, errors.Wrap(err, "opening database file")
	}
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size()%PageSize != 0 {
		return nil, errors.New("database file has been corrupted")
	}
	return &FileManager{file: file}, nil
}

// GetFileName returns the file name/path of the backing database file.
func (fm *FileManager) GetFileName() string {
	return fm.file.Name()
}

// ReadPage reads the page's bytes into buf. A page that has never been
// written reads back as all zeroes.
func (fm *FileManager) ReadPage(id PageID, buf []byte) error {
	if id < 0 || int64(len(buf)) != PageSize {
		return errors.Errorf("bad read of page %d", id)
	}
	fm.mtx.Lock()
	defer fm.mtx.Unlock()
	n, err := fm.file.ReadAt(buf, int64(id)*PageSize)
	if err != nil && err != io.EOF {
		return errors.Wrapf(err, "reading page %d", id)
	}
	// Zero-fill past the end of the file.
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// WritePage writes the page's bytes from buf.
func (fm *FileManager) WritePage(id PageID, buf []byte) error {
	if id < 0 || int64(len(buf)) != PageSize {
		return errors.Errorf("bad write of page %d", id)
	}
	fm.mtx.Lock()
	defer fm.mtx.Unlock()
	if _, err := fm.file.WriteAt(buf, int64(id)*PageSize); err != nil {
		return errors.Wrapf(err, "writing page %d", id)
	}
	return nil
}

// Size returns the current size of the backing file in pages.
func (fm *FileManager) Size() (int64, error) {
	fm.mtx.Lock()
	defer fm.mtx.Unlock()
	info, err := fm.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size() / PageSize, nil
}

// Close closes the backing file.
func (fm *FileManager) Close() error {
	fm.mtx.Lock()
	defer fm.mtx.Unlock()
	return fm.file.Close()
}
