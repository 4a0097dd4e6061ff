// Package recovery implements the append-only operation log that index
// operations write through. The storage core only ever appends; nothing in
// this package is consulted on the read path of an index operation.
package recovery

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/icza/backscanner"
	"github.com/otiai10/copy"
	"github.com/pkg/errors"
)

// LogManager appends serialized operation records to a log file.
type LogManager struct {
	logFile *os.File   // The log file where records are stored.
	active  map[uuid.UUID]bool
	mtx     sync.Mutex // A mutex used for allowing safe concurrent use of this struct.
}

// NewLogManager returns a log manager appending to the specified log file,
// creating it if needed.
func NewLogManager(logFilename string) (*LogManager, error) {
	logFile, err := os.OpenFile(logFilename, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, errors.Wrap(err, "opening log file")
	}
	return &LogManager{
		logFile: logFile,
		active:  make(map[uuid.UUID]bool),
	}, nil
}

// flushLog serializes the specified log and immediately appends it
// to the end of the log file on disk. Expects lm.mtx to be locked.
func (lm *LogManager) flushLog(log Log) error {
	if _, err := lm.logFile.WriteString(log.toString()); err != nil {
		return err
	}
	return lm.logFile.Sync()
}

// Start records the start of a transaction.
func (lm *LogManager) Start(clientId uuid.UUID) error {
	lm.mtx.Lock()
	defer lm.mtx.Unlock()
	lm.active[clientId] = true
	return lm.flushLog(startLog{id: clientId})
}

// Commit records the end of a transaction.
func (lm *LogManager) Commit(clientId uuid.UUID) error {
	lm.mtx.Lock()
	defer lm.mtx.Unlock()
	delete(lm.active, clientId)
	return lm.flushLog(commitLog{id: clientId})
}

// Insert records the insertion of a key-value pair into an index.
func (lm *LogManager) Insert(clientId uuid.UUID, indexName, key, value string) error {
	lm.mtx.Lock()
	defer lm.mtx.Unlock()
	el := editLog{id: clientId, indexName: indexName, action: INSERT_ACTION, key: key, value: value}
	if err := lm.flushLog(el); err != nil {
		return errors.Wrap(err, "error writing an edit log")
	}
	return nil
}

// Delete records the removal of a key-value pair from an index.
func (lm *LogManager) Delete(clientId uuid.UUID, indexName, key, value string) error {
	lm.mtx.Lock()
	defer lm.mtx.Unlock()
	el := editLog{id: clientId, indexName: indexName, action: DELETE_ACTION, key: key, value: value}
	if err := lm.flushLog(el); err != nil {
		return errors.Wrap(err, "error writing an edit log")
	}
	return nil
}

// Checkpoint backs up the database file into backupDir and records a
// checkpoint log listing the currently running transactions. The caller is
// responsible for flushing the buffer pool first so the backup is current.
func (lm *LogManager) Checkpoint(dbPath string, backupDir string) error {
	lm.mtx.Lock()
	defer lm.mtx.Unlock()
	if err := os.MkdirAll(backupDir, 0775); err != nil {
		return err
	}
	dst := filepath.Join(backupDir, filepath.Base(dbPath))
	if err := copy.Copy(dbPath, dst); err != nil {
		return errors.Wrap(err, "copying database file for checkpoint")
	}
	ids := make([]uuid.UUID, 0, len(lm.active))
	for id := range lm.active {
		ids = append(ids, id)
	}
	return lm.flushLog(checkpointLog{ids: ids})
}

// Tail returns up to n of the most recent log records, oldest first.
func (lm *LogManager) Tail(n int) ([]Log, error) {
	lm.mtx.Lock()
	defer lm.mtx.Unlock()
	fstats, err := lm.logFile.Stat()
	if err != nil {
		return nil, err
	}
	scanner := backscanner.New(lm.logFile, int(fstats.Size()))
	logs := make([]Log, 0, n)
	for len(logs) < n {
		line, _, err := scanner.Line()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if line == "" {
			continue
		}
		record, err := LogFromString(line)
		if err != nil {
			return nil, err
		}
		logs = append([]Log{record}, logs...)
	}
	return logs, nil
}

// Close closes the backing log file.
func (lm *LogManager) Close() error {
	lm.mtx.Lock()
	defer lm.mtx.Unlock()
	return lm.logFile.Close()
}
