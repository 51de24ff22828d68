package persistence

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path"
	"sync"
	"time"
)

// DataFile is the file where we append results, one JSON object per line.
type DataFile struct {
	// Path is the path of the file on disk.
	Path string

	writer *gzip.Writer
	fp     *os.File
	mu     sync.Mutex
}

func newDataFile(datadir, datatype, id string) (*DataFile, error) {
	timestamp := time.Now()
	dir := path.Join(datadir, datatype, timestamp.Format("2006/01/02"))
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}
	filepath := path.Join(dir, datatype+"-"+
		timestamp.Format("20060102T150405.000000000Z")+"."+id+".jsonl.gz")
	fp, err := os.OpenFile(filepath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	writer, err := gzip.NewWriterLevel(fp, gzip.BestSpeed)
	if err != nil {
		fp.Close()
		return nil, err
	}
	return &DataFile{
		Path:   filepath,
		writer: writer,
		fp:     fp,
	}, nil
}

// New creates a DataFile for saving results in datadir.
func New(datadir, datatype, id string) (*DataFile, error) {
	file, err := newDataFile(datadir, datatype, id)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Write appends a JSON representation of result to this file, followed by a
// newline, and flushes the compressed stream so that every complete line is
// readable even if the process is killed.
func (df *DataFile) Write(result interface{}) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	df.mu.Lock()
	defer df.mu.Unlock()
	if _, err = df.writer.Write(append(data, '\n')); err != nil {
		return err
	}
	return df.writer.Flush()
}

// Close closes the gzip writer and the file.
func (df *DataFile) Close() error {
	df.mu.Lock()
	defer df.mu.Unlock()
	err := df.writer.Close()
	if err != nil {
		df.fp.Close()
		return err
	}
	return df.fp.Close()
}

// ReadAll decompresses the file at filepath and returns its content.
func ReadAll(filepath string) ([]byte, error) {
	fp, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	reader, err := gzip.NewReader(fp)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
