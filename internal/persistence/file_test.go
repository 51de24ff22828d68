package persistence_test

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m-lab/go/testingx"
	"github.com/m-lab/rspeed/internal/persistence"
)

// A struct that can be marshalled to JSON.
type MarshallableStruct struct {
	Test string
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	df, err := persistence.New(dir, "type", "fake-id")
	testingx.Must(t, err, "cannot create test datafile")

	// Check the generated path.
	prefix := filepath.Join(dir, "type", time.Now().Format("2006/01/02"), "type-")
	if !strings.HasPrefix(df.Path, prefix) ||
		!strings.HasSuffix(df.Path, "fake-id.jsonl.gz") {
		t.Errorf("invalid output path: %s", df.Path)
	}

	testingx.Must(t, df.Write(MarshallableStruct{Test: "foo"}), "cannot write")
	testingx.Must(t, df.Write(MarshallableStruct{Test: "bar"}), "cannot write")

	// Flushed lines are readable before Close.
	content, err := persistence.ReadAll(df.Path)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("cannot read flushed content: %v", err)
	}
	if !strings.HasPrefix(string(content), `{"Test":"foo"}`+"\n") {
		t.Errorf("unexpected flushed content: %q", string(content))
	}

	testingx.Must(t, df.Close(), "cannot close")
	content, err = persistence.ReadAll(df.Path)
	testingx.Must(t, err, "cannot read file")
	want := fmt.Sprintf("%s\n%s\n", `{"Test":"foo"}`, `{"Test":"bar"}`)
	if string(content) != want {
		t.Errorf("unexpected file content: %q", string(content))
	}
}

func TestNew_error(t *testing.T) {
	// A regular file cannot be used as datadir.
	dir := t.TempDir()
	df, err := persistence.New(dir, "type", "id")
	testingx.Must(t, err, "cannot create test datafile")
	defer df.Close()
	if _, err := persistence.New(df.Path, "type", "id"); err == nil {
		t.Errorf("New() did not fail with a file as datadir")
	}
}

func TestDataFile_WriteError(t *testing.T) {
	df, err := persistence.New(t.TempDir(), "type", "id")
	testingx.Must(t, err, "cannot create test datafile")
	defer df.Close()
	if err := df.Write(make(chan int)); err == nil {
		t.Errorf("Write() did not fail on a non-marshallable value")
	}
}
