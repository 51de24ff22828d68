package client

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m-lab/rspeed/pkg/cycle1/model"
	"github.com/m-lab/rspeed/pkg/cycle1/spec"
)

func TestStreams(t *testing.T) {
	logBuf := &bytes.Buffer{}
	report := &bytes.Buffer{}
	e := &Streams{Log: logBuf, Report: report}

	e.OnRecord(&model.Record{TestID: "T1", Interval: model.Int(5)})
	e.OnRecord(&model.Record{TestID: "T1", TestNumber: model.Int(0)})
	lines := strings.Split(strings.TrimSpace(logBuf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != `{"testID":"T1","interval":5}` {
		t.Errorf("wrong record line: %s", lines[0])
	}

	e.OnDebug("hidden")
	if strings.Contains(report.String(), "hidden") {
		t.Errorf("debug message printed with Debug disabled")
	}
	e.Debug = true
	e.OnDebug("shown")
	if !strings.Contains(report.String(), "DEBUG: shown") {
		t.Errorf("debug message not printed")
	}

	e.OnError(errors.New("boom"))
	if !strings.Contains(report.String(), "Error: boom") {
		t.Errorf("error not printed")
	}
}

type failingWriter struct{ calls int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	return 0, errors.New("broken pipe")
}

func TestStreams_OnRecordWriteError(t *testing.T) {
	w := &failingWriter{}
	report := &bytes.Buffer{}
	e := &Streams{Log: w, Report: report}
	// Write errors are logged and do not reach the report stream.
	e.OnRecord(&model.Record{TestID: "T1"})
	if w.calls != 1 {
		t.Errorf("expected one write, got %d", w.calls)
	}
	if report.Len() != 0 {
		t.Errorf("write error leaked into the report: %q", report.String())
	}
}

func Test_formatFloat(t *testing.T) {
	tests := map[float64]string{
		0:      "0.0",
		2:      "2.0",
		1.234:  "1.234",
		10.5:   "10.5",
		123456: "123456.0",
	}
	for v, want := range tests {
		if got := formatFloat(v); got != want {
			t.Errorf("formatFloat(%v) = %s, want %s", v, got, want)
		}
	}
}

func TestFormatResult(t *testing.T) {
	r := model.NewResult(spec.SubtestDownload)
	r.Time = time.UnixMilli(1_000_000)
	r.Megabytes = 1.234
	r.Seconds = 2.5
	r.MegabitsPerSecond = 3.949
	got := FormatResult(r)
	for _, want := range []string{
		"Download\n",
		"    Megabytes: 1.234\n",
		"    Seconds: 2.5\n",
		"    Megabits / Second: 3.949\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatResult() = %q, missing %q", got, want)
		}
	}
	r.Megabytes = 2
	r.Seconds = 2
	r.MegabitsPerSecond = 8
	got = FormatResult(r)
	for _, want := range []string{
		"    Megabytes: 2.0\n",
		"    Seconds: 2.0\n",
		"    Megabits / Second: 8.0\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatResult() = %q, missing %q", got, want)
		}
	}
	if !strings.HasPrefix(FormatResult(model.NewResult(spec.SubtestUpload)), "Upload\n") {
		t.Errorf("wrong upload header")
	}
}

type fakeWriter struct {
	results []interface{}
	err     error
}

func (w *fakeWriter) Write(result interface{}) error {
	w.results = append(w.results, result)
	return w.err
}

func TestArchiver(t *testing.T) {
	w := &fakeWriter{}
	a := &Archiver{Writer: w}
	a.OnBegin(Session{})
	a.OnRecord(&model.Record{})
	a.OnError(errors.New("ignored"))
	a.OnDebug("ignored")
	a.OnResult(model.NewResult(spec.SubtestUpload))
	if len(w.results) != 1 {
		t.Fatalf("expected one archived result, got %d", len(w.results))
	}
	if r, ok := w.results[0].(model.Result); !ok || r.Kind != "upload" {
		t.Errorf("wrong archived value: %#v", w.results[0])
	}

	// Write errors are logged, not propagated.
	w.err = errors.New("disk full")
	a.OnResult(model.NewResult(spec.SubtestDownload))
}

func TestEmitters(t *testing.T) {
	r1, r2 := &recorder{}, &recorder{}
	es := Emitters{r1, r2}
	es.OnBegin(Session{TestID: "T1"})
	es.OnRecord(&model.Record{})
	es.OnResult(model.Result{})
	es.OnError(errors.New("boom"))
	es.OnDebug("msg")
	for i, r := range []*recorder{r1, r2} {
		if len(r.begins) != 1 || len(r.records) != 1 || len(r.results) != 1 || len(r.errs) != 1 {
			t.Errorf("emitter %d did not receive every event", i)
		}
	}
}
