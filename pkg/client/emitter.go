package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/m-lab/rspeed/internal/clock"
	"github.com/m-lab/rspeed/pkg/cycle1/model"
	"github.com/m-lab/rspeed/pkg/cycle1/spec"
)

// Emitter is an interface for emitting results.
type Emitter interface {
	// OnBegin is called once the session has been established.
	OnBegin(s Session)
	// OnRecord is called with every record sent to or received from the
	// server: the bootstrap reply, each subtest's record and each report
	// acknowledgement.
	OnRecord(r *model.Record)
	// OnResult is called when a subtest's result has been computed.
	OnResult(r model.Result)
	// OnError is called on errors.
	OnError(err error)
	// OnDebug is called to print debug information.
	OnDebug(msg string)
}

// Streams writes one JSON object per line for every record to Log and
// human-readable summaries to Report.
type Streams struct {
	Log    io.Writer
	Report io.Writer
	Debug  bool
}

// OnBegin prints the session identity.
func (e *Streams) OnBegin(s Session) {
	fmt.Fprintf(e.Report, "Begin:\n    Test ID = %s\n    External IP = %s\n    Test Begin Time = %s\n\n",
		s.TestID, s.ExternalIP, clock.FormatLocal(s.TestBegin))
}

// OnRecord writes r as a single line of JSON.
func (e *Streams) OnRecord(r *model.Record) {
	b, err := json.Marshal(r)
	if err != nil {
		e.OnError(err)
		return
	}
	if _, err := e.Log.Write(append(b, '\n')); err != nil {
		log.Error("failed to write record", "testID", r.TestID,
			"pathname", r.Pathname, "err", err)
	}
}

// OnResult prints the subtest summary.
func (e *Streams) OnResult(r model.Result) {
	fmt.Fprint(e.Report, FormatResult(r))
}

// OnError is called on errors.
func (e *Streams) OnError(err error) {
	fmt.Fprintf(e.Report, "Error: %v\n", err)
}

// OnDebug is called to print debug information.
func (e *Streams) OnDebug(msg string) {
	if e.Debug {
		fmt.Fprintf(e.Report, "DEBUG: %s\n", msg)
	}
}

// FormatResult returns the human-readable summary of a result.
func FormatResult(r model.Result) string {
	var sb strings.Builder
	switch spec.SubtestKind(r.Kind) {
	case spec.SubtestDownload:
		sb.WriteString("Download\n")
	case spec.SubtestUpload:
		sb.WriteString("Upload\n")
	default:
		sb.WriteString(r.Kind + "\n")
	}
	fmt.Fprintf(&sb, "    Time: %s\n", clock.FormatLocal(r.Time.UnixMilli()))
	fmt.Fprintf(&sb, "    Megabytes: %s\n", formatFloat(r.Megabytes))
	fmt.Fprintf(&sb, "    Seconds: %s\n", formatFloat(r.Seconds))
	fmt.Fprintf(&sb, "    Megabits / Second: %s\n\n", formatFloat(r.MegabitsPerSecond))
	return sb.String()
}

// formatFloat prints v with as many decimals as needed, but at least one.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// ResultWriter durably stores results.
type ResultWriter interface {
	Write(result interface{}) error
}

// Archiver writes every result to a ResultWriter. The other events are
// ignored.
type Archiver struct {
	Writer ResultWriter
}

// OnBegin does nothing.
func (a *Archiver) OnBegin(Session) {}

// OnRecord does nothing.
func (a *Archiver) OnRecord(*model.Record) {}

// OnResult stores r.
func (a *Archiver) OnResult(r model.Result) {
	if err := a.Writer.Write(r); err != nil {
		log.Error("failed to archive result", "kind", r.Kind,
			"testNumber", r.TestNumber, "err", err)
	}
}

// OnError does nothing.
func (a *Archiver) OnError(error) {}

// OnDebug does nothing.
func (a *Archiver) OnDebug(string) {}

// Emitters fans out every event to each of its elements in order.
type Emitters []Emitter

// OnBegin calls OnBegin on each Emitter.
func (es Emitters) OnBegin(s Session) {
	for _, e := range es {
		e.OnBegin(s)
	}
}

// OnRecord calls OnRecord on each Emitter.
func (es Emitters) OnRecord(r *model.Record) {
	for _, e := range es {
		e.OnRecord(r)
	}
}

// OnResult calls OnResult on each Emitter.
func (es Emitters) OnResult(r model.Result) {
	for _, e := range es {
		e.OnResult(r)
	}
}

// OnError calls OnError on each Emitter.
func (es Emitters) OnError(err error) {
	for _, e := range es {
		e.OnError(err)
	}
}

// OnDebug calls OnDebug on each Emitter.
func (es Emitters) OnDebug(msg string) {
	for _, e := range es {
		e.OnDebug(msg)
	}
}

// Checks that the emitters implement Emitter.
var (
	_ Emitter = &Streams{}
	_ Emitter = &Archiver{}
	_ Emitter = Emitters{}
)
