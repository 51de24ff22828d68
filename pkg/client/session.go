package client

import (
	"fmt"
	"strings"

	"github.com/m-lab/rspeed/pkg/cycle1/model"
	"github.com/m-lab/rspeed/pkg/cycle1/spec"
)

// Session is the client's view of the negotiated test parameters. It is owned
// by a single Client and evolves after every contact with the server.
type Session struct {
	// Server is the server base URL, without a trailing slash.
	Server string
	// TestID is the test identifier. Empty until bootstrap succeeds, unless
	// provided by the operator.
	TestID string
	// ExternalIP is the client address as last seen by the server.
	ExternalIP string
	// TestBegin is the session start time (ms since epoch).
	TestBegin int64
	// Interval is the time between the start of two cycles, in seconds.
	Interval int64
	// DownloadLength and UploadLength are the current payload lengths.
	DownloadLength int64
	UploadLength   int64
	// TestNumber is the number of the next cycle.
	TestNumber int64
}

// normalizeServer strips trailing slashes and adds scheme to bare addresses.
func normalizeServer(server, scheme string) string {
	server = strings.TrimRight(server, "/")
	if server != "" && !strings.Contains(server, "://") {
		server = scheme + "://" + server
	}
	return server
}

// beginRecord returns the bootstrap request for this session.
func (s *Session) beginRecord(now int64) *model.Record {
	return &model.Record{
		ExternalIP:      s.ExternalIP,
		TestID:          s.TestID,
		TestBegin:       model.Int(now),
		Pathname:        spec.BeginPath,
		ClientTimestamp: model.Int(now),
		Interval:        model.Int(s.Interval),
		DownloadLength:  model.Int(s.DownloadLength),
		UploadLength:    model.Int(s.UploadLength),
	}
}

// applyBegin makes the server's bootstrap reply authoritative.
func (s *Session) applyBegin(r *model.Record) error {
	if missing := r.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteBootstrap,
			strings.Join(missing, ", "))
	}
	s.TestID = r.TestID
	s.Interval = *r.Interval
	s.DownloadLength = *r.DownloadLength
	s.UploadLength = *r.UploadLength
	s.TestBegin = *r.TestBegin
	s.observe(r)
	return nil
}

// observe records what the server reports about the client on every reply.
func (s *Session) observe(r *model.Record) {
	if r != nil && r.ExternalIP != "" {
		s.ExternalIP = r.ExternalIP
	}
}

// record returns a new Record for a subtest, filled in with the session's
// identity fields.
func (s *Session) record(path string, testNumber, now int64) *model.Record {
	return &model.Record{
		ExternalIP:      s.ExternalIP,
		TestID:          s.TestID,
		TestBegin:       model.Int(s.TestBegin),
		TestNumber:      model.Int(testNumber),
		Pathname:        path,
		ClientTimestamp: model.Int(now),
		Interval:        model.Int(s.Interval),
	}
}
