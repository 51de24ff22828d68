package client

import (
	"errors"
	"testing"

	"github.com/m-lab/rspeed/pkg/cycle1/model"
	"github.com/m-lab/rspeed/pkg/cycle1/spec"
)

func Test_normalizeServer(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"", ""},
		{"localhost:8080", "http://localhost:8080"},
		{"localhost:8080/", "http://localhost:8080"},
		{"https://example.com//", "https://example.com"},
	}
	for _, tt := range tests {
		if got := normalizeServer(tt.server, "http"); got != tt.want {
			t.Errorf("normalizeServer(%q) = %q, want %q", tt.server, got, tt.want)
		}
	}
}

func TestSession_applyBegin(t *testing.T) {
	s := &Session{ExternalIP: "10.0.0.1", DownloadLength: 1, UploadLength: 1}
	err := s.applyBegin(&model.Record{TestID: "T1"})
	if !errors.Is(err, ErrIncompleteBootstrap) {
		t.Fatalf("expected ErrIncompleteBootstrap, got %v", err)
	}
	if s.TestID != "" {
		t.Errorf("incomplete replies must not change the session")
	}

	err = s.applyBegin(&model.Record{
		TestID:         "T1",
		TestBegin:      model.Int(1000),
		Interval:       model.Int(5),
		DownloadLength: model.Int(2000),
		UploadLength:   model.Int(3000),
	})
	if err != nil {
		t.Fatalf("applyBegin() error: %v", err)
	}
	want := Session{
		TestID:         "T1",
		ExternalIP:     "10.0.0.1",
		TestBegin:      1000,
		Interval:       5,
		DownloadLength: 2000,
		UploadLength:   3000,
	}
	if *s != want {
		t.Errorf("applyBegin() = %+v, want %+v", *s, want)
	}
}

func TestSession_record(t *testing.T) {
	s := &Session{TestID: "T1", ExternalIP: "1.2.3.4", TestBegin: 10, Interval: 5}
	r := s.record(spec.UploadPath, 3, 42)
	if r.TestID != "T1" || r.ExternalIP != "1.2.3.4" || r.Pathname != spec.UploadPath {
		t.Errorf("wrong identity fields: %+v", r)
	}
	if model.Value(r.TestNumber) != 3 || model.Value(r.ClientTimestamp) != 42 ||
		model.Value(r.TestBegin) != 10 || model.Value(r.Interval) != 5 {
		t.Errorf("wrong numeric fields: %+v", r)
	}
	s.observe(&model.Record{ExternalIP: "5.6.7.8"})
	s.observe(&model.Record{})
	s.observe(nil)
	if s.ExternalIP != "5.6.7.8" {
		t.Errorf("observe() did not refresh the external IP")
	}
}
