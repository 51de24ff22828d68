// Package peertest provides an in-process cycle1 protocol peer for tests.
//
// The peer mirrors the observable behavior of the reference server: it stamps
// every reply with the client address and server-side timestamps, assigns a
// test ID at bootstrap when the client does not provide one, streams the
// requested number of bytes on download and reports the received byte count
// on upload.
package peertest

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/m-lab/rspeed/internal/clock"
	"github.com/m-lab/rspeed/pkg/cycle1/model"
	"github.com/m-lab/rspeed/pkg/cycle1/payload"
	"github.com/m-lab/rspeed/pkg/cycle1/spec"
)

// DefaultSessionTTL is how long a session's reports are kept.
const DefaultSessionTTL = time.Minute

// Options changes the behavior of a Server.
type Options struct {
	// Begin, if not nil, holds fields that take precedence over the computed
	// bootstrap response.
	Begin *model.Record

	// Status maps a path to an HTTP status code to reply with instead of
	// the normal response.
	Status map[string]int

	// Trailer maps a path to bytes written after the JSON response.
	Trailer map[string]string

	// Raw maps a path to a body replacing the JSON response.
	Raw map[string]string

	// DownloadLength, if positive, replaces the length requested by the
	// client on download.
	DownloadLength int64

	// OmitUploadReceiveLength drops uploadReceiveLength from upload replies.
	OmitUploadReceiveLength bool

	// Delay is applied to every reply before the response is written.
	Delay time.Duration
}

// Session holds the records a client sent during a session.
type Session struct {
	ID      string
	Reports []model.Record
}

// Server is a cycle1 peer backed by an httptest.Server.
type Server struct {
	*httptest.Server

	opts     Options
	sessions *ttlcache.Cache[string, *Session]

	mu   sync.Mutex
	hits map[string]int
}

// New starts and returns a new Server. Callers must call Close.
func New(opts Options) *Server {
	s := &Server{
		opts: opts,
		sessions: ttlcache.New(
			ttlcache.WithTTL[string, *Session](DefaultSessionTTL),
		),
		hits: map[string]int{},
	}
	go s.sessions.Start()

	mux := http.NewServeMux()
	mux.HandleFunc(spec.BeginPath, s.handle(s.begin))
	mux.HandleFunc(spec.DownloadPath, s.handle(s.download))
	mux.HandleFunc(spec.DownreportPath, s.handle(s.report))
	mux.HandleFunc(spec.UploadPath, s.handle(s.upload))
	mux.HandleFunc(spec.UpreportPath, s.handle(s.report))
	s.Server = httptest.NewServer(mux)
	return s
}

// Close shuts down the server and the session cache.
func (s *Server) Close() {
	s.Server.Close()
	s.sessions.Stop()
}

// Hits returns the number of requests received on path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// Session returns the session with the given id, or nil.
func (s *Server) Session(id string) *Session {
	item := s.sessions.Get(id)
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item.Value()
	cp.Reports = append([]model.Record(nil), cp.Reports...)
	return &cp
}

type replyFunc func(rw http.ResponseWriter, req *http.Request, info *model.Record)

// handle parses the request body and stamps the server-side fields on info
// before calling reply.
func (s *Server) handle(reply replyFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		timestamp := clock.Now()
		s.mu.Lock()
		s.hits[req.URL.Path]++
		s.mu.Unlock()

		if req.Method != http.MethodPost {
			rw.WriteHeader(http.StatusTeapot)
			return
		}

		info := &model.Record{}
		var bodyLength int64
		if strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") {
			body, err := io.ReadAll(req.Body)
			bodyLength = int64(len(body))
			if err == nil {
				err = json.Unmarshal(body, info)
			}
			if err != nil {
				log.Debug("invalid JSON body", "path", req.URL.Path, "err", err)
				rw.WriteHeader(http.StatusBadRequest)
				return
			}
		} else {
			n, err := io.Copy(io.Discard, req.Body)
			if err != nil {
				log.Debug("failed to read body", "path", req.URL.Path, "err", err)
				return
			}
			bodyLength = n
		}
		requestEnd := clock.Now()

		host, _, _ := net.SplitHostPort(req.RemoteAddr)
		if info.ExternalIP != "" && info.ExternalIP != host {
			info.OldExternalIP = info.ExternalIP
		}
		info.ExternalIP = host
		info.Pathname = req.URL.Path
		info.ServerTimestamp = model.Int(timestamp)
		info.ServerRequestBegin = model.Int(timestamp)
		info.ServerRequestEnd = model.Int(requestEnd)
		info.ServerReceiveLength = model.Int(bodyLength)

		if s.opts.Delay > 0 {
			time.Sleep(s.opts.Delay)
		}
		if code, ok := s.opts.Status[req.URL.Path]; ok {
			rw.WriteHeader(code)
			return
		}
		info.ServerResponseBegin = model.Int(clock.Now())
		reply(rw, req, info)
	}
}

func (s *Server) writeJSON(rw http.ResponseWriter, path string, info *model.Record) {
	rw.Header().Set("Content-Type", "application/json")
	if raw, ok := s.opts.Raw[path]; ok {
		rw.Write([]byte(raw))
		return
	}
	b, err := json.Marshal(info)
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	rw.Write(b)
	if trailer, ok := s.opts.Trailer[path]; ok {
		rw.Write([]byte(trailer))
	}
}

func (s *Server) begin(rw http.ResponseWriter, req *http.Request, info *model.Record) {
	if info.TestID == "" {
		info.TestID = info.ExternalIP + "-" + uuid.NewString()
	}
	info.TestBegin = info.ServerTimestamp
	if s.opts.Begin != nil {
		override := *s.opts.Begin
		override.Merge(info)
		info = &override
	}
	s.sessions.Set(info.TestID, &Session{ID: info.TestID}, ttlcache.DefaultTTL)
	s.writeJSON(rw, spec.BeginPath, info)
}

func (s *Server) download(rw http.ResponseWriter, req *http.Request, info *model.Record) {
	length := model.Value(info.DownloadLength)
	if s.opts.DownloadLength > 0 {
		length = s.opts.DownloadLength
	}
	if length < 1 {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	rw.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(rw, payload.New(length)); err != nil {
		log.Debug("download interrupted", "err", err)
	}
}

func (s *Server) upload(rw http.ResponseWriter, req *http.Request, info *model.Record) {
	if !s.opts.OmitUploadReceiveLength {
		info.UploadReceiveLength = info.ServerReceiveLength
	}
	s.writeJSON(rw, spec.UploadPath, info)
}

func (s *Server) report(rw http.ResponseWriter, req *http.Request, info *model.Record) {
	if item := s.sessions.Get(info.TestID); item != nil {
		s.mu.Lock()
		item.Value().Reports = append(item.Value().Reports, *info)
		s.mu.Unlock()
	}
	s.writeJSON(rw, req.URL.Path, info)
}
