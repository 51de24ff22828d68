package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/m-lab/go/memoryless"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/locate/api/locate"
	v2 "github.com/m-lab/locate/api/v2"
	"github.com/m-lab/rspeed/internal/clock"
	"github.com/m-lab/rspeed/internal/metrics"
	"github.com/m-lab/rspeed/internal/sizing"
	"github.com/m-lab/rspeed/pkg/cycle1/model"
	"github.com/m-lab/rspeed/pkg/cycle1/payload"
	"github.com/m-lab/rspeed/pkg/cycle1/spec"
	"github.com/m-lab/rspeed/pkg/version"
)

const (
	// DefaultTimeout is the default bound for a single exchange.
	DefaultTimeout = 5 * time.Minute

	// DefaultScheme is the default scheme for a new Client.
	DefaultScheme = "http"

	libraryName = "rspeed-client"
)

var libraryVersion = version.Version

// Locator is an interface used to get a list of available servers to test against.
type Locator interface {
	Nearest(ctx context.Context, service string) ([]v2.Target, error)
}

// State is the state of a Client.
type State int

const (
	StateUninitialized State = iota
	StateBootstrapped
	StateDownloading
	StateUploading
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBootstrapped:
		return "bootstrapped"
	case StateDownloading:
		return "downloading"
	case StateUploading:
		return "uploading"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Client runs repeated download and upload measurements against a cycle1
// server, resizing the payloads so that each subtest lasts about
// Config.Sizing.Desired. A Client must be used from a single goroutine.
type Client struct {
	// ClientName is the name of the client sent to the server as part of the user-agent.
	ClientName string
	// ClientVersion is the version of the client sent to the server as part of the user-agent.
	ClientVersion string

	config     Config
	httpClient *http.Client
	locator    Locator

	session Session
	state   State
}

// makeUserAgent creates the user agent string.
func makeUserAgent(clientName, clientVersion string) string {
	return clientName + "/" + clientVersion + " " + libraryName + "/" + libraryVersion +
		" (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}

// New returns a new Client with the provided client name, version and config.
// Zero-valued config fields are set to their defaults.
// It panics if clientName or clientVersion are empty.
func New(clientName, clientVersion string, config Config) *Client {
	if clientName == "" || clientVersion == "" {
		panic("client name and version must be non-empty")
	}
	if config.Scheme == "" {
		config.Scheme = DefaultScheme
	}
	if config.Interval == 0 {
		config.Interval = spec.DefaultInterval * time.Second
	}
	if config.DownloadLength == 0 {
		config.DownloadLength = spec.DefaultDownloadLength
	}
	if config.UploadLength == 0 {
		config.UploadLength = spec.DefaultUploadLength
	}
	if config.MaxUploadLength == 0 {
		config.MaxUploadLength = spec.MaxUploadLength
	}
	config.Sizing = config.Sizing.WithDefaults()
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.BeforeTest == nil {
		config.BeforeTest = runtime.GC
	}
	if config.Emitter == nil {
		config.Emitter = &Streams{Log: os.Stdout, Report: os.Stderr}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: config.NoVerify}

	return &Client{
		ClientName:    clientName,
		ClientVersion: clientVersion,

		config: config,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		locator: locate.NewClient(makeUserAgent(clientName, clientVersion)),

		session: Session{
			Server:         normalizeServer(config.Server, config.Scheme),
			TestID:         config.TestID,
			Interval:       int64(config.Interval / time.Second),
			DownloadLength: config.DownloadLength,
			UploadLength:   config.UploadLength,
		},
	}
}

// Session returns a copy of the current session.
func (c *Client) Session() Session {
	return c.session
}

// State returns the current state.
func (c *Client) State() State {
	return c.state
}

// serverFromLocate returns the base URL of the first target returned by the
// Locate API that offers the cycle1 service with the configured scheme.
func (c *Client) serverFromLocate(ctx context.Context) (string, error) {
	targets, err := c.locator.Nearest(ctx, spec.ServiceName)
	if err != nil {
		return "", err
	}
	k := c.config.Scheme + "://" + spec.BeginPath
	for _, t := range targets {
		u, err := url.Parse(t.URLs[k])
		if err != nil || u.Host == "" {
			continue
		}
		u.Path = ""
		u.RawQuery = ""
		return normalizeServer(u.String(), c.config.Scheme), nil
	}
	return "", ErrNoTargets
}

// Begin establishes the session. The server's reply is authoritative and
// replaces the test ID, interval, lengths, start time and external IP.
func (c *Client) Begin(ctx context.Context) error {
	timestamp := clock.Now()
	if c.session.Server == "" {
		c.config.Emitter.OnDebug("using locate")
		server, err := c.serverFromLocate(ctx)
		if err != nil {
			c.state = StateFailed
			return &BootstrapFailure{Timestamp: timestamp, Err: err}
		}
		c.session.Server = server
	}
	c.config.Emitter.OnDebug(fmt.Sprintf("%s: using server %s",
		clock.FormatLocalMillis(timestamp), c.session.Server))

	reply, _, err := c.postRecord(ctx, spec.BeginPath, c.session.beginRecord(timestamp))
	if err == nil {
		err = c.session.applyBegin(reply)
	}
	if err != nil {
		c.state = StateFailed
		return &BootstrapFailure{
			Server:    c.session.Server,
			Timestamp: timestamp,
			Err:       err,
		}
	}
	c.state = StateBootstrapped
	log.Info("session started", "server", c.session.Server, "testID", c.session.TestID,
		"interval", c.session.Interval)
	c.emitRecord(reply)
	c.config.Emitter.OnBegin(c.session)
	metrics.PayloadLength.WithLabelValues(string(spec.SubtestDownload)).Set(float64(c.session.DownloadLength))
	metrics.PayloadLength.WithLabelValues(string(spec.SubtestUpload)).Set(float64(c.session.UploadLength))
	return nil
}

// Download runs a download subtest for the current test number.
func (c *Client) Download(ctx context.Context) error {
	return c.download(ctx, c.session.TestNumber)
}

// Upload runs an upload subtest for the current test number.
func (c *Client) Upload(ctx context.Context) error {
	return c.upload(ctx, c.session.TestNumber)
}

func (c *Client) download(ctx context.Context, testNumber int64) error {
	c.state = StateDownloading
	c.config.BeforeTest()

	timestamp := clock.Now()
	rec := c.session.record(spec.DownloadPath, testNumber, timestamp)
	rec.DownloadLength = model.Int(c.session.DownloadLength)
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	timing, _, err := c.exchange(ctx, request{
		path:        spec.DownloadPath,
		body:        bytes.NewReader(data),
		length:      int64(len(data)),
		contentType: contentTypeJSON,
		accept:      acceptData,
		streamed:    true,
	})
	if err != nil {
		metrics.SubtestsTotal.WithLabelValues(string(spec.SubtestDownload), "error").Inc()
		return err
	}
	rec.SetTiming(timing)
	rec.DownloadReceiveLength = model.Int(timing.ReceiveLength)
	c.emitRecord(rec)

	seconds := clock.Seconds(timing.ResponseBegin, timing.ResponseEnd)
	result := c.newResult(spec.SubtestDownload, rec, c.session.DownloadLength,
		timing.ReceiveLength, model.Megabytes(timing.ReceiveLength), seconds)
	result.NextLength = c.config.Sizing.Next(timing.ReceiveLength, seconds)
	c.session.DownloadLength = result.NextLength
	c.observeResult(result)

	return c.report(ctx, spec.DownreportPath, rec)
}

func (c *Client) upload(ctx context.Context, testNumber int64) error {
	c.state = StateUploading
	c.config.BeforeTest()

	timestamp := clock.Now()
	length := c.session.UploadLength
	rec := c.session.record(spec.UploadPath, testNumber, timestamp)
	rec.UploadLength = model.Int(length)
	timing, body, err := c.exchange(ctx, request{
		path:        spec.UploadPath,
		body:        payload.New(length),
		length:      length,
		contentType: contentTypeOctet,
		accept:      contentTypeJSON,
	})
	var reply *model.Record
	if err == nil {
		reply, err = c.decode(spec.UploadPath, timing.RequestBegin, body)
	}
	if err != nil {
		metrics.SubtestsTotal.WithLabelValues(string(spec.SubtestUpload), "error").Inc()
		return err
	}
	rec.SetTiming(timing)
	rec.Merge(reply)
	c.session.observe(reply)
	c.emitRecord(rec)

	// The upload body takes the bulk of the time, so the whole exchange is
	// timed.
	seconds := clock.Seconds(timing.RequestBegin, timing.ResponseEnd)
	received := length
	if reply.UploadReceiveLength != nil {
		received = *reply.UploadReceiveLength
	}
	result := c.newResult(spec.SubtestUpload, rec, length, received,
		model.Megabytes(length), seconds)
	result.NextLength = sizing.ClampUpload(c.config.Sizing.Next(received, seconds),
		c.config.MaxUploadLength)
	c.session.UploadLength = result.NextLength
	c.observeResult(result)

	return c.report(ctx, spec.UpreportPath, rec)
}

// newResult computes the archival result of a subtest.
func (c *Client) newResult(kind spec.SubtestKind, rec *model.Record, length, received int64,
	megabytes, seconds float64) model.Result {
	r := model.NewResult(kind)
	r.TestID = rec.TestID
	r.TestNumber = model.Value(rec.TestNumber)
	r.Server = c.session.Server
	r.ExternalIP = c.session.ExternalIP
	r.Time = clock.Time(model.Value(rec.ClientTimestamp))
	r.Length = length
	r.ReceiveLength = received
	r.Megabytes = megabytes
	r.Seconds = seconds
	r.MegabitsPerSecond = model.MegabitsPerSecond(megabytes, seconds)
	return r
}

func (c *Client) observeResult(r model.Result) {
	metrics.SubtestsTotal.WithLabelValues(r.Kind, "ok").Inc()
	metrics.Throughput.WithLabelValues(r.Kind).Observe(r.MegabitsPerSecond)
	metrics.Duration.WithLabelValues(r.Kind).Observe(r.Seconds)
	metrics.PayloadLength.WithLabelValues(r.Kind).Set(float64(r.NextLength))
	log.Debug("subtest complete", "kind", r.Kind, "testNumber", r.TestNumber,
		"mbps", r.MegabitsPerSecond, "seconds", r.Seconds, "next", r.NextLength)
	c.config.Emitter.OnResult(r)
}

// report sends the complete record of a subtest to the server and emits the
// server's acknowledgement.
func (c *Client) report(ctx context.Context, path string, rec *model.Record) error {
	rec.ClientTimestamp = model.Int(clock.Now())
	rec.Pathname = path
	ack, _, err := c.postRecord(ctx, path, rec)
	if err != nil {
		return err
	}
	c.session.observe(ack)
	c.emitRecord(ack)
	return nil
}

// emitRecord emits a copy of r, so that emitters can keep it.
func (c *Client) emitRecord(r *model.Record) {
	cp := *r
	c.config.Emitter.OnRecord(&cp)
}

// RunCycle runs a download and an upload subtest sharing the current test
// number, then increments it.
func (c *Client) RunCycle(ctx context.Context) error {
	n := c.session.TestNumber
	if err := c.download(ctx, n); err != nil {
		return err
	}
	if err := c.upload(ctx, n); err != nil {
		return err
	}
	c.session.TestNumber++
	return nil
}

// Run begins the session and runs cycles every Session.Interval seconds until
// ctx is canceled or a cycle fails. Cancellation is not an error.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Begin(ctx); err != nil {
		if ctx.Err() != nil {
			c.state = StateStopped
			return nil
		}
		return err
	}
	for {
		start := time.Now()
		err := c.RunCycle(ctx)
		if ctx.Err() != nil {
			c.state = StateStopped
			return nil
		}
		if err != nil {
			metrics.CyclesTotal.WithLabelValues("error").Inc()
			c.config.Emitter.OnError(err)
			if !c.config.SkipFailedCycles {
				c.state = StateFailed
				return err
			}
			log.Warn("skipping failed cycle", "testNumber", c.session.TestNumber, "err", err)
			// Test numbers are never reused, even for failed cycles.
			c.session.TestNumber++
		} else {
			metrics.CyclesTotal.WithLabelValues("ok").Inc()
		}
		if !sleep(ctx, time.Duration(c.session.Interval)*time.Second-time.Since(start)) {
			c.state = StateStopped
			return nil
		}
	}
}

// sleep waits for d or until ctx is done. It returns false if ctx is done.
// The wait is a memoryless timer pinned to d, so it never varies.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t, err := memoryless.NewTimer(memoryless.Config{Min: d, Expected: d, Max: d})
	// Min == Expected == Max > 0 is always a valid config.
	rtx.PanicOnError(err, "timer creation failed (this should never happen)")
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// IsFatal reports whether err must stop a Run regardless of configuration.
func IsFatal(err error) bool {
	var bf *BootstrapFailure
	return errors.As(err, &bf)
}
