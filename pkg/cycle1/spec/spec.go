// Package spec contains constants for the cycle1 protocol.
package spec

import "time"

const (
	// ServiceName is the service name for the Locate V2 API.
	ServiceName = "rspeed/cycle1"

	// RootPath is the server's root.
	RootPath = "/"
	// BeginPath is the session bootstrap endpoint.
	BeginPath = "/begin"
	// DownloadPath selects the download subtest.
	DownloadPath = "/download"
	// DownreportPath receives the complete record of a download subtest.
	DownreportPath = "/downreport"
	// UploadPath selects the upload subtest.
	UploadPath = "/upload"
	// UpreportPath receives the complete record of an upload subtest.
	UpreportPath = "/upreport"

	// DefaultInterval is the default time between the start of two cycles.
	// The server may override it at bootstrap.
	DefaultInterval = 3600

	// DefaultDownloadLength is the default number of bytes per download.
	DefaultDownloadLength = 20_000_000

	// DefaultUploadLength is the default number of bytes per upload.
	DefaultUploadLength = 2_000_000

	// DesiredDuration is the target duration of a single download or upload.
	DesiredDuration = 10 * time.Second

	// MaxRatio sets the dead-band around DesiredDuration. Measured durations
	// in [DesiredDuration/MaxRatio, DesiredDuration*MaxRatio] keep the
	// current length.
	MaxRatio = 1.5

	// MinLength is the smallest payload length the recalculation returns.
	MinLength = 200_000

	// MaxLength is the largest payload length the recalculation returns.
	MaxLength = 100_000_000

	// MaxUploadLength is the hard ceiling for uploads. Larger uploads fail
	// against the reference server.
	MaxUploadLength = 20_000_000

	// LengthQuantum is the granularity of recalculated lengths.
	LengthQuantum = 1000

	// MaxControlMessageSize is the largest JSON response the client reads
	// from a control endpoint. Any further byte is a protocol anomaly.
	MaxControlMessageSize = 4096

	// ReadChunkSize is the buffer size used to drain download bodies.
	ReadChunkSize = 16_384

	// BitsPerDataByte counts only payload bits, not protocol overhead.
	BitsPerDataByte = 8
)

// SubtestKind indicates the subtest kind
type SubtestKind string

const (
	// SubtestDownload is a download subtest
	SubtestDownload = SubtestKind("download")

	// SubtestUpload is a upload subtest
	SubtestUpload = SubtestKind("upload")
)
