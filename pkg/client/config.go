package client

import (
	"time"

	"github.com/m-lab/rspeed/internal/sizing"
	"github.com/magiconair/properties"
)

// Config is the configuration for a Client.
type Config struct {
	// Server is the server base URL (e.g. http://host:8080). A bare host:port
	// is accepted and assumed to use Scheme. If empty, the server is obtained
	// by querying the configured Locator.
	Server string

	// Scheme is the scheme used for bare host:port servers and Locate
	// lookups (http or https).
	Scheme string

	// TestID is an optional operator-provided test ID. The server may
	// replace it.
	TestID string

	// Interval is the requested time between the start of two cycles. The
	// server may override it.
	Interval time.Duration

	// DownloadLength and UploadLength are the requested initial payload
	// lengths. The server may override them.
	DownloadLength int64
	UploadLength   int64

	// MaxUploadLength is the hard ceiling for upload lengths.
	MaxUploadLength int64

	// Sizing configures the payload length recalculation.
	Sizing sizing.Params

	// Timeout bounds every single exchange with the server.
	Timeout time.Duration

	// SkipFailedCycles makes Run log and skip a cycle that failed instead
	// of returning the error. Bootstrap failures are always returned.
	SkipFailedCycles bool

	// BeforeTest is called right before every timed exchange. When nil,
	// a garbage collection is forced so that it does not happen during
	// the measurement.
	BeforeTest func()

	// Emitter is the interface used to emit the results of the test. It can
	// be overridden to provide a custom output.
	Emitter Emitter

	// NoVerify disables the TLS certificate verification.
	NoVerify bool
}

// LoadConfig reads a .properties file and overrides the fields of config for
// every key present in the file. Recognized keys are server, scheme, testid,
// interval, download, upload, max-upload, timeout, skip-failed-cycles and
// no-verify. Durations accept Go duration strings ("90s", "1h").
func LoadConfig(filename string, config *Config) error {
	p, err := properties.LoadFile(filename, properties.UTF8)
	if err != nil {
		return err
	}
	config.Server = p.GetString("server", config.Server)
	config.Scheme = p.GetString("scheme", config.Scheme)
	config.TestID = p.GetString("testid", config.TestID)
	config.Interval = p.GetParsedDuration("interval", config.Interval)
	config.DownloadLength = p.GetInt64("download", config.DownloadLength)
	config.UploadLength = p.GetInt64("upload", config.UploadLength)
	config.MaxUploadLength = p.GetInt64("max-upload", config.MaxUploadLength)
	config.Timeout = p.GetParsedDuration("timeout", config.Timeout)
	config.SkipFailedCycles = p.GetBool("skip-failed-cycles", config.SkipFailedCycles)
	config.NoVerify = p.GetBool("no-verify", config.NoVerify)
	return nil
}
