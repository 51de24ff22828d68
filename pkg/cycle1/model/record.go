package model

// Record is the flat JSON object exchanged with the server on every endpoint.
// A single Record is created per subtest, filled in while the exchange
// progresses, sent back to the server as the report and then discarded.
//
// Field order is the order used when the record is logged.
type Record struct {
	// ExternalIP is the client address as seen by the server.
	ExternalIP string `json:"externalIP,omitempty"`
	// OldExternalIP is set by the server when the client address changed.
	OldExternalIP string `json:"oldExternalIP,omitempty"`
	// TestID identifies the session. It is assigned by the server at
	// bootstrap unless the operator provides one.
	TestID string `json:"testID,omitempty"`
	// TestBegin is the session start time (ms since epoch).
	TestBegin *int64 `json:"testBegin,omitempty"`
	// TestNumber is the cycle this record belongs to.
	TestNumber *int64 `json:"testNumber,omitempty"`
	// Pathname is the endpoint this record was sent to.
	Pathname string `json:"pathname,omitempty"`

	ClientTimestamp *int64 `json:"clientTimestamp,omitempty"`
	ServerTimestamp *int64 `json:"serverTimestamp,omitempty"`

	// Interval is the time between cycles, in seconds.
	Interval       *int64 `json:"interval,omitempty"`
	DownloadLength *int64 `json:"downloadLength,omitempty"`
	UploadLength   *int64 `json:"uploadLength,omitempty"`

	ClientReceiveLength *int64 `json:"clientReceiveLength,omitempty"`
	ClientRequestBegin  *int64 `json:"clientRequestBegin,omitempty"`
	ClientRequestEnd    *int64 `json:"clientRequestEnd,omitempty"`
	ClientResponseBegin *int64 `json:"clientResponseBegin,omitempty"`
	ClientResponseEnd   *int64 `json:"clientResponseEnd,omitempty"`

	ServerReceiveLength *int64 `json:"serverReceiveLength,omitempty"`
	ServerRequestBegin  *int64 `json:"serverRequestBegin,omitempty"`
	ServerRequestEnd    *int64 `json:"serverRequestEnd,omitempty"`
	ServerResponseBegin *int64 `json:"serverResponseBegin,omitempty"`
	ServerResponseEnd   *int64 `json:"serverResponseEnd,omitempty"`

	DownloadReceiveLength *int64 `json:"downloadReceiveLength,omitempty"`
	UploadReceiveLength   *int64 `json:"uploadReceiveLength,omitempty"`

	// Error is a server-provided error description, if any.
	Error string `json:"error,omitempty"`
}

// Int returns a pointer to v.
func Int(v int64) *int64 {
	return &v
}

// Value returns the value pointed to by p, or zero if p is nil.
func Value(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// SetOnce sets *dst to v unless it already holds a value.
func SetOnce(dst **int64, v int64) {
	if *dst == nil {
		*dst = Int(v)
	}
}

func setOnceString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func mergeOnce(dst **int64, src *int64) {
	if src != nil {
		SetOnce(dst, *src)
	}
}

// Timing is what a single exchange measures on the client side. All the
// timestamps are milliseconds since the Unix epoch.
type Timing struct {
	RequestBegin  int64
	RequestEnd    int64
	ResponseBegin int64
	ResponseEnd   int64
	ReceiveLength int64
}

// SetTiming copies t into the client-side fields of r. Fields that are
// already set are left alone.
func (r *Record) SetTiming(t Timing) {
	SetOnce(&r.ClientReceiveLength, t.ReceiveLength)
	SetOnce(&r.ClientRequestBegin, t.RequestBegin)
	SetOnce(&r.ClientRequestEnd, t.RequestEnd)
	SetOnce(&r.ClientResponseBegin, t.ResponseBegin)
	SetOnce(&r.ClientResponseEnd, t.ResponseEnd)
}

// Merge copies every field of other that is not yet set in r.
func (r *Record) Merge(other *Record) {
	if other == nil {
		return
	}
	setOnceString(&r.ExternalIP, other.ExternalIP)
	setOnceString(&r.OldExternalIP, other.OldExternalIP)
	setOnceString(&r.TestID, other.TestID)
	mergeOnce(&r.TestBegin, other.TestBegin)
	mergeOnce(&r.TestNumber, other.TestNumber)
	setOnceString(&r.Pathname, other.Pathname)
	mergeOnce(&r.ClientTimestamp, other.ClientTimestamp)
	mergeOnce(&r.ServerTimestamp, other.ServerTimestamp)
	mergeOnce(&r.Interval, other.Interval)
	mergeOnce(&r.DownloadLength, other.DownloadLength)
	mergeOnce(&r.UploadLength, other.UploadLength)
	mergeOnce(&r.ClientReceiveLength, other.ClientReceiveLength)
	mergeOnce(&r.ClientRequestBegin, other.ClientRequestBegin)
	mergeOnce(&r.ClientRequestEnd, other.ClientRequestEnd)
	mergeOnce(&r.ClientResponseBegin, other.ClientResponseBegin)
	mergeOnce(&r.ClientResponseEnd, other.ClientResponseEnd)
	mergeOnce(&r.ServerReceiveLength, other.ServerReceiveLength)
	mergeOnce(&r.ServerRequestBegin, other.ServerRequestBegin)
	mergeOnce(&r.ServerRequestEnd, other.ServerRequestEnd)
	mergeOnce(&r.ServerResponseBegin, other.ServerResponseBegin)
	mergeOnce(&r.ServerResponseEnd, other.ServerResponseEnd)
	mergeOnce(&r.DownloadReceiveLength, other.DownloadReceiveLength)
	mergeOnce(&r.UploadReceiveLength, other.UploadReceiveLength)
	setOnceString(&r.Error, other.Error)
}

// Missing returns the JSON names of the bootstrap fields absent from r.
func (r *Record) Missing() []string {
	var missing []string
	if r.TestID == "" {
		missing = append(missing, "testID")
	}
	if r.TestBegin == nil {
		missing = append(missing, "testBegin")
	}
	if r.Interval == nil {
		missing = append(missing, "interval")
	}
	if r.DownloadLength == nil {
		missing = append(missing, "downloadLength")
	}
	if r.UploadLength == nil {
		missing = append(missing, "uploadLength")
	}
	return missing
}
