package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/m-lab/rspeed/internal/clock"
	"github.com/m-lab/rspeed/pkg/cycle1/model"
	"github.com/m-lab/rspeed/pkg/cycle1/spec"
)

const (
	contentTypeJSON  = "application/json"
	contentTypeOctet = "application/octet-stream"
	acceptData       = "text/plain, application/octet-stream"
)

// request describes a single exchange.
type request struct {
	path        string
	body        io.Reader
	length      int64
	contentType string
	accept      string
	// streamed responses are drained and counted; the others are expected
	// to contain a single JSON object.
	streamed bool
}

// exchange sends req to the server and returns the client-side timing of the
// exchange. For non-streamed requests the response body is returned too.
//
// RequestBegin is taken right before the request is sent and RequestEnd once
// the response headers are available. ResponseBegin and ResponseEnd bracket
// reading the response body.
func (c *Client) exchange(ctx context.Context, req request) (model.Timing, []byte, error) {
	var timing model.Timing
	timestamp := clock.Now()
	u := c.session.Server + req.path
	fail := func(err error) (model.Timing, []byte, error) {
		return timing, nil, &TransportFailure{
			URL:       u,
			Path:      req.path,
			Timestamp: timestamp,
			Err:       err,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, req.body)
	if err != nil {
		return fail(err)
	}
	httpReq.ContentLength = req.length
	httpReq.Header.Set("Content-Type", req.contentType)
	httpReq.Header.Set("Accept", req.accept)
	httpReq.Header.Set("User-Agent", makeUserAgent(c.ClientName, c.ClientVersion))

	timing.RequestBegin = clock.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()
	timing.RequestEnd = clock.Now()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fail(fmt.Errorf("unexpected status: %s", resp.Status))
	}

	var body []byte
	timing.ResponseBegin = clock.Now()
	if req.streamed {
		timing.ReceiveLength, err = drain(resp.Body)
	} else {
		var extra int64
		body, extra, err = readControl(resp.Body)
		timing.ReceiveLength = int64(len(body)) + extra
		if err == nil && extra > 0 {
			err = fmt.Errorf("%w: %d bytes after the JSON response", ErrProtocolAnomaly, extra)
		}
	}
	timing.ResponseEnd = clock.Now()
	if err != nil {
		return fail(err)
	}
	return timing, body, nil
}

// drain reads r until EOF and returns the number of bytes read.
func drain(r io.Reader) (int64, error) {
	var total int64
	buf := make([]byte, spec.ReadChunkSize)
	for {
		n, err := r.Read(buf)
		total += int64(n)
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// readControl reads up to MaxControlMessageSize bytes from r, then drains the
// rest and returns how many bytes were beyond the limit.
func readControl(r io.Reader) ([]byte, int64, error) {
	body, err := io.ReadAll(io.LimitReader(r, spec.MaxControlMessageSize))
	if err != nil {
		return body, 0, err
	}
	extra, err := io.Copy(io.Discard, r)
	return body, extra, err
}

// postRecord sends rec as JSON to path and decodes the JSON reply.
func (c *Client) postRecord(ctx context.Context, path string, rec *model.Record) (*model.Record, model.Timing, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, model.Timing{}, err
	}
	timing, body, err := c.exchange(ctx, request{
		path:        path,
		body:        bytes.NewReader(data),
		length:      int64(len(data)),
		contentType: contentTypeJSON,
		accept:      contentTypeJSON,
	})
	if err != nil {
		return nil, timing, err
	}
	reply, err := c.decode(path, timing.RequestBegin, body)
	return reply, timing, err
}

// decode parses a control response. Any decoding error is reported as a
// protocol anomaly of the exchange on path.
func (c *Client) decode(path string, timestamp int64, body []byte) (*model.Record, error) {
	reply := &model.Record{}
	if err := json.Unmarshal(body, reply); err != nil {
		return nil, &TransportFailure{
			URL:       c.session.Server + path,
			Path:      path,
			Timestamp: timestamp,
			Err:       fmt.Errorf("%w: %v", ErrProtocolAnomaly, err),
		}
	}
	return reply, nil
}
