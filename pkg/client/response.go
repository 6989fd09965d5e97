package client

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// Response is a completed exchange. Buffered responses carry the whole body;
// streamed ones (see Stream) expose it through Body until the callback returns.
type Response struct {
	StatusCode int
	Status     string
	Proto      string
	Header     http.Header
	Request    *http.Request

	body   []byte
	stream io.Reader
}

func newResponse(resp *http.Response) *Response {
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Proto:      resp.Proto,
		Header:     resp.Header,
		Request:    resp.Request,
	}
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Bytes returns the buffered body. It is nil for streamed responses.
func (r *Response) Bytes() []byte { return r.body }

// Body returns a reader over the body, live for streamed responses.
func (r *Response) Body() io.Reader {
	if r.stream != nil {
		return r.stream
	}
	return bytes.NewReader(r.body)
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	return json.NewDecoder(r.Body()).Decode(v)
}
