package apns

import (
	"context"
	"net/http"
)

// Request is one notification POST.
type Request struct {
	Host   string
	Path   string
	Header http.Header
	Body   []byte
}

// Transport opens a connection to a gateway host.
type Transport interface {
	Dial(ctx context.Context, host string) (Conn, error)
}

// Conn is a single multiplexed connection. The client opens one per send
// and closes it on every path.
type Conn interface {
	Submit(ctx context.Context, req *Request) (Stream, error)
	Close() error
}

// Stream is an in-flight exchange. Poll never blocks: it reports whether
// the response has completed and, if so, its body. A non-nil error means
// the exchange failed before completing.
type Stream interface {
	Poll() (done bool, body []byte, err error)
}
