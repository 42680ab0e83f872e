package apns

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/net/http2"

	"github.com/turtacn/pushgate/pkg/constants"
	"github.com/turtacn/pushgate/pkg/errors"
)

// HTTP2Transport dials a fresh TLS connection per call and speaks HTTP/2 on
// it directly, without connection pooling.
type HTTP2Transport struct {
	port        int
	dialTimeout time.Duration
	rootCAs     *x509.CertPool
}

// HTTP2TransportOption customizes an HTTP2Transport.
type HTTP2TransportOption func(*HTTP2Transport)

// WithPort overrides the gateway port.
func WithPort(port int) HTTP2TransportOption {
	return func(t *HTTP2Transport) { t.port = port }
}

// WithRootCAs sets the pool used to verify the gateway certificate.
func WithRootCAs(pool *x509.CertPool) HTTP2TransportOption {
	return func(t *HTTP2Transport) { t.rootCAs = pool }
}

// NewHTTP2Transport creates a transport. A nil root pool means the system pool.
func NewHTTP2Transport(dialTimeout time.Duration, opts ...HTTP2TransportOption) *HTTP2Transport {
	if dialTimeout <= 0 {
		dialTimeout = constants.DialTimeout
	}
	t := &HTTP2Transport{port: constants.APNsPort, dialTimeout: dialTimeout}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// LoadCABundle reads a PEM bundle into a certificate pool.
func LoadCABundle(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConnection, err, "read CA bundle")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, errors.ErrConnection.WithMessage("CA bundle contains no certificates").WithMetadata("path", path)
	}
	return pool, nil
}

// Dial implements Transport.
func (t *HTTP2Transport) Dial(ctx context.Context, host string) (Conn, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: t.dialTimeout, KeepAlive: 5 * time.Second},
		Config: &tls.Config{
			ServerName: host,
			RootCAs:    t.rootCAs,
			NextProtos: []string{http2.NextProtoTLS},
			MinVersion: tls.VersionTLS12,
		},
	}

	raw, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(t.port)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrConnection, err, "dial gateway").WithMetadata("host", host)
	}
	tlsConn := raw.(*tls.Conn)
	if proto := tlsConn.ConnectionState().NegotiatedProtocol; proto != http2.NextProtoTLS {
		raw.Close()
		return nil, errors.ErrConnection.WithMessage("gateway did not negotiate h2").WithMetadata("protocol", proto)
	}

	cc, err := (&http2.Transport{}).NewClientConn(tlsConn)
	if err != nil {
		raw.Close()
		return nil, errors.Wrap(errors.ErrConnection, err, "start http2 session")
	}
	return &h2Conn{cc: cc, raw: raw}, nil
}

type h2Conn struct {
	cc  *http2.ClientConn
	raw net.Conn
}

func (c *h2Conn) Submit(ctx context.Context, req *Request) (Stream, error) {
	if !c.cc.CanTakeNewRequest() {
		return nil, errors.ErrConnection.WithMessage("http2 session cannot take new streams")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://"+req.Host+req.Path, bytes.NewReader(req.Body))
	if err != nil {
		return nil, errors.Wrap(errors.ErrConnection, err, "build request")
	}
	httpReq.Header = req.Header.Clone()
	httpReq.Host = req.Host
	httpReq.ContentLength = int64(len(req.Body))

	s := &h2Stream{result: make(chan streamResult, 1)}
	go func() {
		resp, err := c.cc.RoundTrip(httpReq)
		if err != nil {
			s.result <- streamResult{err: err}
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, constants.APNsMaxResponseBody))
		s.result <- streamResult{body: body, err: err}
	}()
	return s, nil
}

func (c *h2Conn) Close() error {
	_ = c.cc.Close()
	return c.raw.Close()
}

type streamResult struct {
	body []byte
	err  error
}

type h2Stream struct {
	result chan streamResult
	done   bool
	last   streamResult
}

func (s *h2Stream) Poll() (bool, []byte, error) {
	if !s.done {
		select {
		case r := <-s.result:
			s.done = true
			s.last = r
		default:
			return false, nil, nil
		}
	}
	if s.last.err != nil {
		return false, nil, s.last.err
	}
	return true, s.last.body, nil
}
