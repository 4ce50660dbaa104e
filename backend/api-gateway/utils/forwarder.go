package utils

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	awspkg "github.com/cafe360/local-commerce/backend/pkg/aws"
	apperrors "github.com/cafe360/local-commerce/backend/services/common/errors"
	applogger "github.com/cafe360/local-commerce/backend/services/common/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// hopHeaders apply to a single connection and are never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type Forwarder struct {
	client      *http.Client
	dialTimeout time.Duration
	logger      *zap.Logger
	metrics     *awspkg.MetricsClient
}

// NewForwarder builds a forwarder whose upstream calls give up after
// timeout and whose connection attempts give up after dialTimeout.
// metrics may be nil.
func NewForwarder(timeout, dialTimeout time.Duration, logger *zap.Logger, metrics *awspkg.MetricsClient) *Forwarder {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.MaxIdleConnsPerHost = 32

	return &Forwarder{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			// redirects belong to the caller
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		dialTimeout: dialTimeout,
		logger:      logger,
		metrics:     metrics,
	}
}

// Forward relays the request to target and copies the response back.
func (f *Forwarder) Forward(c *gin.Context, target *url.URL) {
	log := applogger.For(c, f.logger)

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target.String(), c.Request.Body)
	if err != nil {
		log.Error("Failed to create forward request", zap.Error(err))
		apperrors.Abort(c, apperrors.ErrInternal)
		return
	}
	req.ContentLength = c.Request.ContentLength
	copyHeader(req.Header, c.Request.Header)
	removeHopHeaders(req.Header)
	setForwardedHeaders(c, req)

	log.Debug("Forwarding request",
		zap.String("method", req.Method),
		zap.String("url", target.String()),
	)

	resp, err := f.client.Do(req)
	if err != nil {
		log.Error("Failed to forward request",
			zap.String("target", target.Host),
			zap.String("path", target.Path),
			zap.Error(err),
		)
		f.recordUpstreamError(target.Host)
		apperrors.Abort(c, apperrors.ErrUpstreamUnavailable)
		return
	}
	defer resp.Body.Close()

	removeHopHeaders(resp.Header)
	out := c.Writer.Header()
	for k, values := range resp.Header {
		// the gateway owns CORS
		if strings.HasPrefix(strings.ToLower(k), "access-control-") {
			continue
		}
		// upstream values replace the gateway's own; multi-value keys keep every value
		out.Del(k)
		for _, v := range values {
			out.Add(k, v)
		}
	}

	c.Status(resp.StatusCode)
	c.Writer.WriteHeaderNow()
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		log.Warn("Failed to copy response body", zap.Error(err))
	}
}

// Tunnel hands a protocol upgrade to target untouched: it replays the
// handshake on a fresh connection and splices the two byte streams until
// either side closes. The client gets 502 when target cannot be reached.
func (f *Forwarder) Tunnel(c *gin.Context, target *url.URL) {
	log := applogger.For(c, f.logger)

	dialCtx, cancel := context.WithTimeout(c.Request.Context(), f.dialTimeout)
	defer cancel()
	backend, err := f.dial(dialCtx, target)
	if err != nil {
		log.Error("Failed to reach upgrade target", zap.String("target", target.Host), zap.Error(err))
		f.recordUpstreamError(target.Host)
		apperrors.Abort(c, apperrors.ErrUpgradeFailed)
		return
	}

	req := &http.Request{
		Method:     c.Request.Method,
		URL:        &url.URL{Path: target.Path, RawPath: target.RawPath, RawQuery: target.RawQuery},
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Host:       target.Host,
	}
	copyHeader(req.Header, c.Request.Header)
	setForwardedHeaders(c, req)

	_ = backend.SetWriteDeadline(time.Now().Add(f.dialTimeout))
	if err := req.Write(backend); err != nil {
		backend.Close()
		log.Error("Failed to send upgrade handshake", zap.String("target", target.Host), zap.Error(err))
		f.recordUpstreamError(target.Host)
		apperrors.Abort(c, apperrors.ErrUpgradeFailed)
		return
	}
	_ = backend.SetWriteDeadline(time.Time{})

	client, buffered, err := c.Writer.Hijack()
	if err != nil {
		backend.Close()
		log.Error("Failed to hijack client connection", zap.Error(err))
		apperrors.Abort(c, apperrors.ErrUpgradeFailed)
		return
	}
	_ = client.SetDeadline(time.Time{})

	// bytes the client sent right after its handshake
	if n := buffered.Reader.Buffered(); n > 0 {
		pending, _ := buffered.Reader.Peek(n)
		if _, err := backend.Write(pending); err != nil {
			client.Close()
			backend.Close()
			return
		}
	}

	f.recordTunnel(target.Host)
	log.Info("Tunnel opened", zap.String("target", target.Host), zap.String("path", target.Path))

	done := make(chan struct{}, 2)
	splice := func(dst, src net.Conn) {
		_, _ = io.Copy(dst, src)
		done <- struct{}{}
	}
	go splice(backend, client)
	go splice(client, backend)

	<-done
	client.Close()
	backend.Close()
	<-done
	log.Info("Tunnel closed", zap.String("target", target.Host))
}

func (f *Forwarder) dial(ctx context.Context, target *url.URL) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: f.dialTimeout}
	addr := target.Host
	if target.Port() == "" {
		if target.Scheme == "https" {
			addr = net.JoinHostPort(target.Hostname(), "443")
		} else {
			addr = net.JoinHostPort(target.Hostname(), "80")
		}
	}

	if target.Scheme == "https" {
		td := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: target.Hostname()}}
		return td.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

func (f *Forwarder) recordUpstreamError(host string) {
	f.record(awspkg.MetricUpstreamErrors, host)
}

func (f *Forwarder) recordTunnel(host string) {
	f.record(awspkg.MetricTunnelsOpened, host)
}

func (f *Forwarder) record(metric, host string) {
	if !f.metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.metrics.RecordCount(ctx, metric, map[string]string{"Service": "api-gateway", "Upstream": host})
	}()
}

// IsUpgrade reports whether r asks to switch protocols.
func IsUpgrade(r *http.Request) bool {
	return r.Header.Get("Upgrade") != "" && headerHasToken(r.Header, "Connection", "upgrade")
}

func headerHasToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

func copyHeader(dst, src http.Header) {
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}

// removeHopHeaders drops the standard hop-by-hop headers and any header
// the Connection header names.
func removeHopHeaders(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

func setForwardedHeaders(c *gin.Context, req *http.Request) {
	if ip, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		if prior := c.Request.Header.Values("X-Forwarded-For"); len(prior) > 0 {
			ip = strings.Join(prior, ", ") + ", " + ip
		}
		req.Header.Set("X-Forwarded-For", ip)
	}
	req.Header.Set("X-Forwarded-Host", c.Request.Host)
	if req.Header.Get("X-Forwarded-Proto") == "" {
		proto := "http"
		if c.Request.TLS != nil {
			proto = "https"
		}
		req.Header.Set("X-Forwarded-Proto", proto)
	}
	if rid := c.GetString(applogger.RequestIDKey); rid != "" {
		req.Header.Set(applogger.RequestIDHeader, rid)
	}
}
