package transcriber

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"anyvoice/log"
)

// maxResponseBytes bounds a buffered answer. Transcripts and chat replies
// are far smaller; anything bigger is a misconfigured endpoint.
const maxResponseBytes = 4 << 20

const warmTimeout = 10 * time.Second

var errResponseTooLarge = errors.New("response body exceeds 4 MiB")

// tracedClient is the HTTP client shared by transcription and correction.
// Every exchange records its phase timings for the request log, and any
// failure before a complete answer is a ServiceError.
type tracedClient struct {
	http *http.Client
}

func newTracedClient() *tracedClient {
	return &tracedClient{
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

type tracedResponse struct {
	status  int
	header  http.Header
	body    []byte
	metrics *NetworkMetrics
}

// phaseTimer turns httptrace callbacks into NetworkMetrics.
type phaseTimer struct {
	m NetworkMetrics

	getConn, dns, connect, handshake time.Time
	gotConn, wroteHeaders, wroteReq  time.Time
	firstByte                        time.Time
}

func (p *phaseTimer) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) { p.getConn = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			p.gotConn = time.Now()
			p.m.ConnWait = p.gotConn.Sub(p.getConn)
			p.m.ConnReused = info.Reused
		},
		DNSStart:          func(httptrace.DNSStartInfo) { p.dns = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { p.m.DNS = time.Since(p.dns) },
		ConnectStart:      func(_, _ string) { p.connect = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { p.m.TCP = time.Since(p.connect) },
		TLSHandshakeStart: func() { p.handshake = time.Now() },
		TLSHandshakeDone: func(cs tls.ConnectionState, _ error) {
			p.m.TLS = time.Since(p.handshake)
			p.m.TLSProtocol = cs.NegotiatedProtocol
		},
		WroteHeaders: func() {
			p.wroteHeaders = time.Now()
			p.m.ReqHeaders = p.wroteHeaders.Sub(p.gotConn)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			p.wroteReq = time.Now()
			p.m.ReqBody = p.wroteReq.Sub(p.wroteHeaders)
		},
		GotFirstResponseByte: func() {
			p.firstByte = time.Now()
			p.m.TTFB = p.firstByte.Sub(p.wroteReq)
		},
	}
}

func (p *phaseTimer) done(start time.Time) *NetworkMetrics {
	if !p.firstByte.IsZero() {
		p.m.Download = time.Since(p.firstByte)
	}
	p.m.Total = time.Since(start)
	m := p.m
	return &m
}

// send performs req on behalf of stage and buffers the whole body.
func (c *tracedClient) send(stage string, req *http.Request) (*tracedResponse, error) {
	pt := &phaseTimer{}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), pt.trace()))
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, requestFailed(stage, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, requestFailed(stage, err)
	}
	if len(body) > maxResponseBytes {
		return nil, badResponse(stage, resp.StatusCode, errResponseTooLarge)
	}

	return &tracedResponse{
		status:  resp.StatusCode,
		header:  resp.Header,
		body:    body,
		metrics: pt.done(start),
	}, nil
}

// decode checks the status and unmarshals a 2xx body into v.
func (r *tracedResponse) decode(stage string, v any) error {
	if r.status < 200 || r.status > 299 {
		return parseServiceError(stage, r.status, r.body)
	}
	if err := json.Unmarshal(r.body, v); err != nil {
		return badResponse(stage, r.status, err)
	}
	return nil
}

// rateLimit is the request quota as "remaining/limit", "?" where unknown.
func (r *tracedResponse) rateLimit() string {
	return firstNonEmpty(r.header, "x-ratelimit-remaining-requests") + "/" +
		firstNonEmpty(r.header, "x-ratelimit-limit-requests")
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// warm parks an open connection to baseURL so the first real request can
// reuse it. It reports whether a connection was made.
func (c *tracedClient) warm(baseURL string) bool {
	pt := &phaseTimer{}
	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, pt.trace()), http.MethodHead, baseURL, nil)
	if err != nil {
		log.Warnf("warm %s: %v", baseURL, err)
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warnf("warm %s: %v", baseURL, err)
		return false
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	log.Infof("warm %s: tls %.1fms", baseURL, ms(pt.m.TLS))
	return true
}
