package transcriber

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingCredential is returned before any request is sent when no
// API key is configured.
var ErrMissingCredential = errors.New("API key is not configured")

// ServiceError is a failed exchange with a remote service: a non-2xx
// answer, a timeout, a transport failure or an unreadable body. Status is 0
// when no HTTP answer was received.
type ServiceError struct {
	Stage   string // "transcription" or "correction"
	Status  int
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Status == 0 && e.Err != nil {
		return fmt.Sprintf("%s service error: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s service error %d: %s", e.Stage, e.Status, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// requestFailed wraps an error that left no usable HTTP answer.
func requestFailed(stage string, err error) *ServiceError {
	return &ServiceError{
		Stage:   stage,
		Message: "Could not reach the " + stage + " service.",
		Err:     err,
	}
}

func badResponse(stage string, status int, err error) *ServiceError {
	return &ServiceError{
		Stage:   stage,
		Status:  status,
		Message: "Unexpected response from the " + stage + " service.",
		Err:     err,
	}
}

func parseServiceError(stage string, status int, body []byte) *ServiceError {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		msg = strings.TrimSpace(payload.Error.Message)
	}
	if msg == "" {
		msg = fmt.Sprintf("API error: %d", status)
	}
	return &ServiceError{Stage: stage, Status: status, Message: msg}
}

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

type Segment struct {
	Text         string
	NoSpeechProb float64
	AvgLogProb   float64
	Start        float64
	End          float64
}

type Result struct {
	Text         string
	Metrics      *NetworkMetrics
	RateLimit    string
	NoSpeechProb float64
	Duration     float64
	Segments     []Segment
}

// Provider describes an OpenAI-compatible endpoint and the models used on it.
type Provider struct {
	Name            string
	BaseURL         string
	TranscribeModel string
	CorrectModel    string
	ResponseFormat  string
}

var (
	OpenAI = Provider{
		Name:            "openai",
		BaseURL:         "https://api.openai.com/v1",
		TranscribeModel: "whisper-1",
		CorrectModel:    "gpt-4o-mini",
		ResponseFormat:  "json",
	}
	Groq = Provider{
		Name:            "groq",
		BaseURL:         "https://api.groq.com/openai/v1",
		TranscribeModel: "whisper-large-v3-turbo",
		CorrectModel:    "llama-3.3-70b-versatile",
		ResponseFormat:  "verbose_json",
	}
)

// Providers lists the selectable providers by name.
var Providers = map[string]Provider{
	OpenAI.Name: OpenAI,
	Groq.Name:   Groq,
}

func ProviderByName(name string) (Provider, error) {
	p, ok := Providers[strings.ToLower(name)]
	if !ok {
		return Provider{}, fmt.Errorf("unknown provider %q", name)
	}
	return p, nil
}

// Client talks to one provider for both transcription and correction.
// The API key is looked up on every call so settings changes take effect
// without a restart.
type Client struct {
	provider Provider
	client   *tracedClient
	apiKey   func() string
}

func NewClient(p Provider, apiKey func() string) *Client {
	return &Client{
		provider: p,
		client:   newTracedClient(),
		apiKey:   apiKey,
	}
}

func (c *Client) Name() string { return c.provider.Name }

// Warm opens a connection ahead of the first request.
func (c *Client) Warm() {
	c.client.warm(c.provider.BaseURL)
}

func (c *Client) key() (string, error) {
	if c.apiKey == nil {
		return "", ErrMissingCredential
	}
	k := strings.TrimSpace(c.apiKey())
	if k == "" {
		return "", ErrMissingCredential
	}
	return k, nil
}
