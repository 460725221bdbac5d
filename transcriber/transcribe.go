package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"anyvoice/log"
)

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		Start        float64 `json:"start"`
		End          float64 `json:"end"`
		NoSpeechProb float64 `json:"no_speech_prob"`
		AvgLogProb   float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe uploads the audio file and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	res, err := c.TranscribeResult(ctx, audioPath, language)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (c *Client) TranscribeResult(ctx context.Context, audioPath, language string) (*Result, error) {
	apiKey, err := c.key()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio"+filepath.Ext(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	writer.WriteField("model", c.provider.TranscribeModel)
	writer.WriteField("response_format", c.provider.ResponseFormat)
	if language != "" {
		writer.WriteField("language", language)
	}
	writer.Close()
	uploadKB := float64(body.Len()) / 1024

	req, err := http.NewRequestWithContext(ctx, "POST", c.provider.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.send("transcription", req)
	if err != nil {
		return nil, err
	}

	var tResp transcriptionResponse
	if err := resp.decode("transcription", &tResp); err != nil {
		return nil, err
	}

	var noSpeechProb float64
	var segments []Segment
	for _, seg := range tResp.Segments {
		if seg.NoSpeechProb > noSpeechProb {
			noSpeechProb = seg.NoSpeechProb
		}
		segments = append(segments, Segment{
			Text:         seg.Text,
			NoSpeechProb: seg.NoSpeechProb,
			AvgLogProb:   seg.AvgLogProb,
			Start:        seg.Start,
			End:          seg.End,
		})
	}

	logRequest("transcription", c.provider.Name, resp.metrics, tResp.Duration, uploadKB)

	return &Result{
		Text:         tResp.Text,
		Metrics:      resp.metrics,
		RateLimit:    resp.rateLimit(),
		NoSpeechProb: noSpeechProb,
		Duration:     tResp.Duration,
		Segments:     segments,
	}, nil
}

func logRequest(stage, provider string, m *NetworkMetrics, audioS, uploadKB float64) {
	if m == nil {
		return
	}
	log.Request(stage, provider, log.RequestMetrics{
		AudioLengthS: audioS,
		UploadKB:     uploadKB,
		DNSTimeMs:    ms(m.DNS),
		TLSTimeMs:    ms(m.TLS),
		TTFBMs:       ms(m.TTFB),
		TotalTimeMs:  ms(m.Total),
	}, m.ConnReused, m.TLSProtocol)
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
