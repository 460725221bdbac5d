package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	correctionSystemPrompt = "あなたは文章を自然で正確な日本語に修正するアシスタントです。入力されたテキストを、文法や表現を改善して自然な文章に修正してください。"
	correctionUserPrefix   = "以下のテキストを自然な文法に修正してください：\n\n"
	correctionTemperature  = 0.3
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Correct asks the chat model to fix grammar and phrasing. An empty answer
// yields the input unchanged.
func (c *Client) Correct(ctx context.Context, text string) (string, error) {
	apiKey, err := c.key()
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.provider.CorrectModel,
		Messages: []chatMessage{
			{Role: "system", Content: correctionSystemPrompt},
			{Role: "user", Content: correctionUserPrefix + text},
		},
		Temperature: correctionTemperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.provider.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.send("correction", req)
	if err != nil {
		return "", err
	}

	var cResp chatResponse
	if err := resp.decode("correction", &cResp); err != nil {
		return "", err
	}

	logRequest("correction", c.provider.Name, resp.metrics, 0, 0)

	if len(cResp.Choices) == 0 {
		return text, nil
	}
	out := strings.TrimSpace(cResp.Choices[0].Message.Content)
	if out == "" {
		return text, nil
	}
	return out, nil
}
