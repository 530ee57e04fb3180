package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

type SenderTelegram struct {
	apiBase string
	token   string
	chatID  string
	http    *http.Client
}

func NewSenderTelegram(token, chatID string) *SenderTelegram {
	return NewSender(defaultAPIBase, token, chatID)
}

// NewSender targets a Bot API compatible endpoint at apiBase.
func NewSender(apiBase, token, chatID string) *SenderTelegram {
	return &SenderTelegram{
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
		chatID:  chatID,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SenderTelegram) Send(text string) error {
	body := map[string]any{
		"chat_id":    s.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	b, _ := json.Marshal(body)

	resp, err := s.http.Post(
		fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.token),
		"application/json",
		bytes.NewReader(b),
	)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram http %d", resp.StatusCode)
	}
	return nil
}
