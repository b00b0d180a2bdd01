package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"healthsync/internal/config"
)

var ErrNotConfigured = errors.New("telegram bot token is not configured")

type Client struct {
	token string
	http  *resty.Client
}

func NewClient(cfg config.TelegramConfig) *Client {
	base := cfg.APIURL
	if base == "" {
		base = "https://api.telegram.org"
	}
	return &Client{
		token: strings.TrimSpace(cfg.Token),
		http: resty.New().
			SetBaseURL(strings.TrimRight(base, "/")).
			SetTimeout(10 * time.Second),
	}
}

type sendMessageReq struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if c.token == "" {
		return ErrNotConfigured
	}
	var out apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("token", c.token).
		SetBody(sendMessageReq{ChatID: chatID, Text: text}).
		SetResult(&out).
		SetError(&out).
		Post("/bot{token}/sendMessage")
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return checkResponse(resp, out)
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error {
	if c.token == "" {
		return ErrNotConfigured
	}
	var out apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("token", c.token).
		SetFormData(map[string]string{"chat_id": strconv.FormatInt(chatID, 10)}).
		SetFileReader("document", fileName, bytes.NewReader(fileData)).
		SetResult(&out).
		SetError(&out).
		Post("/bot{token}/sendDocument")
	if err != nil {
		return fmt.Errorf("failed to send telegram document: %w", err)
	}
	return checkResponse(resp, out)
}

func checkResponse(resp *resty.Response, out apiResponse) error {
	if resp.IsError() || !out.OK {
		return fmt.Errorf("telegram api returned status: %s, body: %s", resp.Status(), resp.String())
	}
	return nil
}
