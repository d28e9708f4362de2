package telegram

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	maxMessageBytes = 4096
	maxCaptionBytes = 1024
)

type Options struct {
	Token  string
	ChatID int64

	// APIEndpoint overrides the Bot API URL template, mostly for tests.
	APIEndpoint string
	HTTPClient  *http.Client
	Logger      *slog.Logger
	Debug       bool
}

// Client posts storyboard artifacts to a single chat.
type Client struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if opts.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	if opts.HTTPClient == nil {
		return nil, errors.New("http client is nil")
	}

	endpoint := opts.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, endpoint, opts.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	bot.Debug = opts.Debug

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		bot:    bot,
		chatID: opts.ChatID,
		logger: logger.With("component", "telegram"),
	}, nil
}

func (c *Client) Username() string {
	return c.bot.Self.UserName
}

func (c *Client) SendText(text string) error {
	for _, p := range splitByBytes(text, maxMessageBytes) {
		if _, err := c.bot.Send(tgbotapi.NewMessage(c.chatID, p)); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func (c *Client) SendVideo(path, caption string) error {
	file, err := readFile(path)
	if err != nil {
		return err
	}
	video := tgbotapi.NewVideo(c.chatID, file)
	video.Caption = truncateByBytes(caption, maxCaptionBytes)
	video.SupportsStreaming = true

	if _, err := c.bot.Send(video); err != nil {
		return fmt.Errorf("send video: %w", err)
	}
	c.logger.Info("video sent", "path", path, "bytes", len(file.Bytes))
	return nil
}

func (c *Client) SendDocument(path, caption string) error {
	file, err := readFile(path)
	if err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(c.chatID, file)
	doc.Caption = truncateByBytes(caption, maxCaptionBytes)

	if _, err := c.bot.Send(doc); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	c.logger.Info("document sent", "path", path, "bytes", len(file.Bytes))
	return nil
}

func readFile(path string) (tgbotapi.FileBytes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tgbotapi.FileBytes{}, fmt.Errorf("read %s: %w", path, err)
	}
	return tgbotapi.FileBytes{Name: filepath.Base(path), Bytes: data}, nil
}

func splitByBytes(text string, maxBytes int) []string {
	if len(text) <= maxBytes || maxBytes <= 0 {
		return []string{text}
	}

	var out []string
	var buf strings.Builder
	buf.Grow(maxBytes)

	for _, r := range text {
		runeBytes := utf8.RuneLen(r)
		if runeBytes < 0 {
			runeBytes = len(string(r))
		}

		if buf.Len() > 0 && buf.Len()+runeBytes > maxBytes {
			out = append(out, buf.String())
			buf.Reset()
		}
		buf.WriteRune(r)
	}

	if buf.Len() > 0 {
		out = append(out, buf.String())
	}

	return out
}

func truncateByBytes(text string, maxBytes int) string {
	if len(text) <= maxBytes || maxBytes <= 0 {
		return text
	}

	var buf strings.Builder
	buf.Grow(maxBytes)
	for _, r := range text {
		runeBytes := utf8.RuneLen(r)
		if runeBytes < 0 {
			runeBytes = len(string(r))
		}

		if buf.Len()+runeBytes > maxBytes {
			break
		}
		buf.WriteRune(r)
	}
	return buf.String()
}
