package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Discord caps embeds per message and fields per embed
const (
	maxEmbedsPerMessage = 10
	maxFieldsPerEmbed   = 25
)

// DiscordNotifier posts to a Discord webhook
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
	// pause between consecutive messages of one PostEmbeds call
	pause time.Duration
}

func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		pause:      time.Second,
	}
}

// WithPause changes the delay between messages
func (d *DiscordNotifier) WithPause(p time.Duration) *DiscordNotifier {
	d.pause = p
	return d
}

type discordMessage struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

func (d *DiscordNotifier) SendAlert(ctx context.Context, level, message string) error {
	return d.post(ctx, discordMessage{Content: fmt.Sprintf("%s **Gap Backtest**\n%s", levelEmoji(level), message)})
}

// PostEmbeds sends embeds in as many messages as Discord's limits require
func (d *DiscordNotifier) PostEmbeds(ctx context.Context, embeds ...Embed) error {
	for i := range embeds {
		if len(embeds[i].Fields) > maxFieldsPerEmbed {
			embeds[i].Fields = embeds[i].Fields[:maxFieldsPerEmbed]
		}
	}
	for start := 0; start < len(embeds); start += maxEmbedsPerMessage {
		if start > 0 && d.pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.pause):
			}
		}
		end := start + maxEmbedsPerMessage
		if end > len(embeds) {
			end = len(embeds)
		}
		if err := d.post(ctx, discordMessage{Embeds: embeds[start:end]}); err != nil {
			return err
		}
	}
	return nil
}

func (d *DiscordNotifier) post(ctx context.Context, msg discordMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal discord message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return nil
}
