// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/velofeed/internal/alerts"
	"github.com/rewired-gh/velofeed/internal/models"
)

// AlertLookup answers the /alert command.
type AlertLookup interface {
	Latest(ctx context.Context, city string) (*models.SystemAlert, error)
	History(ctx context.Context, city string, limit int) ([]models.SystemAlert, error)
	Cities(ctx context.Context) ([]string, error)
}

// maxHistory caps /alert <city> <n>.
const maxHistory = 20

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	lookup         AlertLookup
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SetAlertLookup enables the /alert command.
func (c *Client) SetAlertLookup(lookup AlertLookup) {
	c.lookup = lookup
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(ctx, update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	var text string
	switch msg.Command() {
	case "ping":
		text = "Pong"
	case "alert":
		text = c.describeAlerts(ctx, msg.CommandArguments())
	default:
		return
	}
	c.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, text)) //nolint:errcheck
}

// describeAlerts answers /alert: no argument lists the cities with history,
// <city> shows the latest alert and <city> <n> the n newest ones.
func (c *Client) describeAlerts(ctx context.Context, args string) string {
	if c.lookup == nil {
		return "Alert history is not available"
	}

	fields := strings.Fields(args)
	switch len(fields) {
	case 0:
		cities, err := c.lookup.Cities(ctx)
		if err != nil {
			return fmt.Sprintf("Failed to load cities: %v", err)
		}
		if len(cities) == 0 {
			return "No alerts recorded yet"
		}
		return "Cities with alerts: " + strings.Join(cities, ", ")
	case 1:
		latest, err := c.lookup.Latest(ctx, fields[0])
		if err != nil {
			return fmt.Sprintf("Failed to load alerts for %s: %v", fields[0], err)
		}
		return formatLatest(fields[0], latest)
	case 2:
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > maxHistory {
			return fmt.Sprintf("Usage: /alert <city> [1-%d]", maxHistory)
		}
		history, err := c.lookup.History(ctx, fields[0], n)
		if err != nil {
			return fmt.Sprintf("Failed to load alerts for %s: %v", fields[0], err)
		}
		return formatHistory(fields[0], history)
	default:
		return fmt.Sprintf("Usage: /alert <city> [1-%d]", maxHistory)
	}
}

// formatLatest renders the latest alert of a city as plain text.
func formatLatest(city string, latest *models.SystemAlert) string {
	if latest == nil {
		return fmt.Sprintf("No alerts recorded for %s", city)
	}
	if len(latest.StationsDown) == 0 {
		return fmt.Sprintf("%s: all stations up since %s (checked %s)", city,
			latest.Date.UTC().Format(time.RFC3339), latest.LastUpdate.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("%s: %s down since %s (checked %s)", city,
		strings.Join(latest.StationsDown, ", "),
		latest.Date.UTC().Format(time.RFC3339), latest.LastUpdate.UTC().Format(time.RFC3339))
}

// formatHistory renders alerts newest first, one per line.
func formatHistory(city string, history []models.SystemAlert) string {
	if len(history) == 0 {
		return fmt.Sprintf("No alerts recorded for %s", city)
	}
	lines := make([]string, 0, len(history))
	for i := range history {
		lines = append(lines, formatLatest(city, &history[i]))
	}
	return strings.Join(lines, "\n")
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a reconciliation error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(passErr error) error {
	text := fmt.Sprintf("⚠️ *Reconciliation error*\n`%s`", escapeMarkdownV2(passErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Reconciliation recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendEpisodes notifies about newly opened alerts that have stations down.
// Nothing is sent when no such alert exists.
func (c *Client) SendEpisodes(opened []alerts.Outcome) error {
	msg, ok := formatEpisodes(opened)
	if !ok {
		return nil
	}
	return c.sendMarkdownV2(msg)
}

// formatEpisodes formats opened outcomes into a MarkdownV2 message.
// Episodes with an empty outage are recoveries and are skipped.
func formatEpisodes(opened []alerts.Outcome) (string, bool) {
	var b strings.Builder
	n := 0
	for _, o := range opened {
		if o.Action != alerts.ActionOpen || len(o.Alert.StationsDown) == 0 {
			continue
		}
		if n == 0 {
			b.WriteString("🚲 *Station outages*\n\n")
		}
		n++
		fmt.Fprintf(&b, "%d\\. *%s*: %s %s down\n", n,
			escapeMarkdownV2(o.City),
			escapeMarkdownV2(strings.Join(o.Alert.StationsDown, ", ")),
			pluralVerb(len(o.Alert.StationsDown)))
	}
	return b.String(), n > 0
}

func pluralVerb(n int) string {
	if n == 1 {
		return "is"
	}
	return "are"
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
