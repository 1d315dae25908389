package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

const (
	telegramAPI = "https://api.telegram.org"
	// Telegram rejects messages longer than 4096 characters.
	maxMessageRunes = 4000
)

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

// Notifier sends digests to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

var _ ports.Deliverer = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  telegramAPI,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Name identifies the delivery channel.
func (n *Notifier) Name() string {
	return "telegram"
}

// Deliver posts the digest as one or more Markdown messages.
func (n *Notifier) Deliver(ctx context.Context, persona, digestDate string, entries []domain.DigestEntry) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	for i, chunk := range split(Format(persona, digestDate, entries), maxMessageRunes) {
		if err := n.send(ctx, chunk); err != nil {
			return fmt.Errorf("send part %d: %w", i+1, err)
		}
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

// Format renders a digest as Telegram Markdown.
func Format(persona, digestDate string, entries []domain.DigestEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s Digest - %s*\n\n", escape(persona), digestDate)

	for _, e := range entries {
		fmt.Fprintf(&b, "*%s*\n", escape(e.Title))
		if e.Summary != "" {
			b.WriteString(escape(e.Summary))
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "_Why it matters:_ %s\n", escape(e.WhyItMatters))
		for _, u := range e.SourceURLs {
			b.WriteString(u)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func escape(s string) string {
	return markdownEscaper.Replace(s)
}

// split cuts text on blank lines so each chunk stays under limit runes.
// A single oversized block is hard-cut.
func split(text string, limit int) []string {
	var (
		chunks  []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, block := range strings.Split(text, "\n\n") {
		runes := []rune(block)
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		if size > 0 && size+2+len(runes) > limit {
			flush()
		}
		if size > 0 {
			current.WriteString("\n\n")
			size += 2
		}
		current.WriteString(string(runes))
		size += len(runes)
	}
	flush()
	return chunks
}
