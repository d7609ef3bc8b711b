// Package notify publishes push notifications to an ntfy-compatible sink.
//
// The sink is an external collaborator: a plain HTTP endpoint that takes the
// notification body as the POST payload and all metadata (title, priority,
// tags, tap actions) as request headers. Delivery is fire-and-forget - a
// failed publish is logged and never affects the action it announces, since
// the operator can always reach the resolution page through other means.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/dbbuilder-org/claude-notify/internal/errors"
	"github.com/dbbuilder-org/claude-notify/internal/store"
)

// publishTimeout bounds a single publish attempt.
const publishTimeout = 10 * time.Second

// Publisher posts action notifications to a configured ntfy topic.
type Publisher struct {
	server   string // Sink base URL, e.g. https://ntfy.sh
	topic    string
	priority string
	baseURL  string // Public control-plane URL used to build action links.
	client   *http.Client
}

// New creates a Publisher. Returns nil when topic is empty - push publishing
// is disabled and a nil Publisher is safe to call.
func New(server, topic, priority, baseURL string) *Publisher {
	if topic == "" {
		return nil
	}
	return &Publisher{
		server:   strings.TrimRight(server, "/"),
		topic:    topic,
		priority: priority,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: publishTimeout},
	}
}

// PublishAction announces a newly registered action. For permission-style
// actions the notification carries one-tap Approve/Deny action buttons that
// hit the resolve endpoint directly; tapping the notification body opens the
// resolution page.
func (p *Publisher) PublishAction(rec store.ActionRecord) error {
	if p == nil {
		return nil
	}

	title := rec.Kind.Label()
	if rec.Project != "" {
		title = fmt.Sprintf("%s — %s", title, rec.Project)
	}

	body := rec.Message
	if body == "" {
		body = rec.Kind.Label()
	}

	pageURL := fmt.Sprintf("%s/action?token=%s", p.baseURL, url.QueryEscape(rec.Token))

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.server+"/"+url.PathEscape(p.topic), strings.NewReader(body))
	if err != nil {
		return apperrors.PublishFailed(err)
	}

	req.Header.Set("Title", title)
	req.Header.Set("Priority", p.priorityFor(rec.Kind))
	req.Header.Set("Tags", tagFor(rec.Kind))
	req.Header.Set("Click", pageURL)
	if rec.Kind == store.KindPermission {
		req.Header.Set("Actions", p.verdictActions(rec.Token))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		log.Printf("notify: publish for token %s failed: %v", rec.Token, err)
		return apperrors.PublishFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("notify: sink returned %d for token %s", resp.StatusCode, rec.Token)
		return apperrors.PublishFailed(fmt.Errorf("sink returned status %d", resp.StatusCode))
	}

	log.Printf("notify: published %s notification for token %s", rec.Kind, rec.Token)
	return nil
}

// verdictActions builds the ntfy Actions header: two HTTP action buttons
// resolving the token without opening a browser.
func (p *Publisher) verdictActions(token string) string {
	resolve := func(verdict string) string {
		return fmt.Sprintf("%s/api/resolve?token=%s&verdict=%s",
			p.baseURL, url.QueryEscape(token), verdict)
	}
	return fmt.Sprintf("http, Approve, %s, clear=true; http, Deny, %s, clear=true",
		resolve("allow"), resolve("deny"))
}

// priorityFor raises permission prompts above informational events.
func (p *Publisher) priorityFor(kind store.ActionKind) string {
	switch kind {
	case store.KindPermission, store.KindElicitation:
		return p.priority
	default:
		return "default"
	}
}

// tagFor maps kinds to ntfy emoji shortcodes.
func tagFor(kind store.ActionKind) string {
	switch kind {
	case store.KindPermission:
		return "closed_lock_with_key"
	case store.KindIdle:
		return "pause_button"
	case store.KindElicitation:
		return "question"
	case store.KindCompletion:
		return "white_check_mark"
	default:
		return "bell"
	}
}
