package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stafflink/internal/events"

	"go.uber.org/zap"
)

type Provider interface {
	Send(ctx context.Context, event events.NotificationRequestedEvent) error
}

type DispatcherConfig struct {
	// base URL of the send-email, send-sms and send-whatsapp functions;
	// empty selects the log provider
	FunctionsURL   string
	FunctionsToken string
	Timeout        time.Duration
}

type Dispatcher struct {
	providers map[Channel]Provider
	fallback  Provider
}

func NewDispatcher(cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	logp := logProvider{logger: logger.Named("notification.log_provider")}
	d := &Dispatcher{providers: map[Channel]Provider{}, fallback: logp}
	if cfg.FunctionsURL == "" {
		return d
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	base := strings.TrimRight(cfg.FunctionsURL, "/")
	for ch, fn := range map[Channel]string{
		ChannelEmail:    "send-email",
		ChannelSMS:      "send-sms",
		ChannelWhatsApp: "send-whatsapp",
	} {
		d.providers[ch] = webhookProvider{url: base + "/" + fn, token: cfg.FunctionsToken, client: client}
	}
	return d
}

// WithProvider overrides the provider for one channel.
func (d *Dispatcher) WithProvider(ch Channel, p Provider) *Dispatcher {
	d.providers[ch] = p
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, event events.NotificationRequestedEvent) error {
	if event.To == "" {
		return ErrNoRecipient
	}
	p, ok := d.providers[Channel(event.Channel)]
	if !ok {
		p = d.fallback
	}
	return p.Send(ctx, event)
}

type logProvider struct {
	logger *zap.Logger
}

func (p logProvider) Send(_ context.Context, event events.NotificationRequestedEvent) error {
	p.logger.Info("notification",
		zap.String("channel", event.Channel),
		zap.String("to", event.To),
		zap.String("subject", event.Subject),
		zap.String("aggregate_id", event.AggregateID),
	)
	return nil
}

type webhookProvider struct {
	url    string
	token  string
	client *http.Client
}

type webhookPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message,omitempty"`
	HTML    string `json:"html,omitempty"`
}

func (p webhookProvider) Send(ctx context.Context, event events.NotificationRequestedEvent) error {
	body, err := json.Marshal(webhookPayload{
		To:      event.To,
		Subject: event.Subject,
		Message: event.Message,
		HTML:    event.HTML,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	if event.RequestID != "" {
		req.Header.Set("X-Request-ID", event.RequestID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("provider %s rejected request: status %d", p.url, resp.StatusCode)
	}
	return nil
}
