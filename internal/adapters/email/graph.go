package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/example/intake/internal/ports/secondary"
	"github.com/example/intake/internal/version"
)

const graphScope = "https://graph.microsoft.com/.default"

// GraphConfig holds the app registration used to send as From.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	From         string
	BaseURL      string
	TokenURL     string
	Timeout      time.Duration
}

// GraphMailer sends through Microsoft Graph sendMail.
type GraphMailer struct {
	endpoint string
	http     *http.Client
}

// NewGraphMailer creates a GraphMailer. ctx bounds token refreshes.
func NewGraphMailer(ctx context.Context, cfg GraphConfig) *GraphMailer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = "https://login.microsoftonline.com/" + url.PathEscape(cfg.TenantID) + "/oauth2/v2.0/token"
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{graphScope},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	httpClient := cc.Client(ctx)
	httpClient.Timeout = timeout

	return &GraphMailer{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/users/" + url.PathEscape(cfg.From) + "/sendMail",
		http:     httpClient,
	}
}

type graphRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphMessage struct {
	Subject string `json:"subject"`
	Body    struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	ToRecipients []graphRecipient `json:"toRecipients"`
}

type sendMailRequest struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

func buildSendMail(email secondary.Email) sendMailRequest {
	var msg graphMessage
	msg.Subject = email.Subject
	msg.Body.ContentType = "HTML"
	msg.Body.Content = email.HTMLBody
	for _, addr := range email.To {
		var r graphRecipient
		r.EmailAddress.Address = addr
		msg.ToRecipients = append(msg.ToRecipients, r)
	}
	return sendMailRequest{Message: msg}
}

// Send posts the message. Graph answers 202 with an empty body on success.
func (m *GraphMailer) Send(ctx context.Context, email secondary.Email) error {
	body, err := json.Marshal(buildSendMail(email))
	if err != nil {
		return fmt.Errorf("failed to encode graph message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build graph request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph sendMail failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graph sendMail returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// Transport returns "graph".
func (m *GraphMailer) Transport() string { return "graph" }

var _ secondary.Mailer = (*GraphMailer)(nil)
