package flows

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/ports"
)

// TokenSource supplies the service credential for flows-engine calls. Refresh
// is invoked after an auth rejection; implementations may return the same
// token when rotation is not configured.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for fixed service credentials.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error)   { return string(t), nil }
func (t StaticToken) Refresh(context.Context) (string, error) { return string(t), nil }

// Client talks to the flows engine over HTTP. Auth failures refresh the token
// and retry within a small budget; 5xx responses fail fast so the caller's
// transaction can roll back instead of hanging on a sick upstream.
type Client struct {
	baseURL     string
	http        *http.Client
	tokens      TokenSource
	authRetries int
}

func NewClient(baseURL string, tokens TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     baseURL,
		http:        &http.Client{Timeout: timeout},
		tokens:      tokens,
		authRetries: 4,
	}
}

func (c *Client) StartFlow(ctx context.Context, flowUUID uuid.UUID, urns []string, params ports.FlowStartParams) error {
	body := map[string]any{
		"flow": flowUUID.String(),
		"urns": urns,
		"params": map[string]any{
			"room":        params.RoomID.String(),
			"token":       params.Token,
			"webhook_url": params.WebhookURL,
		},
	}
	return c.do(ctx, http.MethodPost, "/api/v2/flow_starts.json", body, nil)
}

func (c *Client) UpdateTicketAssignee(ctx context.Context, ticketUUID uuid.UUID, userEmail string) error {
	body := map[string]any{"assignee": userEmail}
	return c.do(ctx, http.MethodPost, "/api/v2/tickets/"+ticketUUID.String()+"/assignee.json", body, nil)
}

func (c *Client) UpdateContactFields(ctx context.Context, projectID uuid.UUID, contactExternalID string, fields map[string]any) error {
	body := map[string]any{
		"project": projectID.String(),
		"contact": contactExternalID,
		"fields":  fields,
	}
	return c.do(ctx, http.MethodPost, "/api/v2/contacts/fields.json", body, nil)
}

func (c *Client) GetProjectFlowUUID(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error) {
	var out struct {
		CSATFlowUUID string `json:"csat_flow_uuid"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v2/internal/projects/"+projectID.String()+"/config.json", nil, &out); err != nil {
		return uuid.Nil, err
	}
	if out.CSATFlowUUID == "" {
		return uuid.Nil, nil
	}
	flowUUID, err := uuid.Parse(out.CSATFlowUUID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse csat flow uuid: %w", err)
	}
	return flowUUID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal flows request: %w", err)
		}
		payload = raw
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("flows token: %w", err)
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Token "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("flows request %s %s: %w", method, path, err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			defer resp.Body.Close()
			if out == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				return nil
			}
			return json.NewDecoder(resp.Body).Decode(out)

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if attempt >= c.authRetries {
				return fmt.Errorf("flows auth rejected after %d attempts", attempt+1)
			}
			slog.Default().WarnContext(ctx, "flows auth rejected; refreshing token",
				"module", "flows",
				"layer", "adapter",
				"operation", "flows_request",
				"outcome", "retry",
				"path", path,
				"attempt", attempt+1,
			)
			token, err = c.tokens.Refresh(ctx)
			if err != nil {
				return fmt.Errorf("flows token refresh: %w", err)
			}

		default:
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return fmt.Errorf("flows request %s %s: status %d: %s", method, path, resp.StatusCode, snippet)
		}
	}
}
