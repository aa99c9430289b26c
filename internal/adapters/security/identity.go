package security

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/viralforge/livechat/internal/domain"
)

// OIDCVerifier resolves user bearer tokens against the identity provider's
// userinfo endpoint and returns the subject email.
type OIDCVerifier struct {
	userinfoURL string
	http        *http.Client
}

func NewOIDCVerifier(userinfoURL string, timeout time.Duration) *OIDCVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OIDCVerifier{
		userinfoURL: userinfoURL,
		http:        &http.Client{Timeout: timeout},
	}
}

func (v *OIDCVerifier) ResolveUserToken(ctx context.Context, raw string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userinfoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+raw)

	resp, err := v.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", domain.ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("userinfo request: status %d", resp.StatusCode)
	}

	var out struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode userinfo: %w", err)
	}
	if out.Email == "" {
		return "", domain.ErrInvalidToken
	}
	return domain.NormalizeEmail(out.Email), nil
}
