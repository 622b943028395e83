package splynx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// tokenPath is the token exchange endpoint, relative to the API base.
	tokenPath = "/auth/tokens"

	// tokenExpiryMargin renews the token this long before Splynx would
	// reject it, so a token never expires mid-page.
	tokenExpiryMargin = 30 * time.Second
)

// tokenSource performs the Splynx signed nonce exchange. It implements
// oauth2.TokenSource and is always wrapped in oauth2.ReuseTokenSource, so
// Token is only called when the cached token is gone or about to expire.
type tokenSource struct {
	ctx     context.Context
	client  *http.Client
	baseURL string
	key     string
	secret  string
}

// newTokenSource creates a caching token source for one Splynx instance.
func newTokenSource(ctx context.Context, client *http.Client, baseURL, key, secret string) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &tokenSource{
		ctx:     ctx,
		client:  client,
		baseURL: baseURL,
		key:     key,
		secret:  secret,
	})
}

// tokenRequest is the exchange request body.
type tokenRequest struct {
	AuthType  string `json:"auth_type"`
	Key       string `json:"key"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// tokenResponse is the exchange response body. Expiration is Unix seconds.
type tokenResponse struct {
	AccessToken           string `json:"access_token"`
	AccessTokenExpiration int64  `json:"access_token_expiration"`
}

// Token implements oauth2.TokenSource.
func (ts *tokenSource) Token() (*oauth2.Token, error) {
	nonce := strconv.FormatInt(time.Now().UnixMilli(), 10)

	body, err := json.Marshal(tokenRequest{
		AuthType:  "api_key",
		Key:       ts.key,
		Nonce:     nonce,
		Signature: Signature(ts.key, ts.secret, nonce),
	})
	if err != nil {
		return nil, fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ts.ctx, http.MethodPost, ts.baseURL+apiBasePath+tokenPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("token exchange: status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token exchange: empty access token")
	}

	expiry := time.Unix(tr.AccessTokenExpiration, 0)
	if tr.AccessTokenExpiration > 0 {
		expiry = expiry.Add(-tokenExpiryMargin)
	}
	return &oauth2.Token{AccessToken: tr.AccessToken, Expiry: expiry}, nil
}

// Signature computes the Splynx request signature: the uppercase hex
// HMAC-SHA256 of nonce+key, keyed with the API secret.
func Signature(key, secret, nonce string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(nonce + key))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}
