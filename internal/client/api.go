// Package client holds the app-side halves of the membership protocol: the
// optimistic like toggle and deep-link invite redemption, plus a small HTTP
// client for the service API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"membership-service/internal/apperrors"
	"membership-service/internal/models"
)

// JoinResult mirrors the service answer to a redemption.
type JoinResult struct {
	Membership    models.Membership `json:"membership"`
	AlreadyMember bool              `json:"already_member"`
	MemberCount   int               `json:"member_count,omitempty"`
}

// APIClient calls the membership HTTP API as one authenticated user.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPIClient builds an APIClient. A nil httpClient gets a 10s timeout client.
func NewAPIClient(baseURL, token string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

// RedeemInvite posts an invite code to /invites/redeem.
func (c *APIClient) RedeemInvite(ctx context.Context, code string) (JoinResult, error) {
	var res JoinResult
	err := c.do(ctx, http.MethodPost, "/invites/redeem", map[string]string{"code": code}, &res)
	return res, err
}

// ToggleLike posts to /videos/:id/like.
func (c *APIClient) ToggleLike(ctx context.Context, videoID string) (models.LikeResult, error) {
	var res models.LikeResult
	err := c.do(ctx, http.MethodPost, "/videos/"+url.PathEscape(videoID)+"/like", nil, &res)
	return res, err
}

type apiError struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
		}
		if sentinel := apperrors.FromCode(apiErr.Code); sentinel != nil {
			return fmt.Errorf("%w: %s", sentinel, apiErr.Error)
		}
		return errors.New(apiErr.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
