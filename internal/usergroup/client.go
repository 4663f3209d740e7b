// Package usergroup looks up customer group memberships in the user service.
package usergroup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/errors"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/httpclient"
)

const serviceName = "user"

// HTTPDoer is satisfied by httpclient.Client and httpclient.CircuitBreakerClient.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type groupsResponse struct {
	UserID string   `json:"user_id"`
	Groups []string `json:"groups"`
}

// Client calls GET {base}/api/v1/internal/users/{id}/groups.
type Client struct {
	doer    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

func NewClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		doer:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Groups returns the user's groups. An unknown user belongs to no groups.
func (c *Client) Groups(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/api/v1/internal/users/%s/groups", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create user groups request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch user groups: %w", err)
	}

	var out groupsResponse
	if err := httpclient.DecodeData(resp, serviceName, &out); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.logger.DebugContext(ctx, "user not known to user service", slog.String("user_id", userID))
			return nil, nil
		}
		return nil, err
	}
	return out.Groups, nil
}
