package appid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
)

// ErrForbidden is returned when the management API rejects the lookup with a
// 403. The exact text travels into the user-facing error message.
var ErrForbidden = errors.New("Forbidden")

// UserRoles resolves the role names assigned to a user through the management
// API. A 401 means the cached management token went stale: it is refreshed
// and the lookup retried exactly once. A 403 is a permissions failure and is
// never retried.
func (c *Client) UserRoles(ctx context.Context, userID string) ([]string, error) {
	status, body, err := c.execUserRolesRequest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status == http.StatusForbidden {
		return nil, ErrForbidden
	}
	if status == http.StatusUnauthorized {
		log.Info().Msg("management token rejected, refreshing")
		if err := c.mgmtToken.Refresh(ctx); err != nil {
			return nil, err
		}
		status, body, err = c.execUserRolesRequest(ctx, userID)
		if err != nil {
			return nil, err
		}
		if status == http.StatusForbidden {
			return nil, ErrForbidden
		}
	}
	return parseRolesResponse(body)
}

func (c *Client) execUserRolesRequest(ctx context.Context, userID string) (int, []byte, error) {
	endpoint := fmt.Sprintf("%s/users/%s/roles", c.cfg.ManagementURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("building user roles request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.mgmtToken.Token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("fetching user roles: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading user roles response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// parseRolesResponse dispatches over the three shapes the lookup can produce:
// the roles list itself, an IAM error ("Error.Status"), or an App ID error
// ("errorCode"). Anything else is reported as unrecognized rather than
// silently treated as empty.
func parseRolesResponse(body []byte) ([]string, error) {
	var parsed struct {
		Roles []struct {
			Name string `json:"name"`
		} `json:"roles"`
		Error *struct {
			Status string `json:"Status"`
		} `json:"Error"`
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing user roles response: %w", err)
	}

	switch {
	case parsed.Roles != nil:
		names := make([]string, 0, len(parsed.Roles))
		for _, role := range parsed.Roles {
			names = append(names, role.Name)
		}
		return names, nil
	case parsed.Error != nil && parsed.Error.Status != "":
		return nil, errors.New(parsed.Error.Status)
	case parsed.ErrorCode != "":
		return nil, errors.New(parsed.ErrorCode)
	default:
		return nil, errors.New("unrecognized user roles response")
	}
}
