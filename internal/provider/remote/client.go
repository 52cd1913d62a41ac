// Package remote implements the provider client interfaces over the HTTP
// APIs of an external directory and resource authority.
package remote

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

	"zspgw.org/internal/provider"
)

// Credential supplies bearer tokens for outbound requests.
type Credential interface {
	Token() (string, error)
}

// Client talks to one remote endpoint. The same client type serves as both
// a provider.GroupClient (directory deployments) and a
// provider.AuthorityClient (resource authority deployments).
type Client struct {
	baseURL string
	http    *http.Client
	cred    Credential
}

// New builds a client with sensible timeouts.
func New(baseURL string, cred Credential) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		cred:    cred,
	}
}

var _ provider.GroupClient = (*Client)(nil)
var _ provider.AuthorityClient = (*Client)(nil)

func (c *Client) AddMember(ctx context.Context, groupID, principalID string) error {
	path := fmt.Sprintf("/v1/groups/%s/members", url.PathEscape(groupID))
	status, _, err := c.do(ctx, http.MethodPost, path, map[string]string{
		"principal_id": principalID,
	})
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusConflict:
		return provider.ErrAlreadyMember
	case status >= 400:
		return fmt.Errorf("directory add member: status %d", status)
	}
	return nil
}

func (c *Client) RemoveMember(ctx context.Context, groupID, principalID string) error {
	path := fmt.Sprintf("/v1/groups/%s/members/%s", url.PathEscape(groupID), url.PathEscape(principalID))
	status, _, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusNotFound:
		return provider.ErrNotMember
	case status >= 400:
		return fmt.Errorf("directory remove member: status %d", status)
	}
	return nil
}

func (c *Client) CreateAssignment(ctx context.Context, scope, name, principalID, roleDefinitionID string) (string, error) {
	status, body, err := c.do(ctx, http.MethodPut, "/v1/role-assignments", map[string]string{
		"scope":              scope,
		"name":               name,
		"principal_id":       principalID,
		"role_definition_id": roleDefinitionID,
	})
	if err != nil {
		return "", err
	}
	if status >= 400 {
		return "", fmt.Errorf("authority create assignment: status %d", status)
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("authority create assignment: decode response: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("authority create assignment: empty assignment id")
	}
	return resp.ID, nil
}

func (c *Client) DeleteAssignment(ctx context.Context, assignmentID string) error {
	path := "/v1/role-assignments?id=" + url.QueryEscape(assignmentID)
	status, _, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusNotFound:
		return provider.ErrAssignmentNotFound
	case status >= 400:
		return fmt.Errorf("authority delete assignment: status %d", status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cred != nil {
		token, err := c.cred.Token()
		if err != nil {
			return 0, nil, fmt.Errorf("obtain service token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}
