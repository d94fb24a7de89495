package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Ticket is the structured purchasing ticket handed to the issue tracker.
type Ticket struct {
	ProjectKey  string
	IssueTypeID string
	Summary     string
	Description string
	AssigneeID  string
}

type issueFields struct {
	Project     issueProject  `json:"project"`
	IssueType   issueType     `json:"issuetype"`
	Summary     string        `json:"summary"`
	Description string        `json:"description"`
	Assignee    *issueAccount `json:"assignee,omitempty"`
}

type issueProject struct {
	Key string `json:"key"`
}

type issueType struct {
	ID string `json:"id"`
}

type issueAccount struct {
	ID string `json:"id"`
}

type issuePayload struct {
	Fields issueFields `json:"fields"`
}

// Client posts tickets to a Jira-compatible REST v2 endpoint.
type Client struct {
	baseURL string
	user    string
	token   string
	http    *http.Client
}

func NewClientFromEnv() (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("JIRA_BASE_URL")), "/")
	if baseURL == "" {
		return nil, errors.New("JIRA_BASE_URL is required")
	}
	user := strings.TrimSpace(os.Getenv("JIRA_API_USER"))
	token := strings.TrimSpace(os.Getenv("JIRA_API_TOKEN"))
	if user == "" || token == "" {
		return nil, errors.New("JIRA_API_USER and JIRA_API_TOKEN are required")
	}
	return &Client{
		baseURL: baseURL,
		user:    user,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// CreateTicket posts one ticket. Failures are returned to the caller, which
// logs and moves on; ticket emission never blocks ledger writes.
func (c *Client) CreateTicket(ctx context.Context, t Ticket) error {
	fields := issueFields{
		Project:     issueProject{Key: t.ProjectKey},
		IssueType:   issueType{ID: t.IssueTypeID},
		Summary:     t.Summary,
		Description: t.Description,
	}
	if t.AssigneeID != "" {
		fields.Assignee = &issueAccount{ID: t.AssigneeID}
	}

	body, err := json.Marshal(issuePayload{Fields: fields})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/api/2/issue/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.user, c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tracker error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
