package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"engageflow/models"
)

const (
	campaignHubPath   = "/platform-campaign-hub/s2s/airdrop-campaign"
	userProgressPath  = campaignHubPath + "/user-progress"
	campaignListPath  = campaignHubPath + "/campaigns?limit=20&offset=0"
	socialDisconnPath = "/social-auth/disconnect"
)

func progressPath(userID, campaignID string) string {
	return fmt.Sprintf("%s/%s/campaigns/%s", userProgressPath, url.PathEscape(userID), url.PathEscape(campaignID))
}

// ListCampaigns returns the campaigns currently published by the platform.
func (c *Client) ListCampaigns(ctx context.Context) ([]models.Campaign, error) {
	resp, err := c.do(ctx, call{
		endpoint: "list_campaigns",
		method:   http.MethodGet,
		path:     campaignListPath,
		header:   c.headers.campaign(""),
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("list campaigns: status %d", resp.Status)
	}

	var payload struct {
		Campaigns []models.Campaign `json:"campaigns"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return payload.Campaigns, nil
}

// StartCampaign enrolls the user in a campaign. A non-200 status, including
// "already started", is reported as an error for logging only.
func (c *Client) StartCampaign(ctx context.Context, userID, campaignID string) error {
	resp, err := c.do(ctx, call{
		endpoint: "start_campaign",
		method:   http.MethodPost,
		path:     progressPath(userID, campaignID) + "/start",
		header:   c.headers.campaign(campaignID),
		body:     struct{}{},
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("start campaign: status %d", resp.Status)
	}
	return nil
}

// CampaignDocument fetches a campaign's tasks together with the user's
// progress on them.
func (c *Client) CampaignDocument(ctx context.Context, userID, campaignID string) (*models.CampaignDocument, error) {
	resp, err := c.do(ctx, call{
		endpoint: "campaign_document",
		method:   http.MethodGet,
		path:     progressPath(userID, campaignID),
		header:   c.headers.campaign(campaignID),
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("campaign document: status %d", resp.Status)
	}

	var doc models.CampaignDocument
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return &doc, nil
}

// ValidateTask asks the platform to credit one task. It reports true only
// for a success status.
func (c *Client) ValidateTask(ctx context.Context, userID, campaignID, taskID string) (bool, error) {
	resp, err := c.do(ctx, call{
		endpoint: "validate_task",
		method:   http.MethodPost,
		path:     fmt.Sprintf("%s/tasks/%s/validate", progressPath(userID, campaignID), url.PathEscape(taskID)),
		header:   c.headers.campaign(campaignID),
		body:     struct{}{},
	})
	if err != nil {
		return false, err
	}
	return resp.OK(), nil
}

// DisconnectSocial unlinks a social provider from the account and returns
// the platform's message.
func (c *Client) DisconnectSocial(ctx context.Context, provider string) (bool, string, error) {
	resp, err := c.do(ctx, call{
		endpoint: "disconnect_social",
		method:   http.MethodDelete,
		path:     socialDisconnPath,
		header:   c.headers.social(),
		body:     map[string]string{"provider": provider},
	})
	if err != nil {
		return false, "", err
	}
	msg := resp.JSON().Get("message").String()
	if msg == "" {
		msg = "Success"
	}
	return resp.OK(), msg, nil
}
