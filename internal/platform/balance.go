package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"engageflow/models"
)

const (
	profilePath      = "/users/me/profile"
	walletPath       = "/wallets/tokens/balance/v2"
	kpointPathFormat = "/platform-currency-manager/balances/%s/K_POINT"
	rkgenToken       = "RKGEN"
)

// DisplayName returns the best human-readable name on the profile: the
// linked Google account, then email, then username.
func (c *Client) DisplayName(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, call{
		endpoint: "profile",
		method:   http.MethodGet,
		path:     profilePath,
		header:   c.headers.wallet(),
	})
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", fmt.Errorf("profile: status %d", resp.Status)
	}

	doc := resp.JSON()
	for _, key := range []string{"google", "email", "username"} {
		if v := doc.Get(key).String(); v != "" {
			return v, nil
		}
	}
	return "", nil
}

func (c *Client) KPointBalance(ctx context.Context, userID string) (int64, error) {
	resp, err := c.do(ctx, call{
		endpoint: "kpoint_balance",
		method:   http.MethodGet,
		path:     fmt.Sprintf(kpointPathFormat, url.PathEscape(userID)),
		header:   c.headers.wallet(),
	})
	if err != nil {
		return 0, err
	}
	if !resp.OK() {
		return 0, fmt.Errorf("kpoint balance: status %d", resp.Status)
	}
	return resp.JSON().Get("balance").Int(), nil
}

// RKGENBalance sums the RKGEN amount held across the configured chains.
func (c *Client) RKGENBalance(ctx context.Context) (decimal.Decimal, error) {
	q := url.Values{}
	for _, chain := range c.cfg.Chains {
		q.Add("chains", chain)
	}
	resp, err := c.do(ctx, call{
		endpoint: "rkgen_balance",
		method:   http.MethodGet,
		path:     walletPath + "?" + q.Encode(),
		header:   c.headers.wallet(),
	})
	if err != nil {
		return decimal.Zero, err
	}
	if !resp.OK() {
		return decimal.Zero, fmt.Errorf("rkgen balance: status %d", resp.Status)
	}

	total := decimal.Zero
	for _, b := range resp.JSON().Get("data.balances").Array() {
		if b.Get("token").String() != rkgenToken {
			continue
		}
		raw := b.Get("amount")
		if raw.Type == gjson.Null || raw.String() == "" {
			continue
		}
		amount, err := decimal.NewFromString(raw.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: rkgen amount %q", ErrMalformedBody, raw.String())
		}
		total = total.Add(amount)
	}
	return total, nil
}

// Balances fetches both balances. Failures degrade to zero values and are
// only logged.
func (c *Client) Balances(ctx context.Context, userID string) models.Balances {
	var out models.Balances

	if kp, err := c.KPointBalance(ctx, userID); err == nil {
		out.KPoint = kp
	} else {
		c.log.WithError(err).Warn("kpoint balance unavailable")
	}

	if rk, err := c.RKGENBalance(ctx); err == nil {
		out.RKGEN = rk
	} else {
		c.log.WithError(err).Warn("rkgen balance unavailable")
	}

	return out
}

// Report assembles the balance summary for userID. The display name falls
// back to userID when the profile has none.
func (c *Client) Report(ctx context.Context, userID string) models.BalanceReport {
	report := models.BalanceReport{
		UserID:   userID,
		Balances: c.Balances(ctx, userID),
	}
	name, err := c.DisplayName(ctx)
	if err != nil {
		c.log.WithError(err).Debug("profile unavailable")
	}
	if name == "" {
		name = userID
	}
	report.DisplayName = name
	return report
}
