package platform

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"engageflow/models"
)

const (
	spinPath = "/rkade/kgen/v2/spin/wheel"

	// insufficientBalanceCode is matched exactly. If the platform renames it,
	// the spin loop treats the response as a hard error.
	insufficientBalanceCode = "INSUFFICIENT_BALANCE"
)

// Spin places one wager and classifies the result.
func (c *Client) Spin(ctx context.Context, req models.SpinRequest) models.SpinOutcome {
	resp, err := c.do(ctx, call{
		endpoint: "spin",
		method:   http.MethodPost,
		path:     spinPath,
		header:   c.headers.spin(),
		body:     req,
		timeout:  c.cfg.SpinTimeout,
	})
	if err != nil {
		return models.SpinOutcome{Kind: models.OutcomeTransientFailure, Err: err}
	}
	return ClassifySpin(resp.Status, resp.Body)
}

// ClassifySpin maps a spin response to an outcome. Empty and unparsable
// bodies are transient; everything that is neither a win nor an
// insufficient balance is a hard error.
func ClassifySpin(status int, body []byte) models.SpinOutcome {
	if len(bytes.TrimSpace(body)) == 0 {
		return models.SpinOutcome{Kind: models.OutcomeTransientFailure, Err: ErrEmptyResponse}
	}
	if !gjson.ValidBytes(body) {
		return models.SpinOutcome{Kind: models.OutcomeTransientFailure, Err: ErrMalformedBody}
	}

	doc := gjson.ParseBytes(body)
	switch {
	case status == http.StatusOK && doc.Get("success").Bool():
		segment := doc.Get("data.visualResult.segment")
		return models.SpinOutcome{
			Kind:       models.OutcomeWin,
			Multiplier: segment.Get("multiplier").Float(),
			Label:      segment.Get("label").String(),
			Name:       segment.Get("name").String(),
		}
	case status == http.StatusBadRequest && doc.Get("error.code").String() == insufficientBalanceCode:
		return models.SpinOutcome{Kind: models.OutcomeInsufficientBalance}
	}

	msg := doc.Get("error.message").String()
	if msg == "" {
		msg = fmt.Sprintf("unexpected response (status %d)", status)
	}
	return models.SpinOutcome{Kind: models.OutcomeHardError, Message: msg}
}
