package platform

import "net/http"

const (
	engageOrigin = "https://engage.kgen.io"
	rkadeOrigin  = "https://rkade.kgen.io"
)

// campaignHeaderOverrides adds headers for specific campaign identifiers.
// The platform rejects some campaigns unless the request looks like it came
// from a browser; this is a per-campaign quirk, not a rule.
var campaignHeaderOverrides = map[string]map[string]string{
	"2270e7db-9fc2-457f-9267-515462d2e023": {
		"Accept":             "application/json",
		"sec-ch-ua":          `"Chromium";v="140", "Not=A?Brand";v="24", "Google Chrome";v="140"`,
		"sec-ch-ua-mobile":   "?0",
		"sec-ch-ua-platform": `"Windows"`,
		"sec-fetch-dest":     "empty",
		"sec-fetch-mode":     "cors",
		"sec-fetch-site":     "same-site",
	},
}

type headerSet struct {
	userAgent string
	token     string
}

func newHeaderSet(userAgent, token string) *headerSet {
	return &headerSet{userAgent: userAgent, token: token}
}

func (h *headerSet) base(origin string) http.Header {
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Authorization", "Bearer "+h.token)
	hdr.Set("Origin", origin)
	hdr.Set("Referer", origin+"/")
	hdr.Set("source", "website")
	hdr.Set("request-source", "website")
	hdr.Set("sec-gpc", "1")
	if h.userAgent != "" {
		hdr.Set("User-Agent", h.userAgent)
	}
	return hdr
}

// campaign returns headers for a campaign call. An empty id yields the
// plain engage headers.
func (h *headerSet) campaign(campaignID string) http.Header {
	hdr := h.base(engageOrigin)
	for k, v := range campaignHeaderOverrides[campaignID] {
		hdr.Set(k, v)
	}
	return hdr
}

func (h *headerSet) spin() http.Header {
	return h.base(rkadeOrigin)
}

func (h *headerSet) social() http.Header {
	hdr := h.base(engageOrigin)
	hdr.Set("source", "app")
	return hdr
}

func (h *headerSet) wallet() http.Header {
	hdr := h.base(engageOrigin)
	hdr.Del("sec-gpc")
	hdr.Del("Content-Type")
	return hdr
}
