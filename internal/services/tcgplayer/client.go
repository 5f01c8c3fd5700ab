package tcgplayer

import (
	"fmt"
	"time"

	"ygo-trader/internal/scheduler"

	"github.com/go-resty/resty/v2"
)

const (
	baseListingsURL = "https://mpapi.tcgplayer.com/v2/product/%d/listings"
	baseSalesURL    = "https://mpapi.tcgplayer.com/v2/product/%d/latestsales"

	// 销售接口单页上限，传更大也只返回25条
	MaxSalesPageSize = 25
)

// Client talks to the marketplace API. Safe for concurrent use; retries are
// the scheduler's job, so the client classifies failures instead of retrying.
type Client struct {
	http *resty.Client
}

func NewClient() *Client {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeaders(map[string]string{
		"origin":          "https://www.tcgplayer.com",
		"Referer":         "https://www.tcgplayer.com",
		"Referrer-Policy": "strict-origin-when-cross-origin",
		"accept":          "application/json",
		"content-type":    "application/json",
		"user-agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/106.0.0.0 Safari/537.36",
	})

	return &Client{http: client}
}

// classify maps a transport-level outcome onto the retry taxonomy.
// Network errors, rate limits and upstream 5xx are worth retrying; everything
// else is the request's fault and retrying cannot fix it.
func classify(resp *resty.Response, err error) error {
	if err != nil {
		return scheduler.Transient(err)
	}
	code := resp.StatusCode()
	switch {
	case code == 429 || code >= 500:
		return scheduler.Transient(fmt.Errorf("marketplace API status %d", code))
	case code >= 400:
		return scheduler.Permanent(fmt.Errorf("marketplace API status %d", code))
	}
	return nil
}
