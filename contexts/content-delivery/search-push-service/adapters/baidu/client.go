package baidu

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quill/contexts/content-delivery/search-push-service/domain/entities"
	"quill/contexts/content-delivery/search-push-service/ports"
)

const defaultEndpoint = "http://data.zz.baidu.com/urls"

// Client submits URL batches to the Baidu link-submission API.
type Client struct {
	Site     string
	Token    string
	Endpoint string
	HTTP     *http.Client
	Logger   *slog.Logger
}

func NewClient(site string, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		Site:   strings.TrimSpace(site),
		Token:  strings.TrimSpace(token),
		Logger: logger,
	}
}

// Push posts the newline-joined URL list. Missing credentials yield a
// non-OK result instead of an error so scheduled pushes degrade quietly.
func (c *Client) Push(ctx context.Context, urls []string) (entities.PushResult, error) {
	if c.Site == "" || c.Token == "" {
		c.Logger.Warn("search push credentials missing",
			"event", "search_push_credentials_missing",
			"module", "content-delivery/search-push-service",
			"layer", "adapter",
		)
		return entities.PushResult{OK: false, Status: http.StatusBadRequest}, nil
	}

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	target := endpoint + "?site=" + url.QueryEscape(c.Site) + "&token=" + url.QueryEscape(c.Token)
	body := strings.Join(urls, "\n")

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(body))
	if err != nil {
		return entities.PushResult{}, err
	}
	request.Header.Set("Content-Type", "text/plain")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	response, err := httpClient.Do(request)
	if err != nil {
		c.Logger.Error("search push http call failed",
			"event", "search_push_http_failed",
			"module", "content-delivery/search-push-service",
			"layer", "adapter",
			"url_count", len(urls),
			"error", err.Error(),
		)
		return entities.PushResult{}, err
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(response.Body, 1<<16))
	if err != nil {
		return entities.PushResult{}, err
	}

	result := entities.PushResult{
		OK:       response.StatusCode >= 200 && response.StatusCode < 300,
		Status:   response.StatusCode,
		Response: string(payload),
	}
	if !result.OK {
		c.Logger.Warn("search push endpoint rejected batch",
			"event", "search_push_endpoint_rejected",
			"module", "content-delivery/search-push-service",
			"layer", "adapter",
			"url_count", len(urls),
			"status", response.StatusCode,
		)
	}
	return result, nil
}

var _ ports.SearchPushClient = (*Client)(nil)
