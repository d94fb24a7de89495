package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mkstore/procurement_backend/config"
	"github.com/mkstore/procurement_backend/utils"
)

// Client talks to the headless content store holding product procurement
// configuration. Responses are validated at this boundary: a payload that
// fails validation is reported as not-found, the recoverable path, never
// passed through half-shaped.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	limiter  <-chan time.Time
	validate *validator.Validate
	cacheTTL time.Duration
}

func NewClientFromEnv() (*Client, error) {
	serviceDomain := strings.TrimSpace(os.Getenv("CMS_SERVICE_DOMAIN"))
	if serviceDomain == "" {
		return nil, errors.New("CMS_SERVICE_DOMAIN is required")
	}
	apiKey := strings.TrimSpace(os.Getenv("CMS_API_TOKEN"))
	if apiKey == "" {
		return nil, errors.New("CMS_API_TOKEN is required")
	}

	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("CMS_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	cacheTTL := time.Duration(utils.IntFromEnv("CMS_CACHE_TTL_SECONDS", 300)) * time.Second

	return &Client{
		baseURL:  fmt.Sprintf("https://%s.microcms.io/api/v1", serviceDomain),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  time.Tick(interval),
		validate: validator.New(),
		cacheTTL: cacheTTL,
	}, nil
}

// Product fetches one product configuration by its stripped platform id.
// Returns utils.ErrorRecordNotFound for unknown, archived or malformed
// products; callers treat that as "skip, not an error".
func (c *Client) Product(ctx context.Context, productID string) (*Product, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, utils.ErrorRecordNotFound
	}

	cacheKey := "cms:product:" + productID
	var cached Product
	if ok, err := config.GetRedisObject(cacheKey, &cached); err == nil && ok {
		return &cached, nil
	}

	body, status, err := c.get(ctx, "/products/"+url.PathEscape(productID), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("cms error %d: %s", status, strings.TrimSpace(string(body)))
	}

	var product Product
	if err := json.Unmarshal(body, &product); err != nil {
		config.LogError(config.GetLogger(), "client.go", "Product", "Decoding product payload", productID, err)
		return nil, utils.ErrorRecordNotFound
	}
	if err := c.validate.Struct(&product); err != nil {
		config.LogError(config.GetLogger(), "client.go", "Product", "Validating product payload", productID, err)
		return nil, utils.ErrorRecordNotFound
	}

	_ = config.SetRedisObject(cacheKey, &product, c.cacheTTL)
	return &product, nil
}

type skuListResponse struct {
	Contents   []SKU `json:"contents"`
	TotalCount int   `json:"totalCount"`
	Offset     int   `json:"offset"`
	Limit      int   `json:"limit"`
}

// SKUCatalog lists every SKU in the content store, keyed by code. Used only
// for ticket rendering; an unknown code simply renders without display names.
func (c *Client) SKUCatalog(ctx context.Context) (map[string]SKU, error) {
	catalog := map[string]SKU{}
	offset := 0
	for {
		params := url.Values{}
		params.Set("limit", "100")
		params.Set("offset", strconv.Itoa(offset))

		body, status, err := c.get(ctx, "/skus", params)
		if err != nil {
			return nil, err
		}
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("cms error %d: %s", status, strings.TrimSpace(string(body)))
		}

		var page skuListResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, err
		}
		for _, s := range page.Contents {
			if s.Code == "" {
				continue
			}
			catalog[s.Code] = s
		}

		offset += len(page.Contents)
		if len(page.Contents) == 0 || offset >= page.TotalCount {
			break
		}
	}
	return catalog, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("X-MICROCMS-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return body, resp.StatusCode, nil
}
