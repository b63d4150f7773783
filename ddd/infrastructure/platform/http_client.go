package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"distribution-service/ddd/domain/gateway"
	"distribution-service/ddd/domain/vo"
)

// HTTPClient 通用 JSON 平台适配器。
// POST {base}/videos 发布，GET {base}/videos/{id} 查询，DELETE {base}/videos/{id} 删除。
type HTTPClient struct {
	platform vo.Platform
	baseURL  string
	client   *http.Client
}

// NewHTTPClient 创建平台客户端，timeout<=0 时使用 2 分钟
func NewHTTPClient(platform vo.Platform, baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPClient{
		platform: platform,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Platform() vo.Platform { return c.platform }

type uploadBody struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Privacy     string   `json:"privacy"`
	SourceURL   string   `json:"source_url"`
}

type videoBody struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *HTTPClient) UploadVideo(ctx context.Context, req *gateway.PlatformUploadRequest) (*gateway.PlatformUploadResponse, error) {
	body, err := json.Marshal(uploadBody{
		Title:       req.Config.Title,
		Description: req.Config.Description,
		Tags:        req.Config.Tags,
		Privacy:     string(req.Config.Privacy),
		SourceURL:   req.RenditionURL,
	})
	if err != nil {
		return nil, vo.Permanent(err)
	}
	var out videoBody
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/videos", req.AccessToken, body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, vo.Permanent(fmt.Errorf("%s: response missing video id", c.platform))
	}
	return &gateway.PlatformUploadResponse{PlatformVideoID: out.ID, URL: out.URL, Status: out.Status}, nil
}

func (c *HTTPClient) GetStatus(ctx context.Context, accessToken, platformVideoID string) (string, error) {
	var out videoBody
	if err := c.do(ctx, http.MethodGet, c.videoURL(platformVideoID), accessToken, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// DeleteVideo 平台侧已不存在时视为成功
func (c *HTTPClient) DeleteVideo(ctx context.Context, accessToken, platformVideoID string) error {
	err := c.do(ctx, http.MethodDelete, c.videoURL(platformVideoID), accessToken, nil, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *HTTPClient) videoURL(id string) string {
	return c.baseURL + "/videos/" + url.PathEscape(id)
}

// StatusError 平台返回的非 2xx 响应
type StatusError struct {
	Platform vo.Platform
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: http %d", e.Platform, e.Code)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Platform, e.Code, e.Message)
}

// Retryable 408、429 与 5xx 可重试
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusRequestTimeout || e.Code == http.StatusTooManyRequests || e.Code >= 500
}

func (c *HTTPClient) do(ctx context.Context, method, target, token string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return vo.Permanent(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return vo.Permanent(err)
		}
		return vo.Transient(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return vo.Transient(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Platform: c.platform, Code: resp.StatusCode, Message: errorMessage(data)}
		if se.Retryable() {
			return vo.Transient(se)
		}
		return vo.Permanent(se)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return vo.Permanent(fmt.Errorf("%s: decode response: %w", c.platform, err))
	}
	return nil
}

func errorMessage(data []byte) string {
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
