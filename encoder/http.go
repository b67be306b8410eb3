// Package encoder 提供向量编码服务的客户端实现。
package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/simkit/core"
)

// HTTPEncoder 是 REST 编码服务的客户端实现。
//
// 编码服务把图片/文本映射到与离线建库相同的向量空间，
// 典型部署为 TorchServe / TF Serving 前面套一层业务 REST 接口：
//   - POST {endpoint}/encode/image  {"locator": "..."}  → {"vector": [...]}
//   - POST {endpoint}/encode/text   {"text": "..."}     → {"vector": [...]}
//
// 错误映射：
//   - 网络错误/超时 → TIMEOUT
//   - 5xx → UNAVAILABLE（模型服务不可用）
//   - 4xx / 向量为空或维度不符 → ENCODE_FAILED
type HTTPEncoder struct {
	// Endpoint 服务端点，例如 "http://localhost:8501"
	Endpoint string

	// Dim 期望向量维度；> 0 时校验响应维度
	Dim int

	// Timeout 单次调用超时时间
	Timeout time.Duration

	httpClient *http.Client
}

// HTTPEncoderOption 编码客户端配置选项
type HTTPEncoderOption func(*HTTPEncoder)

// WithEncoderTimeout 设置超时时间
func WithEncoderTimeout(timeout time.Duration) HTTPEncoderOption {
	return func(c *HTTPEncoder) {
		c.Timeout = timeout
	}
}

// WithEncoderDim 设置期望向量维度
func WithEncoderDim(dim int) HTTPEncoderOption {
	return func(c *HTTPEncoder) {
		c.Dim = dim
	}
}

// NewHTTPEncoder 创建一个新的 REST 编码客户端。
func NewHTTPEncoder(endpoint string, opts ...HTTPEncoderOption) *HTTPEncoder {
	c := &HTTPEncoder{
		Endpoint: endpoint,
		Timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = &http.Client{Timeout: c.Timeout}
	return c
}

type encodeRequest struct {
	Locator string `json:"locator,omitempty"`
	Text    string `json:"text,omitempty"`
}

type encodeResponse struct {
	Vector []float32 `json:"vector"`
	Error  string    `json:"error,omitempty"`
}

// EncodeImage 实现 core.Encoder 接口。
func (c *HTTPEncoder) EncodeImage(ctx context.Context, locator string) ([]float32, error) {
	if locator == "" {
		return nil, core.NewDomainError(core.ModuleEncoder, core.ErrorCodeEncodeFailed, "empty image locator")
	}
	return c.call(ctx, "/encode/image", encodeRequest{Locator: locator})
}

// EncodeText 实现 core.Encoder 接口。
func (c *HTTPEncoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, core.NewDomainError(core.ModuleEncoder, core.ErrorCodeEncodeFailed, "empty text query")
	}
	return c.call(ctx, "/encode/text", encodeRequest{Text: text})
}

func (c *HTTPEncoder) call(ctx context.Context, path string, reqBody encodeRequest) ([]float32, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleEncoder, core.ErrorCodeEncodeFailed, "marshal request: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, core.NewDomainError(core.ModuleEncoder, core.ErrorCodeEncodeFailed, "build request: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// 网络错误与超时统一视为 TIMEOUT：引擎按可跳过错误降级
		if errors.Is(err, context.Canceled) {
			return nil, core.NewDomainError(core.ModuleEncoder, core.ErrorCodeTimeout, "encode canceled: "+err.Error())
		}
		return nil, core.NewDomainError(core.ModuleEncoder, core.ErrorCodeTimeout, "encode request failed: "+err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleEncoder, core.ErrorCodeEncodeFailed, "read response: "+err.Error())
	}

	if resp.StatusCode >= 500 {
		return nil, core.NewDomainError(core.ModuleEncoder, core.ErrorCodeUnavailable,
			fmt.Sprintf("encoder unavailable: status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.NewDomainError(core.ModuleEncoder, core.ErrorCodeEncodeFailed,
			fmt.Sprintf("encode failed: status %d: %s", resp.StatusCode, truncate(body, 200)))
	}

	var out encodeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, core.NewDomainError(core.ModuleEncoder, core.ErrorCodeEncodeFailed, "decode response: "+err.Error())
	}
	if out.Error != "" {
		return nil, core.NewDomainError(core.ModuleEncoder, core.ErrorCodeEncodeFailed, "encoder error: "+out.Error)
	}
	if len(out.Vector) == 0 {
		return nil, core.NewDomainError(core.ModuleEncoder, core.ErrorCodeEncodeFailed, "encoder returned empty vector")
	}
	if c.Dim > 0 && len(out.Vector) != c.Dim {
		return nil, core.NewDomainError(core.ModuleEncoder, core.ErrorCodeEncodeFailed,
			fmt.Sprintf("encoder returned dim %d, want %d", len(out.Vector), c.Dim))
	}

	return out.Vector, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

var _ core.Encoder = (*HTTPEncoder)(nil)
