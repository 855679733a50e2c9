package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/utils"
)

const (
	// APIKeyEnv 翻译服务API密钥环境变量
	APIKeyEnv = "GOOGLE_TRANSLATE_API_KEY"

	// DefaultEndpoint Google Translate v2 REST地址
	DefaultEndpoint = "https://translation.googleapis.com"

	translatePath = "/language/translate/v2"
	languagesPath = "/language/translate/v2/languages"

	maxErrorBody = 4096
)

// Provider 无状态的外部翻译服务
type Provider interface {
	// Translate 翻译一批文本,返回结果与输入一一对应
	Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
	// Check 启动时检查凭据与连通性
	Check(ctx context.Context) error
}

// ProviderConfig 翻译服务配置
type ProviderConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// GoogleProvider Google Translate v2 (format=html)
type GoogleProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewGoogleProvider 创建翻译服务客户端
// APIKey为空时读取环境变量,仍为空则返回致命配置错误
func NewGoogleProvider(config ProviderConfig) (*GoogleProvider, error) {
	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv(APIKeyEnv))
	}
	if apiKey == "" {
		return nil, &models.ConfigError{
			FilePath: APIKeyEnv,
			Cause:    fmt.Errorf("%w: 未设置环境变量 %s (或配置项 translate.api_key)", models.ErrMissingCredentials, APIKeyEnv),
		}
	}

	endpoint := strings.TrimRight(config.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &GoogleProvider{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type translateRequest struct {
	Q      []string `json:"q"`
	Source string   `json:"source,omitempty"`
	Target string   `json:"target"`
	Format string   `json:"format"`
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Translate 调用翻译接口
func (p *GoogleProvider) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(translateRequest{
		Q:      texts,
		Source: sourceLang,
		Target: targetLang,
		Format: "html",
	})
	if err != nil {
		return nil, fmt.Errorf("序列化翻译请求失败: %w", err)
	}

	respBody, err := p.do(ctx, http.MethodPost, translatePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var parsed translateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &models.ProviderError{Transient: true, Message: "响应解析失败", Cause: err}
	}
	if len(parsed.Data.Translations) != len(texts) {
		return nil, &models.ProviderError{
			Transient: true,
			Message:   fmt.Sprintf("返回结果数量不匹配: 期望%d, 实际%d", len(texts), len(parsed.Data.Translations)),
		}
	}

	out := make([]string, len(texts))
	for i, t := range parsed.Data.Translations {
		out[i] = t.TranslatedText
	}
	return out, nil
}

// Check 列出支持的语言以验证凭据
func (p *GoogleProvider) Check(ctx context.Context) error {
	_, err := p.do(ctx, http.MethodGet, languagesPath, nil)
	if err != nil {
		return fmt.Errorf("翻译服务初始化失败: %w", err)
	}
	utils.Info("✅ 已连接翻译服务")
	return nil
}

func (p *GoogleProvider) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	endpoint := p.endpoint + path + "?key=" + url.QueryEscape(p.apiKey)

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &models.ProviderError{Transient: true, Message: "请求失败", Cause: redactError(err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.ProviderError{Transient: true, Message: "读取响应失败", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &models.ProviderError{
			StatusCode: resp.StatusCode,
			Transient:  transientStatus(resp.StatusCode),
			Message:    errorMessage(respBody),
		}
	}
	return respBody, nil
}

// transientStatus 限流和服务端错误可重试,其余(400/401/403等)视为致命
func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

func errorMessage(body []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}

// redactError 去掉错误信息中URL里的API密钥
func redactError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s %s: %w", urlErr.Op, utils.RedactURL(urlErr.URL), urlErr.Err)
	}
	return err
}
