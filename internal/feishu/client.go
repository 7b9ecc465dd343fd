package feishu

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yuanqii/feishu-rag/internal/core"
	"github.com/yuanqii/feishu-rag/internal/models"
)

const defaultBaseURL = "https://open.feishu.cn"

// Client talks to the Feishu open platform: token issuance, image upload
// and message replies. Every method obtains a fresh tenant token; the
// platform caches them server-side so this stays a thin wrapper.
type Client struct {
	appID     string
	appSecret string
	baseURL   string
	httpc     *http.Client
	logger    *zap.Logger
}

func NewClient(appID, appSecret string, logger *zap.Logger) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		baseURL:   defaultBaseURL,
		httpc:     &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

// WithBaseURL points the client at a different API host. Used by tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
}

// TenantAccessToken fetches a tenant access token for the app.
func (c *Client) TenantAccessToken(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/open-apis/auth/v3/tenant_access_token/internal", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var res tokenResponse
	if err := c.do(req, &res); err != nil {
		return "", fmt.Errorf("fetch tenant token: %w", err)
	}
	if res.Code != 0 {
		return "", fmt.Errorf("fetch tenant token: code %d: %s", res.Code, res.Msg)
	}
	return res.TenantAccessToken, nil
}

type uploadResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		ImageKey string `json:"image_key"`
	} `json:"data"`
}

// UploadImage decodes a base64 payload (with or without a data-URI prefix)
// and uploads it to the platform media endpoint, returning the opaque
// image key. The platform requires a filename, so one is synthesized.
func (c *Client) UploadImage(ctx context.Context, imageB64 string) (string, error) {
	token, err := c.TenantAccessToken(ctx)
	if err != nil {
		return "", err
	}

	imageBytes, err := base64.StdEncoding.DecodeString(models.RawBase64(imageB64))
	if err != nil {
		return "", fmt.Errorf("decode image base64: %w", err)
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("image_type", "message"); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("rag_image_%s.jpg", uuid.NewString()[:8])
	fw, err := form.CreateFormFile("image", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(imageBytes); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/open-apis/im/v1/images", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	var res uploadResponse
	if err := c.do(req, &res); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if res.Code != 0 {
		return "", fmt.Errorf("upload image: code %d: %s", res.Code, res.Msg)
	}

	c.logger.Info("image uploaded", zap.String("image_key", res.Data.ImageKey))
	return res.Data.ImageKey, nil
}

type replyResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Reply posts an interactive card as a reply to the given message.
func (c *Client) Reply(ctx context.Context, messageID string, card []byte) error {
	token, err := c.TenantAccessToken(ctx)
	if err != nil {
		return err
	}

	// The reply endpoint expects the card JSON as a string field.
	body, _ := json.Marshal(map[string]string{
		"content":  string(card),
		"msg_type": "interactive",
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/open-apis/im/v1/messages/%s/reply", c.baseURL, messageID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var res replyResponse
	if err := c.do(req, &res); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	if res.Code != 0 {
		return fmt.Errorf("reply: code %d: %s", res.Code, res.Msg)
	}

	c.logger.Info("card reply sent", zap.String("message_id", messageID))
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ core.Messenger = (*Client)(nil)
