package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/yuanqii/feishu-rag/internal/core"
	"github.com/yuanqii/feishu-rag/internal/models"
)

type GeminiLLM struct {
	client    *genai.Client
	modelName string
	httpc     *http.Client
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiLLM{
		client:    cl,
		modelName: modelName,
		httpc:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Complete sends one multimodal user turn and returns the concatenated
// text of the first candidate.
func (g *GeminiLLM) Complete(ctx context.Context, parts []models.PromptPart) (string, error) {
	genParts := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.ImageURI == "" {
			genParts = append(genParts, genai.Text(p.Text))
			continue
		}
		format, data, err := g.resolveImage(ctx, p.ImageURI)
		if err != nil {
			return "", fmt.Errorf("resolve image part: %w", err)
		}
		genParts = append(genParts, genai.ImageData(format, data))
	}

	m := g.client.GenerativeModel(g.modelName)
	resp, err := m.GenerateContent(ctx, genParts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

// resolveImage turns a data URI or URL into the raw bytes genai expects.
func (g *GeminiLLM) resolveImage(ctx context.Context, uri string) (format string, data []byte, err error) {
	if strings.HasPrefix(uri, "data:") {
		meta, payload, ok := strings.Cut(uri, ",")
		if !ok {
			return "", nil, fmt.Errorf("malformed data URI")
		}
		format = "png"
		if mt, _, found := strings.Cut(strings.TrimPrefix(meta, "data:image/"), ";"); found && mt != "" {
			format = mt
		}
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("decode data URI: %w", err)
		}
		return format, data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := g.httpc.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}
	format = "jpeg"
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "image/") {
		format = strings.TrimPrefix(ct, "image/")
	}
	return format, data, nil
}

var _ core.MultimodalLLM = (*GeminiLLM)(nil)
