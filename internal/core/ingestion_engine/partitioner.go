package ingestion_engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"code.sajari.com/docconv"
	"go.uber.org/zap"

	"github.com/yuanqii/feishu-rag/internal/core"
	"github.com/yuanqii/feishu-rag/internal/models"
)

// UnstructuredPartitioner extracts elements from a PDF through an
// Unstructured-compatible partition API: hi_res strategy with table
// structure inference, embedded image payloads and simplified-Chinese OCR.
// A failed partition is fatal for the ingestion run; a document without
// images or tables is only a warning.
type UnstructuredPartitioner struct {
	endpoint string
	apiKey   string
	httpc    *http.Client
	logger   *zap.Logger
}

func NewUnstructuredPartitioner(endpoint, apiKey string, logger *zap.Logger) *UnstructuredPartitioner {
	return &UnstructuredPartitioner{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpc:    &http.Client{Timeout: 10 * time.Minute},
		logger:   logger,
	}
}

// apiElement mirrors the partition API response schema.
type apiElement struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Metadata struct {
		TextAsHTML  string `json:"text_as_html"`
		ImageBase64 string `json:"image_base64"`
	} `json:"metadata"`
}

func (p *UnstructuredPartitioner) Partition(ctx context.Context, path string) ([]models.Element, error) {
	p.logger.Info("partitioning document", zap.String("path", path))

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fw, err := form.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, file); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	fields := map[string]string{
		"strategy":                       "hi_res",
		"pdf_infer_table_structure":      "true",
		"extract_image_block_types":      `["Image"]`,
		"extract_image_block_to_payload": "true",
		"languages":                      "chi_sim",
	}
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if p.apiKey != "" {
		req.Header.Set("unstructured-api-key", p.apiKey)
	}

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("partition request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("partition request: status %d: %s", resp.StatusCode, body)
	}

	var raw []apiElement
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode partition response: %w", err)
	}

	elements := make([]models.Element, 0, len(raw))
	var images, tables int
	for _, el := range raw {
		switch el.Type {
		case "Table":
			html := el.Metadata.TextAsHTML
			if html == "" {
				html = el.Text
			}
			elements = append(elements, models.Element{
				Category:  models.CategoryTable,
				Text:      el.Text,
				TableHTML: html,
			})
			tables++
		case "Image":
			elements = append(elements, models.Element{
				Category: models.CategoryImage,
				Text:     el.Text,
				ImageB64: el.Metadata.ImageBase64,
			})
			images++
		case "Title":
			elements = append(elements, models.Element{Category: models.CategoryTitle, Text: el.Text})
		default:
			elements = append(elements, models.Element{Category: models.CategoryText, Text: el.Text})
		}
	}

	p.logger.Info("partitioning complete",
		zap.Int("elements", len(elements)),
		zap.Int("images", images),
		zap.Int("tables", tables))
	if images == 0 {
		p.logger.Warn("no images found; check poppler/tesseract on the partition host")
	}
	return elements, nil
}

var _ core.Partitioner = (*UnstructuredPartitioner)(nil)

// DocconvPartitioner is the text-only fallback used when no partition API
// is configured. docconv shells out to pdftotext, so tables and images are
// not recovered; paragraphs split on blank lines become text elements.
type DocconvPartitioner struct {
	logger *zap.Logger
}

func NewDocconvPartitioner(logger *zap.Logger) *DocconvPartitioner {
	return &DocconvPartitioner{logger: logger}
}

func (p *DocconvPartitioner) Partition(ctx context.Context, path string) ([]models.Element, error) {
	p.logger.Info("partitioning document with docconv (text only)", zap.String("path", path))

	res, err := docconv.ConvertPath(path)
	if err != nil {
		return nil, fmt.Errorf("docconv: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var elements []models.Element
	for _, para := range strings.Split(res.Body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		elements = append(elements, models.Element{Category: models.CategoryText, Text: para})
	}

	p.logger.Info("partitioning complete", zap.Int("elements", len(elements)))
	p.logger.Warn("no images found; docconv extracts text only")
	return elements, nil
}

var _ core.Partitioner = (*DocconvPartitioner)(nil)
