package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yuanqii/feishu-rag/internal/core"
	"github.com/yuanqii/feishu-rag/internal/feishu"
)

const (
	eventTypeMessageReceive = "im.message.receive_v1"
	payloadTypeVerification = "url_verification"
	maxReplyImages          = 3
)

var mentionRe = regexp.MustCompile(`@[^ ]+ `)

// WebhookHandler is the single entry point for Feishu event deliveries:
// decrypt, verify, dedupe, then hand the question to a detached answer
// task so the HTTP response returns immediately.
type WebhookHandler struct {
	encryptKey string
	answerer   core.Answerer
	messenger  core.Messenger
	logger     *zap.Logger

	// baseCtx outlives individual requests; background tasks run on it so
	// an answer in flight is not cancelled when the request context ends.
	baseCtx context.Context

	mu   sync.Mutex
	seen map[string]struct{}

	tasks sync.WaitGroup
}

func NewWebhookHandler(baseCtx context.Context, encryptKey string, answerer core.Answerer, messenger core.Messenger, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		encryptKey: encryptKey,
		answerer:   answerer,
		messenger:  messenger,
		logger:     logger,
		baseCtx:    baseCtx,
		seen:       make(map[string]struct{}),
	}
}

type eventPayload struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Header    struct {
		EventType string `json:"event_type"`
	} `json:"header"`
	Event struct {
		Message struct {
			MessageID string `json:"message_id"`
			Content   string `json:"content"`
		} `json:"message"`
	} `json:"event"`
}

// HandleEvent processes one webhook delivery. Failure acknowledgments stay
// HTTP 200: the platform retries on non-2xx, and a broken payload will not
// get better on retry.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("reading webhook body failed", zap.Error(err))
		writeJSON(w, map[string]any{"ok": false})
		return
	}

	var envelope struct {
		Encrypt string `json:"encrypt"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Encrypt != "" {
		plain, err := feishu.DecryptEvent(h.encryptKey, envelope.Encrypt)
		if err != nil {
			if errors.Is(err, feishu.ErrNoEncryptKey) {
				h.logger.Error("encrypted event received but FEISHU_ENCRYPT_KEY is not configured")
			} else {
				h.logger.Error("event decryption failed", zap.Error(err))
			}
			writeJSON(w, map[string]any{"ok": false})
			return
		}
		raw = plain
	}

	var payload eventPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Error("malformed event payload", zap.Error(err))
		writeJSON(w, map[string]any{"ok": false})
		return
	}

	// URL verification handshake: echo the challenge back verbatim.
	if payload.Type == payloadTypeVerification {
		h.logger.Info("url verification handshake")
		writeJSON(w, map[string]any{"challenge": payload.Challenge})
		return
	}

	if payload.Header.EventType == eventTypeMessageReceive {
		h.handleMessage(w, payload)
		return
	}

	// Unknown events are acknowledged so the platform stops resending.
	writeJSON(w, map[string]any{"ok": true})
}

func (h *WebhookHandler) handleMessage(w http.ResponseWriter, payload eventPayload) {
	msgID := payload.Event.Message.MessageID

	if !h.markSeen(msgID) {
		h.logger.Warn("duplicate message delivery ignored", zap.String("message_id", msgID))
		writeJSON(w, map[string]any{"ok": true})
		return
	}

	question := extractQuestion(payload.Event.Message.Content)

	h.tasks.Add(1)
	go func() {
		defer h.tasks.Done()
		h.respond(h.baseCtx, msgID, question)
	}()

	writeJSON(w, map[string]any{"ok": true})
}

// markSeen records the message identifier, reporting whether it was new.
// The set is unbounded for the process lifetime and resets on restart;
// duplicates only come from platform redelivery of the same message.
func (h *WebhookHandler) markSeen(msgID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.seen[msgID]; ok {
		return false
	}
	h.seen[msgID] = struct{}{}
	return true
}

// respond runs the full answer path for one message: retrieve, upload each
// distinct image once (at most maxReplyImages), reply with a card. Every
// failure is logged and absorbed; there are no retries, and nothing here
// can affect the already-sent HTTP response.
func (h *WebhookHandler) respond(ctx context.Context, msgID, question string) {
	h.logger.Info("processing question",
		zap.String("message_id", msgID), zap.String("question", question))

	answer := h.answerer.GetAnswer(ctx, question)

	images := distinctImages(answer.Images, maxReplyImages)
	keys := make([]string, len(images))

	g, uploadCtx := errgroup.WithContext(ctx)
	for i, img := range images {
		g.Go(func() error {
			key, err := h.messenger.UploadImage(uploadCtx, img)
			if err != nil {
				// A failed upload drops that image from the card only.
				h.logger.Error("image upload failed", zap.Error(err))
				return nil
			}
			keys[i] = key
			return nil
		})
	}
	_ = g.Wait()

	imageKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			imageKeys = append(imageKeys, k)
		}
	}

	card, err := feishu.BuildAnswerCard(question, answer.Text, imageKeys).Encode()
	if err != nil {
		h.logger.Error("card encoding failed", zap.Error(err))
		return
	}

	if err := h.messenger.Reply(ctx, msgID, card); err != nil {
		h.logger.Error("card reply failed", zap.String("message_id", msgID), zap.Error(err))
		return
	}
	h.logger.Info("answered", zap.String("message_id", msgID), zap.Int("images", len(imageKeys)))
}

// Wait blocks until all in-flight answer tasks finish. Used on shutdown
// and in tests.
func (h *WebhookHandler) Wait() {
	h.tasks.Wait()
}

// extractQuestion pulls the user text out of the message content JSON and
// strips a leading @-mention of the bot.
func extractQuestion(content string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return strings.TrimSpace(mentionRe.ReplaceAllString(parsed.Text, ""))
}

// distinctImages keeps the first occurrence of each payload, up to max.
func distinctImages(images []string, max int) []string {
	seen := make(map[string]struct{}, len(images))
	out := make([]string, 0, max)
	for _, img := range images {
		if _, ok := seen[img]; ok {
			continue
		}
		seen[img] = struct{}{}
		out = append(out, img)
		if len(out) == max {
			break
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
