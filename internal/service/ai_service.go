package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"lms_backend/internal/config"
	"lms_backend/internal/util"
	"lms_backend/pkg/tracing"
	"net/http"
	"strings"
	"sync"
	"time"
)

// AIService OpenAI 兼容的 chat completions 客户端，配置可热更新
type AIService struct {
	mu     sync.RWMutex
	config config.AIConfig
	client *http.Client
}

func NewAIService(cfg config.AIConfig) *AIService {
	return &AIService{config: cfg, client: &http.Client{}}
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []AIChatMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (s *AIService) Config() config.AIConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Reload 配置文件变更时调用
func (s *AIService) Reload(cfg config.AIConfig) {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
}

func (s *AIService) Configured() bool {
	cfg := s.Config()
	return cfg.BaseURL != "" && cfg.APIKey != ""
}

// Chat 发送一次非流式请求，超时由 ai.timeout_seconds 控制
func (s *AIService) Chat(ctx context.Context, messages []AIChatMessage) (string, error) {
	cfg := s.Config()
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return "", util.ErrAINotConfigured
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := tracing.Tracer.Start(ctx, "ai.chat")
	defer span.End()

	reqBody := ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: 0.3,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", util.ErrAIResponse, resp.StatusCode, truncate(string(body), 300))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: %v", util.ErrAIResponse, err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("%w: %s", util.ErrAIResponse, result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", util.ErrAIResponse
	}
	return result.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
