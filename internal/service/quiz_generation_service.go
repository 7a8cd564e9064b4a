package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"mime/multipart"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

const (
	maxPDFSize           = 20 << 20
	defaultQuestionCount = 10
	maxQuestionCount     = 50
)

// Chatter 由 AIService 实现
type Chatter interface {
	Chat(ctx context.Context, messages []AIChatMessage) (string, error)
	Config() config.AIConfig
}

type QuizGenerationService struct {
	AI                Chatter
	AssessmentService *AssessmentService
	Repo              *repository.AssessmentRepository
	StorageService    *StorageService
}

func NewQuizGenerationService(ai Chatter, assessmentService *AssessmentService, repo *repository.AssessmentRepository, storage *StorageService) *QuizGenerationService {
	return &QuizGenerationService{
		AI:                ai,
		AssessmentService: assessmentService,
		Repo:              repo,
		StorageService:    storage,
	}
}

type GenerateOptions struct {
	Count      int
	Difficulty string
	Preview    bool
}

// swagger:model GenerateResult
type GenerateResult struct {
	Questions  []model.AssessmentQuestion `json:"questions"`
	SourceFile string                     `json:"sourceFile,omitempty"`
	Saved      bool                       `json:"saved"`
}

// GenerateFromPDF 上传 PDF -> 提取文本 -> AI 出题 -> 解析 JSON -> 事务保存；保存失败时删除已上传的 PDF
func (s *QuizGenerationService) GenerateFromPDF(ctx context.Context, actor Actor, assessmentID uint, file *multipart.FileHeader, opts GenerateOptions) (res *GenerateResult, err error) {
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		} else if opts.Preview {
			outcome = "preview"
		}
		monitoring.AIGenerations.WithLabelValues(outcome).Inc()
	}()

	if _, err := s.AssessmentService.Editable(actor, assessmentID); err != nil {
		return nil, err
	}
	if file.Size > maxPDFSize {
		return nil, fmt.Errorf("%w: pdf larger than %d MB", util.ErrInvalidFileType, maxPDFSize>>20)
	}

	data, err := readUpload(file)
	if err != nil {
		return nil, err
	}
	if _, err := util.ValidateMimeType(bytes.NewReader(data), []string{util.MimePDF}); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidFileType, err)
	}

	// 预览模式不落盘
	var key string
	if !opts.Preview {
		key = NewKey(util.KindPDF, file.Filename)
		if _, err := s.StorageService.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), util.MimePDF); err != nil {
			return nil, err
		}
		defer func() {
			if err != nil {
				s.discard(ctx, key)
			}
		}()
	}

	text, err := ExtractPDFText(data)
	if err != nil {
		return nil, err
	}
	cfg := s.AI.Config()
	text = truncate(text, cfg.MaxPDFChars)

	reply, err := s.AI.Chat(ctx, quizPrompt(text, opts))
	if err != nil {
		return nil, err
	}

	inputs, err := ExtractQuizJSON(reply)
	if err != nil {
		logger.Log.Warn("Unparseable AI reply", zap.Uint("assessmentId", assessmentID), zap.String("reply", truncate(reply, 500)))
		return nil, err
	}

	existing, err := s.Repo.ListQuestions(assessmentID)
	if err != nil {
		return nil, err
	}
	for i := range inputs {
		inputs[i].Order = len(existing) + i + 1
	}
	qs, err := BuildQuestions(assessmentID, inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrAIResponse, err)
	}

	if opts.Preview {
		return &GenerateResult{Questions: qs}, nil
	}

	if err := s.Repo.CreateQuestions(qs); err != nil {
		return nil, err
	}
	logger.Log.Info("AI questions generated",
		zap.Uint("assessmentId", assessmentID),
		zap.Int("count", len(qs)),
		zap.String("source", key),
	)
	return &GenerateResult{Questions: qs, SourceFile: key, Saved: true}, nil
}

func (s *QuizGenerationService) discard(ctx context.Context, key string) {
	if err := s.StorageService.Delete(context.WithoutCancel(ctx), key); err != nil {
		logger.Log.Error("Failed to remove uploaded pdf", zap.String("key", key), zap.Error(err))
	}
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(io.LimitReader(src, maxPDFSize+1))
}

// ExtractPDFText 提取 PDF 纯文本
func ExtractPDFText(data []byte) (text string, err error) {
	// 损坏的 PDF 可能导致解析库 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", util.ErrEmptyPDF, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", util.ErrInvalidFileType, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", util.ErrEmptyPDF, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}

	text = strings.Join(strings.Fields(buf.String()), " ")
	if text == "" {
		return "", util.ErrEmptyPDF
	}
	return text, nil
}

func quizPrompt(text string, opts GenerateOptions) []AIChatMessage {
	count := opts.Count
	if count <= 0 {
		count = defaultQuestionCount
	}
	if count > maxQuestionCount {
		count = maxQuestionCount
	}
	difficulty := opts.Difficulty
	if difficulty == "" {
		difficulty = "medium"
	}

	system := "You are an instructional designer who writes assessment questions from course material. " +
		"Reply with a single ```json fenced block containing a JSON array and nothing else. " +
		"Each element has the fields: questionType (one of single_choice, multiple_choice, true_false, short_answer), " +
		"content, options (array of strings, required for choice questions), answer (for multiple_choice an array with the exact text of every correct option), " +
		"points (integer) and explanation."
	user := fmt.Sprintf("Write %d %s difficulty questions based on the following material.\n\n%s", count, difficulty, text)
	return []AIChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")

type aiQuestion struct {
	QuestionType string          `json:"questionType"`
	Type         string          `json:"type"`
	Content      string          `json:"content"`
	Question     string          `json:"question"`
	Options      []string        `json:"options"`
	Answer       json.RawMessage `json:"answer"`
	Points       int             `json:"points"`
	Explanation  string          `json:"explanation"`
}

// ExtractQuizJSON 从 AI 回复中取出 ```json 代码块（或第一个顶层 JSON 数组）并解析为题目
func ExtractQuizJSON(reply string) ([]QuestionInput, error) {
	var candidates []string
	for _, m := range fencePattern.FindAllStringSubmatch(reply, -1) {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if arr := firstJSONArray(reply); arr != "" {
		candidates = append(candidates, arr)
	}

	for _, c := range candidates {
		qs, err := decodeQuestions(c)
		if err == nil && len(qs) > 0 {
			return qs, nil
		}
	}
	return nil, util.ErrAIResponse
}

func decodeQuestions(raw string) ([]QuestionInput, error) {
	var items []aiQuestion
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		var wrapped struct {
			Questions []aiQuestion `json:"questions"`
		}
		if err2 := json.Unmarshal([]byte(raw), &wrapped); err2 != nil {
			return nil, err
		}
		items = wrapped.Questions
	}

	out := make([]QuestionInput, 0, len(items))
	for _, it := range items {
		in := QuestionInput{
			QuestionType: firstNonEmpty(it.QuestionType, it.Type),
			Content:      firstNonEmpty(it.Content, it.Question),
			Options:      it.Options,
			Answer:       rawAnswer(it.Answer),
			Points:       it.Points,
			Explanation:  it.Explanation,
		}
		out = append(out, in)
	}
	return out, nil
}

// rawAnswer 兼容字符串、布尔和字符串数组三种答案格式，数组保持 JSON 形式
func rawAnswer(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return EncodeChoices(list)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return "true"
		}
		return "false"
	}
	return strings.Trim(string(raw), `"`)
}

// firstJSONArray 按括号配对找到第一个完整的顶层数组
func firstJSONArray(s string) string {
	start := strings.Index(s, "[")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
