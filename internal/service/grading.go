package service

import (
	"encoding/json"
	"lms_backend/internal/model"
	"math"
	"sort"
	"strings"
)

// GradeResult 评分结果
type GradeResult struct {
	Responses  []model.AssessmentResponse
	Score      int
	MaxScore   int
	Percentage float64
	Passed     bool
}

// GradeAnswers 按题目逐一判分；未作答的题目记 0 分
func GradeAnswers(userID uint, sessionID string, a *model.Assessment, questions []model.AssessmentQuestion, answers map[uint]string) GradeResult {
	res := GradeResult{Responses: make([]model.AssessmentResponse, 0, len(questions))}
	for _, q := range questions {
		answer := answers[q.ID]
		correct := IsCorrectAnswer(q, answer)
		score := 0
		if correct {
			score = q.Points
		}
		res.Score += score
		res.MaxScore += q.Points
		res.Responses = append(res.Responses, model.AssessmentResponse{
			UserID:       userID,
			QuestionID:   q.ID,
			AssessmentID: a.ID,
			SessionID:    sessionID,
			Answer:       answer,
			IsCorrect:    correct,
			Score:        score,
		})
	}
	res.Percentage = Percentage(res.Score, res.MaxScore)
	res.Passed = res.Percentage >= a.PassingScore
	return res
}

func IsCorrectAnswer(q model.AssessmentQuestion, answer string) bool {
	if strings.TrimSpace(answer) == "" {
		return false
	}
	if q.QuestionType == model.QuestionMultipleChoice {
		return sameOptionSet(q.Answer, answer)
	}
	return normalizeAnswer(q.Answer) == normalizeAnswer(answer)
}

// Percentage 保留两位小数
func Percentage(score, max int) float64 {
	if max <= 0 {
		return 0
	}
	return math.Round(float64(score)/float64(max)*10000) / 100
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func sameOptionSet(expected, actual string) bool {
	a, b := choiceSet(expected), choiceSet(actual)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ParseChoices 多选答案优先按 JSON 数组解析（选项文本可以包含逗号），否则按逗号分隔
func ParseChoices(s string) []string {
	s = strings.TrimSpace(s)
	var list []string
	if strings.HasPrefix(s, "[") && json.Unmarshal([]byte(s), &list) == nil {
		return trimChoices(list)
	}
	return trimChoices(strings.Split(s, ","))
}

// EncodeChoices 多选答案统一存为 JSON 数组
func EncodeChoices(choices []string) string {
	data, _ := json.Marshal(trimChoices(choices))
	return string(data)
}

func trimChoices(list []string) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func choiceSet(s string) []string {
	parts := ParseChoices(s)
	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = normalizeAnswer(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
