package service

import (
	"testing"

	"lms_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestIsCorrectAnswer(t *testing.T) {
	tests := []struct {
		name     string
		qType    string
		expected string
		answer   string
		want     bool
	}{
		{"single exact", model.QuestionSingleChoice, "B", "B", true},
		{"single case and space", model.QuestionSingleChoice, "B", " b ", true},
		{"single wrong", model.QuestionSingleChoice, "B", "C", false},
		{"true false", model.QuestionTrueFalse, "true", "True", true},
		{"short answer", model.QuestionShortAnswer, "Goroutine", "goroutine", true},
		{"empty answer", model.QuestionShortAnswer, "", "", false},
		{"multi order insensitive", model.QuestionMultipleChoice, "A,C", "C, A", true},
		{"multi duplicates", model.QuestionMultipleChoice, "A,C", "a,c,c", true},
		{"multi subset", model.QuestionMultipleChoice, "A,C", "A", false},
		{"multi superset", model.QuestionMultipleChoice, "A,C", "A,B,C", false},
		{"multi json", model.QuestionMultipleChoice, `["A","C"]`, `["c","a"]`, true},
		{"multi json vs comma", model.QuestionMultipleChoice, `["A","C"]`, "C,A", true},
		{"option with comma", model.QuestionMultipleChoice, `["Paris, France","Berlin"]`, `["berlin"," Paris, France"]`, true},
		{"option with comma split", model.QuestionMultipleChoice, `["Paris, France","Berlin"]`, "Paris, France, Berlin", false},
		{"option with comma partial", model.QuestionMultipleChoice, `["Paris, France","Berlin"]`, `["Paris, France"]`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := model.AssessmentQuestion{QuestionType: tt.qType, Answer: tt.expected}
			assert.Equal(t, tt.want, IsCorrectAnswer(q, tt.answer))
		})
	}
}

func TestGradeAnswers(t *testing.T) {
	a := &model.Assessment{BaseModel: model.BaseModel{ID: 7}, PassingScore: 60}
	qs := []model.AssessmentQuestion{
		{BaseModel: model.BaseModel{ID: 1}, QuestionType: model.QuestionSingleChoice, Answer: "A", Points: 2},
		{BaseModel: model.BaseModel{ID: 2}, QuestionType: model.QuestionMultipleChoice, Answer: "A,B", Points: 2},
		{BaseModel: model.BaseModel{ID: 3}, QuestionType: model.QuestionTrueFalse, Answer: "false", Points: 1},
	}

	res := GradeAnswers(42, "s-1", a, qs, map[uint]string{1: "a", 2: "B,A"})

	assert.Equal(t, 4, res.Score)
	assert.Equal(t, 5, res.MaxScore)
	assert.Equal(t, 80.0, res.Percentage)
	assert.True(t, res.Passed)
	assert.Len(t, res.Responses, 3)
	assert.False(t, res.Responses[2].IsCorrect)
	assert.Equal(t, uint(42), res.Responses[0].UserID)
	assert.Equal(t, uint(7), res.Responses[1].AssessmentID)
	assert.Equal(t, "s-1", res.Responses[2].SessionID)
}

func TestGradeAnswersPassBoundary(t *testing.T) {
	a := &model.Assessment{PassingScore: 50}
	qs := []model.AssessmentQuestion{
		{BaseModel: model.BaseModel{ID: 1}, QuestionType: model.QuestionSingleChoice, Answer: "A", Points: 1},
		{BaseModel: model.BaseModel{ID: 2}, QuestionType: model.QuestionSingleChoice, Answer: "A", Points: 1},
	}
	res := GradeAnswers(1, "", a, qs, map[uint]string{1: "A"})
	assert.Equal(t, 50.0, res.Percentage)
	assert.True(t, res.Passed)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(0, 0))
	assert.Equal(t, 33.33, Percentage(1, 3))
	assert.Equal(t, 100.0, Percentage(3, 3))
}

func TestParseChoices(t *testing.T) {
	assert.Equal(t, []string{"Paris, France", "Berlin"}, ParseChoices(` ["Paris, France", " Berlin", ""] `))
	assert.Equal(t, []string{"A", "C"}, ParseChoices("A, ,C"))
	// 不是合法 JSON 时按逗号分隔
	assert.Equal(t, []string{"[A", "B"}, ParseChoices("[A,B"))
	assert.Empty(t, ParseChoices(""))
	assert.Equal(t, `["Paris, France","Berlin"]`, EncodeChoices([]string{" Paris, France", "Berlin", " "}))
}
