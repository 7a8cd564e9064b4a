package service

import (
	"testing"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(util.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCurriculumName(t *testing.T) {
	name := CurriculumName("B12", "HCM", date("2024-01-15"), date("2024-12-20"))
	assert.Equal(t, "B12HCM011524–122024", name)
}

func TestBuildQuarters(t *testing.T) {
	batch := &model.Batch{StartDate: date("2024-01-01"), EndDate: date("2024-12-31")}

	quarters, err := BuildQuarters(batch, []QuarterInput{
		{Number: 2, StartDate: "2024-04-01", EndDate: "2024-06-30"},
		{Number: 1, StartDate: "2024-01-01", EndDate: "2024-03-31"},
	})
	require.NoError(t, err)
	require.Len(t, quarters, 2)
	assert.Equal(t, 1, quarters[0].Number)
	assert.Equal(t, date("2024-03-31"), quarters[0].EndDate)
	assert.Equal(t, 2, quarters[1].Number)
}

func TestBuildQuarters_Invalid(t *testing.T) {
	batch := &model.Batch{StartDate: date("2024-01-01"), EndDate: date("2024-12-31")}
	q := func(n int, from, to string) QuarterInput {
		return QuarterInput{Number: n, StartDate: from, EndDate: to}
	}

	tests := []struct {
		name   string
		inputs []QuarterInput
		want   error
	}{
		{"none", nil, util.ErrInvalidQuarter},
		{"too many", []QuarterInput{
			q(1, "2024-01-01", "2024-02-01"), q(2, "2024-03-01", "2024-04-01"),
			q(3, "2024-05-01", "2024-06-01"), q(4, "2024-07-01", "2024-08-01"),
			q(4, "2024-09-01", "2024-10-01"),
		}, util.ErrQuarterLimit},
		{"number out of range", []QuarterInput{q(5, "2024-01-01", "2024-02-01")}, util.ErrInvalidQuarter},
		{"duplicate number", []QuarterInput{q(1, "2024-01-01", "2024-02-01"), q(1, "2024-03-01", "2024-04-01")}, util.ErrInvalidQuarter},
		{"before batch", []QuarterInput{q(1, "2023-12-31", "2024-02-01")}, util.ErrInvalidQuarter},
		{"after batch", []QuarterInput{q(1, "2024-11-01", "2025-01-01")}, util.ErrInvalidQuarter},
		{"overlap", []QuarterInput{q(1, "2024-01-01", "2024-04-01"), q(2, "2024-03-01", "2024-06-01")}, util.ErrInvalidQuarter},
		{"touching end and start", []QuarterInput{q(1, "2024-01-01", "2024-04-01"), q(2, "2024-04-01", "2024-06-01")}, util.ErrInvalidQuarter},
		{"reversed range", []QuarterInput{q(1, "2024-03-01", "2024-02-01")}, util.ErrInvalidDateRange},
		{"bad date", []QuarterInput{q(1, "01/03/2024", "2024-02-01")}, util.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildQuarters(batch, tt.inputs)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBatchFromRequest(t *testing.T) {
	b, err := batchFromRequest(BatchRequest{Code: " B1 ", Location: "HN", StartDate: "2024-01-01", EndDate: "2024-06-30"})
	require.NoError(t, err)
	assert.Equal(t, "B1", b.Code)
	assert.Equal(t, date("2024-06-30"), b.EndDate)

	_, err = batchFromRequest(BatchRequest{Code: "B1", Location: "", StartDate: "2024-01-01", EndDate: "2024-06-30"})
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = batchFromRequest(BatchRequest{Code: "B1", Location: "HN", StartDate: "2024-06-30", EndDate: "2024-01-01"})
	assert.ErrorIs(t, err, util.ErrInvalidDateRange)
}
