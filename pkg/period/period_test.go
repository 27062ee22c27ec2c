package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(s string) time.Time {
	d, err := time.Parse(DateFormat, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 1, DaysBetween(date("2024-01-01"), date("2024-01-01")))
	assert.Equal(t, 7, DaysBetween(date("2024-01-01"), date("2024-01-07")))
	assert.Equal(t, 60, DaysBetween(date("2024-01-01"), date("2024-02-29")))
}

func TestResolve_AutoBySpan(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want Granularity
	}{
		{"same day", "2024-01-01", "2024-01-01", Day},
		{"60 days", "2024-01-01", "2024-02-29", Day},
		{"61 days", "2024-01-01", "2024-03-01", Week},
		{"70 days", "2024-01-01", "2024-03-10", Week},
		{"180 days", "2024-01-01", "2024-06-28", Week},
		{"181 days", "2024-01-01", "2024-06-29", Month},
		{"200 days", "2024-01-01", "2024-07-18", Month},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(date(tt.from), date(tt.to), Auto)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_ExplicitWins(t *testing.T) {
	// 400-day span would auto-resolve to month; an explicit day sticks.
	got, err := Resolve(date("2023-01-01"), date("2024-02-04"), Day)
	assert.NoError(t, err)
	assert.Equal(t, Day, got)

	got, err = Resolve(date("2024-01-01"), date("2024-01-02"), Month)
	assert.NoError(t, err)
	assert.Equal(t, Month, got)
}

func TestResolve_InvalidGranularity(t *testing.T) {
	_, err := Resolve(date("2024-01-01"), date("2024-01-02"), Granularity("hour"))
	assert.ErrorIs(t, err, ErrInvalidGranularity)
}

func TestBucketKey_Day(t *testing.T) {
	d := date("2024-05-17")
	assert.Equal(t, d, BucketKey(Day, d))
}

func TestBucketKey_Week(t *testing.T) {
	// 2024-01-01 is a Monday.
	tests := []struct {
		day  string
		want string
	}{
		{"2024-01-01", "2024-01-01"}, // Monday stays
		{"2024-01-03", "2024-01-01"}, // Wednesday -> two days back
		{"2024-01-06", "2024-01-01"}, // Saturday -> five days back
		{"2024-01-07", "2024-01-01"}, // Sunday -> six days back
		{"2024-01-08", "2024-01-08"}, // next Monday starts a new bucket
	}
	for _, tt := range tests {
		assert.Equal(t, date(tt.want), BucketKey(Week, date(tt.day)), "day %s", tt.day)
	}
}

func TestBucketKey_Month(t *testing.T) {
	assert.Equal(t, date("2024-02-01"), BucketKey(Month, date("2024-02-29")))
	assert.Equal(t, date("2024-12-01"), BucketKey(Month, date("2024-12-01")))
}

func TestValidateRange(t *testing.T) {
	from, to, err := ValidateRange("2024-01-01", "2024-01-31")
	assert.NoError(t, err)
	assert.Equal(t, date("2024-01-01"), from)
	assert.Equal(t, date("2024-01-31"), to)

	_, _, err = ValidateRange("2024-02-01", "2024-01-01")
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, _, err = ValidateRange("2024/01/01", "2024-01-31")
	assert.Error(t, err)

	_, _, err = ValidateRange("2024-01-01", "not-a-date")
	assert.Error(t, err)
}
