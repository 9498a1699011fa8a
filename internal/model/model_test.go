package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAdjust(t *testing.T) {
	tests := []struct {
		in      string
		want    Adjust
		wantErr bool
	}{
		{"", AdjustForward, false},
		{"qfq", AdjustForward, false},
		{"HFQ", AdjustBackward, false},
		{"none", AdjustNone, false},
		{"bfq", AdjustNone, false},
		{"raw", AdjustNone, false},
		{"sideways", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAdjust(tt.in, AdjustForward)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNewDailyBarNormalizesDate(t *testing.T) {
	bar := NewDailyBar(OHLCV{
		Time:  time.Date(2024, 1, 5, 15, 0, 0, 0, time.Local),
		Close: 10.5,
	})
	assert.Equal(t, "2024-01-05", bar.Date)
	assert.Equal(t, 10.5, bar.Close)
}

func TestFinancialRecordMatchesSymbol(t *testing.T) {
	rec := FinancialRecord{"code": "sh600000", "report_date": "20240331"}
	assert.Equal(t, "sh600000", rec.Code())
	assert.True(t, rec.MatchesSymbol("600000"))
	assert.False(t, rec.MatchesSymbol("000001"))
	assert.Empty(t, FinancialRecord{}.Code())
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("sync: %w", Wrap(KindRemoteList, cause, "list remote files"))

	assert.True(t, IsKind(err, KindRemoteList))
	assert.False(t, IsKind(err, KindFetch))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "sync: list remote files: connection refused", err.Error())

	plain := Errorf(KindDateNotFound, "no report for %s", "20240630")
	assert.Equal(t, "no report for 20240630", plain.Error())
	assert.Equal(t, KindDateNotFound, KindOf(plain))
	assert.Equal(t, ErrorKind(""), KindOf(cause))
}
