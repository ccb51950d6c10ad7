package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{in: "2026-11-20", want: Date{2026, time.November, 20}},
		{in: "2024-02-29", want: Date{2024, time.February, 29}},
		{in: "2024-02-30", wantErr: true},
		{in: "2026-1-20", wantErr: true},
		{in: "2026-11-20T00:00:00Z", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestDate_JSON(t *testing.T) {
	type payload struct {
		Due Date `json:"due"`
	}
	data, err := json.Marshal(payload{Due: Date{2026, time.November, 20}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"2026-11-20"}`, string(data))

	data, err = json.Marshal(payload{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":null}`, string(data))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"due":"2026-01-02"}`), &p))
	assert.Equal(t, Date{2026, time.January, 2}, p.Due)
	assert.Error(t, json.Unmarshal([]byte(`{"due":"02/01/2026"}`), &p))
}

func TestDate_Scan(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  Date
	}{
		{name: "nil", value: nil, want: Date{}},
		{name: "time", value: time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC), want: Date{2026, time.November, 20}},
		{name: "text", value: "2026-11-20", want: Date{2026, time.November, 20}},
		{name: "timestamp text", value: []byte("2026-11-20 00:00:00+00:00"), want: Date{2026, time.November, 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			require.NoError(t, d.Scan(tt.value))
			assert.Equal(t, tt.want, d)
		})
	}

	var d Date
	assert.Error(t, d.Scan(42))
}

func TestDate_arithmetic(t *testing.T) {
	d := Date{2026, time.December, 30}
	assert.Equal(t, Date{2027, time.January, 2}, d.AddDays(3))
	assert.Equal(t, 3, d.DaysUntil(d.AddDays(3)))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.False(t, d.Before(d))

	seoul := time.FixedZone("KST", 9*60*60)
	assert.Equal(t, time.Date(2026, 12, 30, 14, 59, 59, 0, time.UTC), d.EndOfDay(seoul).UTC())
}

func TestParseUTCOffset(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "+09:00", want: 9 * 3600},
		{in: "-03:30", want: -(3*3600 + 30*60)},
		{in: "+00:00", want: 0},
		{in: "09:00", wantErr: true},
		{in: "+15:00", wantErr: true},
		{in: "+09:60", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUTCOffset(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOffset)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
