package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndTimeFor(t *testing.T) {
	end, err := EndTimeFor("14:20", 45)
	require.NoError(t, err)
	assert.Equal(t, "15:05", end)

	end, err = EndTimeFor("09:00:00", 90)
	require.NoError(t, err)
	assert.Equal(t, "10:30", end)

	_, err = EndTimeFor("23:30", 60)
	assert.Error(t, err)

	_, err = EndTimeFor("10:00", 0)
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:30", want: 570},
		{in: " 9:05 ", want: 545},
		{in: "18:00:00", want: 1080},
		{in: "24:00", want: 1440},
		{in: "24:30", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, mustParse(t, FormatClock(got)))
		})
	}
}

func mustParse(t *testing.T, v string) int {
	t.Helper()
	m, err := ParseClock(v)
	require.NoError(t, err)
	return m
}

func TestLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, "UTC", Location("").String())
	assert.Equal(t, "UTC", Location("Mars/Olympus").String())
}
