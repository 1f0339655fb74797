package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordValidate(t *testing.T) {
	day := DayForecast{Date: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)}

	cases := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{name: "current", rec: Record{Kind: KindCurrent, Current: &Conditions{}}},
		{name: "current without conditions", rec: Record{Kind: KindCurrent}, wantErr: true},
		{name: "current with days", rec: Record{Kind: KindCurrent, Current: &Conditions{}, Days: []DayForecast{day}}, wantErr: true},
		{name: "weekly", rec: Record{Kind: KindWeekly, Days: []DayForecast{day, day}}},
		{name: "weekly without days", rec: Record{Kind: KindWeekly}, wantErr: true},
		{name: "weekly with current", rec: Record{Kind: KindWeekly, Current: &Conditions{}, Days: []DayForecast{day}}, wantErr: true},
		{name: "unknown kind", rec: Record{Kind: "hourly"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rec.Validate()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestFirstDays(t *testing.T) {
	rec := Record{Kind: KindWeekly}
	for i := 0; i < 7; i++ {
		rec.Days = append(rec.Days, DayForecast{Date: time.Date(2026, 10, 19+i, 0, 0, 0, 0, time.UTC)})
	}

	short := rec.FirstDays(3)
	assert.Len(t, short.Days, 3)
	assert.Len(t, rec.Days, 7, "receiver is not modified")
	assert.Len(t, rec.FirstDays(0).Days, 7)
	assert.Len(t, rec.FirstDays(10).Days, 7)
}

func TestCityKey(t *testing.T) {
	assert.Equal(t, "санкт-петербург", CityKey("  Санкт-Петербург "))
	assert.Equal(t, "moscow", CityKey("MOSCOW"))
}
