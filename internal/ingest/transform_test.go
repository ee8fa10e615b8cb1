package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() []byte {
	return []byte(`{
		"time_unix": 1718500000.123,
		"lat": 33.6,
		"lon": -101.8,
		"alt": 7500,
		"power_db": 12.5,
		"reduced_chi2": 0.8,
		"num_stations": 9
	}`)
}

func TestParsePointRecord(t *testing.T) {
	p, err := ParsePointRecord(validRecord())
	require.NoError(t, err)

	assert.Equal(t, 1718500000.123, p.TimeUnix)
	assert.Equal(t, 33.6, p.Lat)
	assert.Equal(t, -101.8, p.Lon)
	assert.Equal(t, 7500.0, p.Alt)
	assert.Equal(t, 12.5, p.PowerDB)
	assert.Equal(t, 0.8, p.ReducedChi2)
	assert.Equal(t, 9, p.NumStations)
}

func TestParsePointRecordMalformedJSON(t *testing.T) {
	_, err := ParsePointRecord([]byte("not json{{"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse point record")
}

func TestParsePointRecordRangeChecks(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{
			name: "zero time",
			json: `{"time_unix":0,"lat":33,"lon":-101,"alt":5000,"num_stations":7}`,
			want: "time_unix",
		},
		{
			name: "latitude out of range",
			json: `{"time_unix":1,"lat":91,"lon":-101,"alt":5000,"num_stations":7}`,
			want: "lat",
		},
		{
			name: "longitude out of range",
			json: `{"time_unix":1,"lat":33,"lon":-181,"alt":5000,"num_stations":7}`,
			want: "lon",
		},
		{
			name: "altitude below floor",
			json: `{"time_unix":1,"lat":33,"lon":-101,"alt":-600,"num_stations":7}`,
			want: "alt",
		},
		{
			name: "altitude above ceiling",
			json: `{"time_unix":1,"lat":33,"lon":-101,"alt":200000,"num_stations":7}`,
			want: "alt",
		},
		{
			name: "negative chi2",
			json: `{"time_unix":1,"lat":33,"lon":-101,"alt":5000,"reduced_chi2":-1,"num_stations":7}`,
			want: "reduced_chi2",
		},
		{
			name: "no stations",
			json: `{"time_unix":1,"lat":33,"lon":-101,"alt":5000,"num_stations":0}`,
			want: "num_stations",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePointRecord([]byte(tt.json))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParsePointRecordBoundaryValuesAccepted(t *testing.T) {
	boundaries := []string{
		`{"time_unix":1,"lat":90,"lon":180,"alt":100000,"num_stations":1}`,
		`{"time_unix":1,"lat":-90,"lon":-180,"alt":-500,"num_stations":1}`,
	}
	for _, j := range boundaries {
		_, err := ParsePointRecord([]byte(j))
		assert.NoError(t, err, j)
	}
}
