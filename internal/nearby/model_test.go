package nearby

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	paris := Coordinate{Latitude: 48.8566, Longitude: 2.3522}
	london := Coordinate{Latitude: 51.5074, Longitude: -0.1278}

	require.InDelta(t, 0, Distance(paris, paris), 1e-9)
	require.InDelta(t, 343.5, Distance(paris, london), 1.0)
	require.InDelta(t, Distance(paris, london), Distance(london, paris), 1e-9)

	// one thousandth of a degree of latitude is about 111 m
	near := Coordinate{Latitude: paris.Latitude + 0.001, Longitude: paris.Longitude}
	require.InDelta(t, 0.111, Distance(paris, near), 0.001)
}

func TestCoordinateValidate(t *testing.T) {
	require.NoError(t, Coordinate{Latitude: 90, Longitude: -180}.Validate())
	require.Error(t, Coordinate{Latitude: 90.1}.Validate())
	require.Error(t, Coordinate{Longitude: 181}.Validate())
	require.Error(t, Coordinate{Latitude: math.NaN()}.Validate())
}
