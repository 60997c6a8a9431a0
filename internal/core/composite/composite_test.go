package composite

import (
	"context"
	"errors"
	"testing"
	"time"

	"landpulse/internal/core/imagery"
	"landpulse/internal/core/imagery/imagerytest"
	"landpulse/internal/core/period"
	perr "landpulse/internal/platform/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jan = period.Month{Year: 2025, Month: time.January}
	feb = period.Month{Year: 2025, Month: time.February}
	mar = period.Month{Year: 2025, Month: time.March}
)

func collectionFor(t *testing.T, f *imagerytest.Fake) imagery.Collection {
	t.Helper()
	c, err := f.Query(context.Background(), imagery.Query{})
	require.NoError(t, err)
	return c
}

func TestBuild_AllMonthsAvailable(t *testing.T) {
	f := &imagerytest.Fake{Counts: map[period.Month]int{jan: 4, feb: 2, mar: 1}}

	got, err := Build(context.Background(), collectionFor(t, f), imagery.NDVI, period.DefaultWindow)
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i, want := range []period.Month{jan, feb, mar} {
		assert.Equal(t, want, got[i].Month)
		assert.Equal(t, imagery.NDVI, got[i].Index)
		assert.True(t, got[i].Available())
		img, ok := got[i].Image()
		require.True(t, ok)
		assert.Equal(t, []string{"NDVI"}, img.Bands())
	}
	assert.Equal(t, 4, got[0].Count)
	assert.Equal(t, 3, CountAvailable(got))
}

func TestBuild_GapMonthIsMissing(t *testing.T) {
	f := &imagerytest.Fake{Counts: map[period.Month]int{jan: 3, mar: 5}}

	got, err := Build(context.Background(), collectionFor(t, f), imagery.NDWI, period.DefaultWindow)
	require.NoError(t, err)
	require.Len(t, got, 3, "every month is emitted regardless of data")

	assert.Equal(t, feb, got[1].Month)
	assert.False(t, got[1].Available())
	img, ok := got[1].Image()
	assert.False(t, ok)
	assert.Nil(t, img)
	assert.Equal(t, 2, CountAvailable(got))
}

func TestBuild_CountErrorIsUpstream(t *testing.T) {
	f := &imagerytest.Fake{
		Counts:   map[period.Month]int{jan: 1},
		CountErr: map[period.Month]error{feb: errors.New("deadline exceeded")},
	}
	_, err := Build(context.Background(), collectionFor(t, f), imagery.NDVI, period.DefaultWindow)
	require.Error(t, err)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))
}

func TestBuild_InvalidInputs(t *testing.T) {
	_, err := Build(context.Background(), nil, imagery.NDVI, period.DefaultWindow)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))

	f := &imagerytest.Fake{}
	_, err = Build(context.Background(), collectionFor(t, f), imagery.NDVI, period.Window{})
	assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))
}

func TestMissingAndAvailableConstructors(t *testing.T) {
	m := Missing(jan, imagery.NDVI)
	assert.False(t, m.Available())
	assert.Zero(t, m.Count)
}
