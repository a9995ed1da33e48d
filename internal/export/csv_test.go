package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestWriteStarsStreamsRowsNewestFirst(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	newer := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	older := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT r.full_name, s.observed_at, s.stargazers").
		WillReturnRows(pgxmock.NewRows([]string{"full_name", "observed_at", "stargazers"}).
			AddRow("alpha/one", newer, int64(1250)).
			AddRow("alpha/one", older, int64(1200)).
			AddRow("beta/two", older, int64(900)))

	var buf bytes.Buffer
	count, err := WriteStars(context.Background(), mock, &buf)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	want := "full_name,observed_at,stargazers\n" +
		"alpha/one,2024-03-02T12:00:00Z,1250\n" +
		"alpha/one,2024-03-01T12:00:00Z,1200\n" +
		"beta/two,2024-03-01T12:00:00Z,900\n"
	require.Equal(t, want, buf.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteStarsEmptyTableStillWritesHeader(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT r.full_name, s.observed_at, s.stargazers").
		WillReturnRows(pgxmock.NewRows([]string{"full_name", "observed_at", "stargazers"}))

	var buf bytes.Buffer
	count, err := WriteStars(context.Background(), mock, &buf)
	require.NoError(t, err)
	require.Zero(t, count)
	require.Equal(t, "full_name,observed_at,stargazers\n", buf.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteStarsSurfacesQueryFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT r.full_name, s.observed_at, s.stargazers").
		WillReturnError(errors.New("relation does not exist"))

	var buf bytes.Buffer
	_, err = WriteStars(context.Background(), mock, &buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "query star observations")
}
