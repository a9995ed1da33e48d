package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/halverson/starwatch/internal/crawler"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestSinkPageUpsertsReposAndRecordsStars(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewRepoSink(mock)
	require.NoError(t, err)

	observedAt := time.Unix(1700000000, 0).UTC()
	updatedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	repos := []crawler.Repository{
		{
			ID:            "R_a",
			Owner:         "alpha",
			Name:          "one",
			FullName:      "alpha/one",
			URL:           "https://github.com/alpha/one",
			Description:   "first repo",
			Language:      "Go",
			DefaultBranch: "main",
			UpdatedAt:     updatedAt,
			Stargazers:    1200,
		},
		{
			ID:         "R_b",
			Owner:      "beta",
			Name:       "two",
			FullName:   "beta/two",
			Stargazers: 900,
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO repos").
		WithArgs(
			"R_a", "alpha", "one", "alpha/one",
			strPtr("https://github.com/alpha/one"),
			strPtr("first repo"),
			strPtr("Go"),
			strPtr("main"),
			timePtr(updatedAt),
			observedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO repo_stars").
		WithArgs("R_a", observedAt, 1200).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Empty optional fields land as NULL, not empty strings.
	mock.ExpectExec("INSERT INTO repos").
		WithArgs(
			"R_b", "beta", "two", "beta/two",
			(*string)(nil),
			(*string)(nil),
			(*string)(nil),
			(*string)(nil),
			(*time.Time)(nil),
			observedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO repo_stars").
		WithArgs("R_b", observedAt, 900).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	applied, err := sink.SinkPage(context.Background(), repos, observedAt)
	require.NoError(t, err)
	require.Equal(t, 2, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSinkPageEmptyBatchIsNoOp(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewRepoSink(mock)
	require.NoError(t, err)

	applied, err := sink.SinkPage(context.Background(), nil, time.Now())
	require.NoError(t, err)
	require.Zero(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSinkPageRollsBackOnUpsertFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewRepoSink(mock)
	require.NoError(t, err)

	observedAt := time.Unix(1700000000, 0).UTC()
	repos := []crawler.Repository{
		{ID: "R_a", Owner: "alpha", Name: "one", FullName: "alpha/one", Stargazers: 10},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO repos").
		WithArgs(
			"R_a", "alpha", "one", "alpha/one",
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
			(*time.Time)(nil),
			observedAt,
		).
		WillReturnError(errors.New("disk on fire"))
	mock.ExpectRollback()

	applied, err := sink.SinkPage(context.Background(), repos, observedAt)
	require.Error(t, err)
	require.Contains(t, err.Error(), "upsert repo alpha/one")
	require.Zero(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSinkPageRollsBackOnStarInsertFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewRepoSink(mock)
	require.NoError(t, err)

	observedAt := time.Unix(1700000000, 0).UTC()
	repos := []crawler.Repository{
		{ID: "R_a", Owner: "alpha", Name: "one", FullName: "alpha/one", Stargazers: 10},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO repos").
		WithArgs(
			"R_a", "alpha", "one", "alpha/one",
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
			(*time.Time)(nil),
			observedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO repo_stars").
		WithArgs("R_a", observedAt, 10).
		WillReturnError(errors.New("disk on fire"))
	mock.ExpectRollback()

	applied, err := sink.SinkPage(context.Background(), repos, observedAt)
	require.Error(t, err)
	require.Contains(t, err.Error(), "record stars for alpha/one")
	require.Zero(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSinkPageRejectsRepoWithoutID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewRepoSink(mock)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	repos := []crawler.Repository{{Owner: "alpha", Name: "one", FullName: "alpha/one"}}
	_, err = sink.SinkPage(context.Background(), repos, time.Unix(1700000000, 0).UTC())
	require.Error(t, err)
	require.Contains(t, err.Error(), "has no id")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRepoSinkRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewRepoSink(nil)
	require.Error(t, err)
}
