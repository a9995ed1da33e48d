// Package export renders stored star observations for downstream analysis.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

const starRowsQuery = `
SELECT r.full_name, s.observed_at, s.stargazers
FROM repo_stars s
JOIN repos r ON r.id = s.repo_id
ORDER BY s.observed_at DESC;
`

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// WriteStars streams the star observation time series to w as CSV, newest
// first, and returns the number of data rows written.
func WriteStars(ctx context.Context, q rowQuerier, w io.Writer) (int, error) {
	rows, err := q.Query(ctx, starRowsQuery)
	if err != nil {
		return 0, fmt.Errorf("query star observations: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"full_name", "observed_at", "stargazers"}); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}

	count := 0
	for rows.Next() {
		var fullName string
		var observedAt time.Time
		var stargazers int64
		if err := rows.Scan(&fullName, &observedAt, &stargazers); err != nil {
			return count, fmt.Errorf("scan star row: %w", err)
		}
		record := []string{
			fullName,
			observedAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(stargazers, 10),
		}
		if err := cw.Write(record); err != nil {
			return count, fmt.Errorf("write csv row: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("iterate star rows: %w", err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return count, fmt.Errorf("flush csv: %w", err)
	}
	return count, nil
}
