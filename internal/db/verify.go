package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Verify opens the SQLite database at path without writing to it and runs
// PRAGMA quick_check. Any result other than "ok" is returned as an error.
func Verify(path string) error {
	conn, err := sql.Open("sqlite", dsn(path, "query_only(1)"))
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer conn.Close() //nolint:errcheck

	rows, err := conn.Query(`PRAGMA quick_check`)
	if err != nil {
		return fmt.Errorf("quick_check %s: %w", path, err)
	}
	defer rows.Close() //nolint:errcheck

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("quick_check %s: %w", path, err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("quick_check %s: %w", path, err)
	}
	if len(problems) > 0 {
		return fmt.Errorf("quick_check %s: %s", path, strings.Join(problems, "; "))
	}
	return nil
}
