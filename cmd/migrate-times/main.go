// Command migrate-times normalizes legacy timestamp strings in the
// drafts and memorials tables to UTC RFC 3339. Early imports wrote
// timestamps in whatever format the source files carried.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/evermore-app/evermore/internal/db"
)

// parseFuzzyTime attempts to parse a timestamp string using multiple formats.
func parseFuzzyTime(timeStr string) (time.Time, error) {
	timeFormats := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		time.RFC3339,
		"2006-01-02 15:04:05", // Added for cases without timezone info
	}

	var parsedTime time.Time
	var err error
	for _, format := range timeFormats {
		parsedTime, err = time.Parse(format, timeStr)
		if err == nil {
			return parsedTime.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse time '%s' with any known format", timeStr)
}

type timestampTable struct {
	name    string
	columns []string
}

var tables = []timestampTable{
	{name: "drafts", columns: []string{"created_at", "modified_at"}},
	{name: "memorials", columns: []string{"published_at", "modified_at"}},
	{name: "guestbook_entries", columns: []string{"created_at"}},
}

func main() {
	dbPath := flag.String("db", "./evermore.db", "Path to the SQLite database")
	flag.Parse()

	log.Println("Starting timestamp migration...")

	// Initialize database connection
	database := db.NewSQLite(*dbPath)
	if err := database.InitDB(); err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}
	defer database.Close()

	sqlDB := database.Get()

	for _, table := range tables {
		if err := migrateTable(sqlDB, table); err != nil {
			log.Fatalf("Table %s: %v", table.name, err)
		}
	}

	log.Println("Timestamp migration complete.")
}

func migrateTable(sqlDB *sql.DB, table timestampTable) error {
	for _, column := range table.columns {
		rows, err := sqlDB.Query(fmt.Sprintf("SELECT id, %s FROM %s", column, table.name))
		if err != nil {
			return err
		}

		type rowTime struct {
			id    string
			value string
		}
		var pending []rowTime
		for rows.Next() {
			var rt rowTime
			var value sql.NullString
			if err := rows.Scan(&rt.id, &value); err != nil {
				log.Printf("Failed to scan %s.%s row: %v", table.name, column, err)
				continue
			}
			if !value.Valid || value.String == "" {
				continue
			}
			rt.value = value.String
			pending = append(pending, rt)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		log.Printf("Found %d %s rows to process for %s.", len(pending), table.name, column)

		for _, rt := range pending {
			parsed, err := parseFuzzyTime(rt.value)
			if err != nil {
				log.Printf("%s %s: Could not parse %s '%s': %v", table.name, rt.id, column, rt.value, err)
				continue
			}
			_, err = sqlDB.Exec(
				fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", table.name, column),
				parsed, rt.id,
			)
			if err != nil {
				log.Printf("%s %s: Failed to update %s: %v", table.name, rt.id, column, err)
				continue
			}
			log.Printf("%s %s: Updated %s to %s", table.name, rt.id, column, parsed.Format(time.RFC3339Nano))
		}
	}
	return nil
}
