package doctors

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"

	"healthsync/internal/platform/database"
)

// DirectoryLimit caps directory matches returned to callers.
const DirectoryLimit = 6

type Directory interface {
	// MatchForSpecializations returns doctors whose specialization contains
	// any of the given names. Comma-separated entries are split first.
	MatchForSpecializations(ctx context.Context, specializations []string) ([]Doctor, error)
}

type postgresDirectory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) Directory {
	return &postgresDirectory{db: db}
}

// SplitSpecializations flattens comma lists, trims and de-duplicates
// case-insensitively, keeping first-seen order.
func SplitSpecializations(specializations []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range specializations {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			key := strings.ToLower(part)
			if part == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, part)
		}
	}
	return out
}

func (r *postgresDirectory) MatchForSpecializations(ctx context.Context, specializations []string) ([]Doctor, error) {
	names := SplitSpecializations(specializations)
	if len(names) == 0 {
		return nil, nil
	}
	patterns := make([]string, len(names))
	for i, n := range names {
		patterns[i] = database.ContainsPattern(n)
	}

	query := `
		SELECT id, name, specialization, city, phone, email, latitude, longitude
		FROM doctors
		WHERE specialization ILIKE ANY($1)
		ORDER BY id
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(patterns), DirectoryLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Doctor
	for rows.Next() {
		var (
			d        Doctor
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialization, &d.City, &d.Phone, &d.Email, &lat, &lon); err != nil {
			return nil, err
		}
		if lat.Valid && lon.Valid {
			d.Latitude, d.Longitude = &lat.Float64, &lon.Float64
			d.MapURL = osmMapLink(d.Latitude, d.Longitude, d.Name, d.City)
		}
		d.Source = SourceDirectory
		out = append(out, d)
	}
	return out, rows.Err()
}
