package recommend

import (
	"context"
	"database/sql"
	"net/url"
	"regexp"
	"strings"

	"github.com/lib/pq"
)

const (
	perCondition = 3
	maxArticles  = 6
	maxTokens    = 4
	snippetLen   = 180
)

type Article struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

type Recommender interface {
	// Recommend returns approved articles related to the given condition
	// names, newest first per condition.
	Recommend(ctx context.Context, conditionNames []string) ([]Article, error)
}

type postgresRecommender struct {
	db *sql.DB
}

func NewRecommender(db *sql.DB) Recommender {
	return &postgresRecommender{db: db}
}

var tokenSplit = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Tokens returns the searchable words of a condition name: alphanumeric runs
// longer than two characters, at most four.
func Tokens(name string) []string {
	var out []string
	for _, w := range tokenSplit.Split(name, -1) {
		if len(w) > 2 {
			out = append(out, w)
		}
		if len(out) == maxTokens {
			break
		}
	}
	return out
}

func (r *postgresRecommender) Recommend(ctx context.Context, conditionNames []string) ([]Article, error) {
	query := `
		SELECT id, title, content, category
		FROM articles
		WHERE status = 'approved'
		  AND (title ILIKE ANY($1) OR content ILIKE ANY($1))
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	var out []Article
	seen := make(map[int64]bool)
	for _, name := range conditionNames {
		tokens := Tokens(strings.TrimSpace(name))
		if len(tokens) == 0 {
			continue
		}
		patterns := make([]string, len(tokens))
		for i, t := range tokens {
			patterns[i] = "%" + t + "%"
		}

		rows, err := r.db.QueryContext(ctx, query, pq.Array(patterns), perCondition)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var (
				id                       int64
				title, content, category string
			)
			if err := rows.Scan(&id, &title, &content, &category); err != nil {
				rows.Close()
				return nil, err
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, Article{
				Title:    title,
				Summary:  Snippet(content),
				URL:      "/articles/?q=" + url.QueryEscape(title),
				Category: category,
			})
			if len(out) >= maxArticles {
				rows.Close()
				return out, nil
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Snippet flattens content to one line and cuts it at 180 characters.
func Snippet(content string) string {
	s := strings.ReplaceAll(strings.TrimSpace(content), "\n", " ")
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return strings.TrimRight(string(r[:snippetLen]), " \t\r") + "..."
}
