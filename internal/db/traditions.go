// CLAUDE:SUMMARY Tradition model and DB queries — creation, insertion-order listing, canonical seed set
package db

import (
	"database/sql"
	"fmt"
	"time"
)

type Tradition struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   *string   `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (db *DB) CreateTradition(name, description string, createdBy *string) (*Tradition, error) {
	id := NewID()
	_, err := db.Exec(`
		INSERT INTO traditions (id, name, description, created_by)
		VALUES (?, ?, ?, ?)`, id, name, description, createdBy)
	if err != nil {
		return nil, fmt.Errorf("creating tradition: %w", err)
	}
	return &Tradition{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (db *DB) GetTradition(id string) (*Tradition, error) {
	row := db.QueryRow(`
		SELECT id, name, description, created_by, created_at
		FROM traditions WHERE id = ?`, id)
	return scanTradition(row)
}

// ListTraditions returns every tradition in insertion order.
func (db *DB) ListTraditions() ([]*Tradition, error) {
	rows, err := db.Query(`
		SELECT id, name, description, created_by, created_at
		FROM traditions ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Tradition
	for rows.Next() {
		t, err := scanTradition(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

func scanTradition(s interface{ Scan(...any) error }) (*Tradition, error) {
	t := &Tradition{}
	var createdBy sql.NullString
	if err := s.Scan(&t.ID, &t.Name, &t.Description, &createdBy, &t.CreatedAt); err != nil {
		return nil, err
	}
	if createdBy.Valid {
		t.CreatedBy = &createdBy.String
	}
	return t, nil
}

// seedTraditions is the canonical starter set. Rows have no creator.
var seedTraditions = []struct {
	name, description string
}{
	{
		"Climb Baldwin",
		"Climb up the exterior of the Baldwin Auditorium building, a legendary unofficial requirement that many Duke students attempt.",
	},
	{
		"Go in the Tunnels",
		"Explore the underground tunnel system that connects various buildings across Duke's campus. A staple of Duke lore.",
	},
	{
		"Sex in the Stacks",
		"Have intimate relations among the bookshelves at Perkins Library. An infamously whispered about Duke tradition.",
	},
	{
		"Sex in the Gardens",
		"Have intimate relations in the Sarah P. Duke Gardens. Another whispered unofficial graduation requirement.",
	},
	{
		"Drive Around Backward Around C1 Loop",
		"Drive or ride around the C1 campus bus route in reverse - a quirky tradition some Duke students attempt.",
	},
}

// Seed inserts the canonical traditions when the table is empty. Running it
// against a populated database is a no-op, so startup can call it every time.
func (db *DB) Seed() error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM traditions").Scan(&count); err != nil {
		return fmt.Errorf("checking seed state: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, s := range seedTraditions {
		if _, err := db.CreateTradition(s.name, s.description, nil); err != nil {
			return fmt.Errorf("seeding %q: %w", s.name, err)
		}
	}
	return nil
}
