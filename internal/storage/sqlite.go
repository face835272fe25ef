package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding customers, surveys, the survey
// ledger, and normalized responses.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "surveus.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't
// been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// --- Customers ---

const customerColumns = `id, email, first_name, last_name, age, location, language, gender,
	industry, business_type, total_purchases, purchase_frequency, last_purchase_date,
	purchase_history, cart_abandonments, last_abandoned_item, complaint_date,
	complaint_resolved, complaint_followed_up, service_interactions,
	marketing_opt_in, email_opens, marketing_engagement, created_at`

func (s *Store) InsertCustomer(c Customer) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO customers (`+customerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Email, c.FirstName, c.LastName, c.Age, c.Location, c.Language, c.Gender,
		c.Industry, c.BusinessType, c.TotalPurchases, c.PurchaseFrequency, formatTime(c.LastPurchaseDate),
		c.PurchaseHistory, c.CartAbandonments, c.LastAbandonedItem, formatTime(c.ComplaintDate),
		c.ComplaintResolved, c.ComplaintFollowedUp, c.ServiceInteractions,
		c.MarketingOptIn, c.EmailOpens, c.MarketingEngagement, formatTime(createdAt),
	)
	return err
}

func scanCustomer(row interface{ Scan(...any) error }) (Customer, error) {
	var c Customer
	var lastPurchase, complaintDate, createdAt string
	err := row.Scan(
		&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Age, &c.Location, &c.Language, &c.Gender,
		&c.Industry, &c.BusinessType, &c.TotalPurchases, &c.PurchaseFrequency, &lastPurchase,
		&c.PurchaseHistory, &c.CartAbandonments, &c.LastAbandonedItem, &complaintDate,
		&c.ComplaintResolved, &c.ComplaintFollowedUp, &c.ServiceInteractions,
		&c.MarketingOptIn, &c.EmailOpens, &c.MarketingEngagement, &createdAt,
	)
	if err != nil {
		return Customer{}, err
	}
	if c.LastPurchaseDate, err = parseTime(lastPurchase); err != nil {
		return Customer{}, fmt.Errorf("parsing last_purchase_date: %w", err)
	}
	if c.ComplaintDate, err = parseTime(complaintDate); err != nil {
		return Customer{}, fmt.Errorf("parsing complaint_date: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return Customer{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return c, nil
}

func (s *Store) GetCustomer(id string) (Customer, error) {
	row := s.db.QueryRow(`SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return Customer{}, ErrNotFound
	}
	return c, err
}

// ListCustomers returns the whole population in insertion order.
func (s *Store) ListCustomers() ([]Customer, error) {
	rows, err := s.db.Query(`SELECT ` + customerColumns + ` FROM customers ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// --- Surveys ---

func (s *Store) InsertSurvey(sv Survey) error {
	createdAt := sv.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	status := sv.Status
	if status == "" {
		status = "active"
	}
	_, err := s.db.Exec(`
		INSERT INTO surveys (id, customer_id, form_id, title, status, questions_json, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sv.ID, sv.CustomerID, sv.FormID, sv.Title, status, sv.QuestionsJSON, sv.MetadataJSON, formatTime(createdAt),
	)
	return err
}

func scanSurvey(row interface{ Scan(...any) error }) (Survey, error) {
	var sv Survey
	var createdAt string
	err := row.Scan(&sv.ID, &sv.CustomerID, &sv.FormID, &sv.Title, &sv.Status, &sv.QuestionsJSON, &sv.MetadataJSON, &createdAt)
	if err != nil {
		return Survey{}, err
	}
	if sv.CreatedAt, err = parseTime(createdAt); err != nil {
		return Survey{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return sv, nil
}

func (s *Store) GetSurvey(id string) (Survey, error) {
	row := s.db.QueryRow(`
		SELECT id, customer_id, form_id, title, status, questions_json, metadata_json, created_at
		FROM surveys WHERE id = ?`, id)
	sv, err := scanSurvey(row)
	if err == sql.ErrNoRows {
		return Survey{}, ErrNotFound
	}
	return sv, err
}

// ListSurveys returns all surveys, most recently created first.
func (s *Store) ListSurveys() ([]Survey, error) {
	return s.listSurveys(`
		SELECT id, customer_id, form_id, title, status, questions_json, metadata_json, created_at
		FROM surveys ORDER BY created_at DESC, id DESC`)
}

// ListRecentSurveys returns up to limit surveys, most recently created first.
func (s *Store) ListRecentSurveys(limit int) ([]Survey, error) {
	return s.listSurveys(`
		SELECT id, customer_id, form_id, title, status, questions_json, metadata_json, created_at
		FROM surveys ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

func (s *Store) listSurveys(query string, args ...any) ([]Survey, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Survey
	for rows.Next() {
		sv, err := scanSurvey(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sv)
	}
	return results, rows.Err()
}

func (s *Store) UpdateSurveyStatus(id, status string) error {
	res, err := s.db.Exec(`UPDATE surveys SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Survey Ledger ---

// GetLedger returns the ledger entry for a customer, or ErrNotFound if the
// customer has never been surveyed.
func (s *Store) GetLedger(userID string) (LedgerEntry, error) {
	var e LedgerEntry
	var lastDate string
	err := s.db.QueryRow(`
		SELECT user_id, last_survey_date, surveys_sent
		FROM survey_ledger WHERE user_id = ?`, userID,
	).Scan(&e.UserID, &lastDate, &e.SurveysSent)
	if err == sql.ErrNoRows {
		return LedgerEntry{}, ErrNotFound
	}
	if err != nil {
		return LedgerEntry{}, err
	}
	if e.LastSurveyDate, err = parseTime(lastDate); err != nil {
		return LedgerEntry{}, fmt.Errorf("parsing last_survey_date: %w", err)
	}
	return e, nil
}

// UpsertLedger increments the customer's surveys_sent counter (treating a
// missing row as zero) and sets last_survey_date to ts, as one statement.
// It returns the new surveys_sent value.
func (s *Store) UpsertLedger(userID string, ts time.Time) (int, error) {
	var sent int
	err := s.db.QueryRow(`
		INSERT INTO survey_ledger (user_id, last_survey_date, surveys_sent)
		VALUES (?, ?, 1)
		ON CONFLICT(user_id) DO UPDATE SET
			surveys_sent = surveys_sent + 1,
			last_survey_date = excluded.last_survey_date
		RETURNING surveys_sent`,
		userID, formatTime(ts),
	).Scan(&sent)
	if err != nil {
		return 0, fmt.Errorf("upserting ledger for %s: %w", userID, err)
	}
	return sent, nil
}

// --- Responses ---

func (s *Store) InsertResponse(r Response) error {
	_, err := s.db.Exec(`
		INSERT INTO responses (id, survey_id, response_json, raw_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.SurveyID, r.ResponseJSON, r.RawJSON, formatTime(r.CreatedAt),
	)
	return err
}

func (s *Store) ListResponsesBySurvey(surveyID string) ([]Response, error) {
	rows, err := s.db.Query(`
		SELECT id, survey_id, response_json, raw_json, created_at
		FROM responses WHERE survey_id = ? ORDER BY created_at ASC`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Response
	for rows.Next() {
		var r Response
		var createdAt string
		if err := rows.Scan(&r.ID, &r.SurveyID, &r.ResponseJSON, &r.RawJSON, &createdAt); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
