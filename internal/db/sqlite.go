package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	_ "modernc.org/sqlite"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store on an embedded SQLite database. The request
// document is kept as JSON next to the columns used for filtering.
type SQLiteStore struct {
	DB *sql.DB
}

// OpenSQLite opens (creating if needed) the database file at path and
// applies migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time; request-level locking happens above the store.
	conn.SetMaxOpenConns(1)
	if _, err := Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &SQLiteStore{DB: conn}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// InsertRequest inserts a new request at version 1.
func (s *SQLiteStore) InsertRequest(ctx context.Context, req *models.MaintenanceRequest) error {
	stored := *req
	stored.Version = 1
	doc, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("encode request %s: %w", req.ID, err)
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO maintenance_requests
		(id, vehicle_id, requester_id, status, current_stage, version, doc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.VehicleID, stored.RequesterID, string(stored.Status), string(stored.CurrentStage),
		stored.Version, string(doc), formatTime(stored.CreatedAt), formatTime(stored.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert request %s: %w", req.ID, err)
	}
	req.Version = stored.Version
	return nil
}

// FindRequestByID loads a request.
func (s *SQLiteStore) FindRequestByID(ctx context.Context, id string) (*models.MaintenanceRequest, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT version, doc FROM maintenance_requests WHERE id=?`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find request %s: %w", id, err)
	}
	return req, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.MaintenanceRequest, error) {
	var (
		version int64
		doc     string
	)
	if err := row.Scan(&version, &doc); err != nil {
		return nil, err
	}
	var req models.MaintenanceRequest
	if err := json.Unmarshal([]byte(doc), &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	req.Version = version
	return &req, nil
}

// SaveRequest replaces the request if the stored version matches.
func (s *SQLiteStore) SaveRequest(ctx context.Context, req *models.MaintenanceRequest) error {
	next := *req
	next.Version = req.Version + 1
	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode request %s: %w", req.ID, err)
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE maintenance_requests
		SET status=?, current_stage=?, version=?, doc=?, updated_at=?
		WHERE id=? AND version=?`,
		string(next.Status), string(next.CurrentStage), next.Version, string(doc), formatTime(next.UpdatedAt),
		req.ID, req.Version)
	if err != nil {
		return fmt.Errorf("save request %s: %w", req.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save request %s: %w", req.ID, err)
	}
	if n == 0 {
		var exists int
		err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM maintenance_requests WHERE id=?`, req.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("save request %s: %w", req.ID, err)
		}
		return ErrVersionConflict
	}
	req.Version = next.Version
	return nil
}

// FindRequests lists requests, newest first.
func (s *SQLiteStore) FindRequests(ctx context.Context, f RequestFilter) ([]models.MaintenanceRequest, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, string(f.Status))
	}
	if f.Stage != "" {
		where = append(where, "current_stage=?")
		args = append(args, string(f.Stage))
	}
	if f.VehicleID != "" {
		where = append(where, "vehicle_id=?")
		args = append(args, f.VehicleID)
	}
	if f.RequesterID != "" {
		where = append(where, "requester_id=?")
		args = append(args, f.RequesterID)
	}
	query := `SELECT version, doc FROM maintenance_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find requests: %w", err)
	}
	defer rows.Close()

	out := []models.MaintenanceRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// InsertMechanic inserts a mechanic into the directory.
func (s *SQLiteStore) InsertMechanic(ctx context.Context, m models.Mechanic) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO mechanics (id, name, email, specialty, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, m.ID, m.Name, m.Email, m.Specialty, m.Active, formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert mechanic %s: %w", m.ID, err)
	}
	return nil
}

// FindMechanicByID finds a mechanic by id.
func (s *SQLiteStore) FindMechanicByID(ctx context.Context, id string) (*models.Mechanic, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT id, name, email, specialty, active, created_at FROM mechanics WHERE id=?`, id)
	m, err := scanMechanic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// FindMechanics lists mechanics by name.
func (s *SQLiteStore) FindMechanics(ctx context.Context, activeOnly bool) ([]models.Mechanic, error) {
	query := `SELECT id, name, email, specialty, active, created_at FROM mechanics`
	if activeOnly {
		query += ` WHERE active=1`
	}
	rows, err := s.DB.QueryContext(ctx, query+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Mechanic{}
	for rows.Next() {
		m, err := scanMechanic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMechanic(row rowScanner) (*models.Mechanic, error) {
	var (
		m       models.Mechanic
		created string
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Specialty, &m.Active, &created); err != nil {
		return nil, err
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("mechanic %s created_at: %w", m.ID, err)
	}
	m.CreatedAt = t
	return &m, nil
}

// InsertUser inserts a new user and assigns its ID.
func (s *SQLiteStore) InsertUser(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users
		(id, username, email, role, first_name, last_name, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID.Hex(), u.Username, u.Email, string(u.Role), u.FirstName, u.LastName, u.IsActive,
		formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert user %s: %w", u.Username, err)
	}
	return nil
}

// FindUserByID finds a user by hex id.
func (s *SQLiteStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT id, username, email, role, first_name, last_name, is_active, created_at, updated_at
		FROM users WHERE id=?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// FindUsers lists users matching the filter.
func (s *SQLiteStore) FindUsers(ctx context.Context, f UserFilter) ([]models.User, error) {
	query := `SELECT id, username, email, role, first_name, last_name, is_active, created_at, updated_at FROM users`
	var (
		where []string
		args  []any
	)
	if f.Role != "" {
		where = append(where, "role=?")
		args = append(args, string(f.Role))
	}
	if f.ActiveOnly {
		where = append(where, "is_active=1")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := s.DB.QueryContext(ctx, query+" ORDER BY username", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                models.User
		id, role         string
		created, updated string
	)
	if err := row.Scan(&id, &u.Username, &u.Email, &role, &u.FirstName, &u.LastName, &u.IsActive, &created, &updated); err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("user id %q: %w", id, err)
	}
	u.ID = oid
	u.Role = models.Role(role)
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &u, nil
}
