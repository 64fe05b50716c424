package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}

// PostgresStore implements the user, meeting and action-item stores on one
// database handle.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var (
	_ UserStore       = (*PostgresStore)(nil)
	_ MeetingStore    = (*PostgresStore)(nil)
	_ ActionItemStore = (*PostgresStore)(nil)
)

// --- users ---

func (s *PostgresStore) CreateUser(ctx context.Context, username, passwordHash, role string) (*User, error) {
	u := User{Username: username, PasswordHash: passwordHash, Role: role}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO ms_users (username, password_hash, role)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		username, passwordHash, role,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at
		 FROM ms_users WHERE id = $1`, id))
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at
		 FROM ms_users WHERE username = $1`, username))
}

func (s *PostgresStore) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, password_hash, role, created_at
		 FROM ms_users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- meetings ---

func (s *PostgresStore) CreateMeeting(ctx context.Context, topic string, meetingDate time.Time, createdBy *int64) (*Meeting, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO ms_meetings (topic, meeting_date, created_by_id)
		 VALUES ($1, $2, $3) RETURNING id`,
		topic, meetingDate, createdBy,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create meeting: %w", err)
	}
	return s.GetMeeting(ctx, id)
}

const meetingQuery = `
	SELECT m.id, m.topic, m.meeting_date, m.created_by_id, u.username, m.created_at,
	       (SELECT COUNT(*) FROM ms_action_items a WHERE a.meeting_id = m.id)
	FROM ms_meetings m
	LEFT JOIN ms_users u ON u.id = m.created_by_id`

func (s *PostgresStore) GetMeeting(ctx context.Context, id int64) (*Meeting, error) {
	var m Meeting
	err := s.db.QueryRowContext(ctx, meetingQuery+` WHERE m.id = $1`, id).Scan(
		&m.ID, &m.Topic, &m.MeetingDate, &m.CreatedByID, &m.CreatorUsername,
		&m.CreatedAt, &m.ActionItemCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get meeting: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) ListMeetings(ctx context.Context) ([]Meeting, error) {
	rows, err := s.db.QueryContext(ctx, meetingQuery+` ORDER BY m.meeting_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []Meeting
	for rows.Next() {
		var m Meeting
		if err := rows.Scan(&m.ID, &m.Topic, &m.MeetingDate, &m.CreatedByID,
			&m.CreatorUsername, &m.CreatedAt, &m.ActionItemCount); err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// --- action items ---

func (s *PostgresStore) CreateActionItem(ctx context.Context, item NewActionItem) (*ActionItem, error) {
	status := item.Status
	if status == "" {
		status = "pending"
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO ms_action_items (meeting_id, item, action, owner_id, due_date, status)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		item.MeetingID, item.Item, item.Action, item.OwnerID, item.DueDate, status,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create action item: %w", err)
	}
	return s.GetActionItem(ctx, id)
}

const actionItemQuery = `
	SELECT a.id, a.meeting_id, m.topic, a.item, a.action, a.owner_id, u.username,
	       a.due_date, a.status, a.created_at
	FROM ms_action_items a
	LEFT JOIN ms_meetings m ON m.id = a.meeting_id
	LEFT JOIN ms_users u ON u.id = a.owner_id`

func (s *PostgresStore) GetActionItem(ctx context.Context, id int64) (*ActionItem, error) {
	var a ActionItem
	err := s.db.QueryRowContext(ctx, actionItemQuery+` WHERE a.id = $1`, id).Scan(
		&a.ID, &a.MeetingID, &a.MeetingTopic, &a.Item, &a.Action, &a.OwnerID,
		&a.OwnerName, &a.DueDate, &a.Status, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get action item: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) ListActionItemsByMeeting(ctx context.Context, meetingID int64) ([]ActionItem, error) {
	rows, err := s.db.QueryContext(ctx, actionItemQuery+` WHERE a.meeting_id = $1 ORDER BY a.id`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list action items: %w", err)
	}
	defer rows.Close()

	var items []ActionItem
	for rows.Next() {
		var a ActionItem
		if err := rows.Scan(&a.ID, &a.MeetingID, &a.MeetingTopic, &a.Item, &a.Action,
			&a.OwnerID, &a.OwnerName, &a.DueDate, &a.Status, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (s *PostgresStore) UpdateActionItem(ctx context.Context, item *ActionItem) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE ms_action_items
		 SET item = $1, action = $2, owner_id = $3, due_date = $4, status = $5
		 WHERE id = $6`,
		item.Item, item.Action, item.OwnerID, item.DueDate, item.Status, item.ID)
	if err != nil {
		return fmt.Errorf("update action item: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteActionItem(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ms_action_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete action item: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
