package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

// User is an account able to log in. The password hash never leaves the
// backend.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Meeting groups action items. CreatorUsername and ActionItemCount are
// derived at query time.
type Meeting struct {
	ID              int64     `json:"id"`
	Topic           string    `json:"topic"`
	MeetingDate     time.Time `json:"meeting_date"`
	CreatedByID     *int64    `json:"created_by_id"`
	CreatorUsername *string   `json:"creator_username"`
	CreatedAt       time.Time `json:"created_at"`
	ActionItemCount int       `json:"action_item_count"`
}

// ActionItem is one task agreed in a meeting. MeetingTopic and OwnerName
// are derived at query time.
type ActionItem struct {
	ID           int64      `json:"id"`
	MeetingID    int64      `json:"meeting_id"`
	MeetingTopic *string    `json:"meeting_topic"`
	Item         *string    `json:"item"`
	Action       string     `json:"action"`
	OwnerID      *int64     `json:"owner_id"`
	OwnerName    *string    `json:"owner_name"`
	DueDate      *time.Time `json:"due_date"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewActionItem is the insert payload for an action item.
type NewActionItem struct {
	MeetingID int64
	Item      *string
	Action    string
	OwnerID   *int64
	DueDate   *time.Time
	Status    string
}

type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash, role string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

type MeetingStore interface {
	CreateMeeting(ctx context.Context, topic string, meetingDate time.Time, createdBy *int64) (*Meeting, error)
	GetMeeting(ctx context.Context, id int64) (*Meeting, error)
	ListMeetings(ctx context.Context) ([]Meeting, error)
}

type ActionItemStore interface {
	CreateActionItem(ctx context.Context, item NewActionItem) (*ActionItem, error)
	GetActionItem(ctx context.Context, id int64) (*ActionItem, error)
	ListActionItemsByMeeting(ctx context.Context, meetingID int64) ([]ActionItem, error)
	UpdateActionItem(ctx context.Context, item *ActionItem) error
	DeleteActionItem(ctx context.Context, id int64) error
}
