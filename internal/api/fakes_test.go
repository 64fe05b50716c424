package api

import (
	"context"
	"sort"
	"time"

	"github.com/tkteam/meeting-assistant/internal/storage"
)

// In-memory stores backing handler tests.

type fakeUserStore struct {
	users  map[int64]storage.User
	nextID int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[int64]storage.User{}}
}

func (f *fakeUserStore) CreateUser(_ context.Context, username, passwordHash, role string) (*storage.User, error) {
	f.nextID++
	u := storage.User{
		ID:           f.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	f.users[u.ID] = u
	return &u, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id int64) (*storage.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUserStore) GetUserByUsername(_ context.Context, username string) (*storage.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeUserStore) ListUsers(_ context.Context) ([]storage.User, error) {
	out := make([]storage.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeMeetingStore struct {
	meetings map[int64]storage.Meeting
	nextID   int64
}

func newFakeMeetingStore() *fakeMeetingStore {
	return &fakeMeetingStore{meetings: map[int64]storage.Meeting{}}
}

func (f *fakeMeetingStore) CreateMeeting(_ context.Context, topic string, meetingDate time.Time, createdBy *int64) (*storage.Meeting, error) {
	f.nextID++
	m := storage.Meeting{
		ID:          f.nextID,
		Topic:       topic,
		MeetingDate: meetingDate,
		CreatedByID: createdBy,
		CreatedAt:   time.Now().UTC(),
	}
	f.meetings[m.ID] = m
	return &m, nil
}

func (f *fakeMeetingStore) GetMeeting(_ context.Context, id int64) (*storage.Meeting, error) {
	m, ok := f.meetings[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &m, nil
}

func (f *fakeMeetingStore) ListMeetings(_ context.Context) ([]storage.Meeting, error) {
	out := make([]storage.Meeting, 0, len(f.meetings))
	for _, m := range f.meetings {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeActionItemStore struct {
	items  map[int64]storage.ActionItem
	nextID int64
}

func newFakeActionItemStore() *fakeActionItemStore {
	return &fakeActionItemStore{items: map[int64]storage.ActionItem{}}
}

func (f *fakeActionItemStore) CreateActionItem(_ context.Context, item storage.NewActionItem) (*storage.ActionItem, error) {
	f.nextID++
	a := storage.ActionItem{
		ID:        f.nextID,
		MeetingID: item.MeetingID,
		Item:      item.Item,
		Action:    item.Action,
		OwnerID:   item.OwnerID,
		DueDate:   item.DueDate,
		Status:    item.Status,
		CreatedAt: time.Now().UTC(),
	}
	f.items[a.ID] = a
	return &a, nil
}

func (f *fakeActionItemStore) GetActionItem(_ context.Context, id int64) (*storage.ActionItem, error) {
	a, ok := f.items[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &a, nil
}

func (f *fakeActionItemStore) ListActionItemsByMeeting(_ context.Context, meetingID int64) ([]storage.ActionItem, error) {
	out := []storage.ActionItem{}
	for _, a := range f.items {
		if a.MeetingID == meetingID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeActionItemStore) UpdateActionItem(_ context.Context, item *storage.ActionItem) error {
	if _, ok := f.items[item.ID]; !ok {
		return storage.ErrNotFound
	}
	f.items[item.ID] = *item
	return nil
}

func (f *fakeActionItemStore) DeleteActionItem(_ context.Context, id int64) error {
	if _, ok := f.items[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

var (
	_ storage.UserStore       = (*fakeUserStore)(nil)
	_ storage.MeetingStore    = (*fakeMeetingStore)(nil)
	_ storage.ActionItemStore = (*fakeActionItemStore)(nil)
)
