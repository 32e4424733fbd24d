package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockCalendar struct {
	mock.Mock
}

func (m *mockCalendar) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]models.Appointment, error) {
	args := m.Called(ctx, timeMin, timeMax)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Appointment), args.Error(1)
}

func (m *mockCalendar) InsertEvent(ctx context.Context, appt *models.Appointment) (*models.Appointment, error) {
	args := m.Called(ctx, appt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}

func (m *mockCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, n domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type countingNotifier struct {
	mu  sync.Mutex
	n   int
	err error
}

func (c *countingNotifier) Send(context.Context, domain.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.err
}

func (c *countingNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

type queuedNotification struct {
	EventID      string
	Notification domain.Notification
}

type fakeQueue struct {
	mu    sync.Mutex
	err   error
	items []queuedNotification
}

func (q *fakeQueue) EnqueueNotification(_ context.Context, eventID string, n domain.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, queuedNotification{EventID: eventID, Notification: n})
	return nil
}

// fakeCalendar is an in-memory provider that filters by window like the real API.
type fakeCalendar struct {
	mu     sync.Mutex
	seq    int
	events []models.Appointment
}

func (f *fakeCalendar) ListEvents(_ context.Context, timeMin, timeMax time.Time) ([]models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Appointment
	for _, e := range f.events {
		if e.EndTime.After(timeMin) && e.StartTime.Before(timeMax) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeCalendar) InsertEvent(_ context.Context, appt *models.Appointment) (*models.Appointment, error) {
	// Widen the window between list and insert.
	time.Sleep(time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	created := *appt
	created.ID = fmt.Sprintf("ev%d", f.seq)
	f.events = append(f.events, created)
	return &created, nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.events {
		if e.ID == eventID {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return domain.ErrProvider
}

func (f *fakeCalendar) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type recordedEvents struct {
	mu    sync.Mutex
	types []string
}

func recordAll(bus *events.EventBus) *recordedEvents {
	rec := &recordedEvents{}
	for _, t := range []string{events.EventBookingCreated, events.EventBookingCanceled, events.EventBookingUnnotified} {
		bus.Subscribe(t, func(e *events.Event) error {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.types = append(rec.types, e.Type)
			return nil
		})
	}
	return rec
}

func (r *recordedEvents) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}
