package events

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magic-amatlan/backend/internal/storage"
	"github.com/magic-amatlan/backend/internal/storage/models"
)

var (
	admin = Actor{UserID: "admin-1", UserRole: RoleAdmin}
	guest = Actor{UserID: "user-7", UserRole: "USER"}
	now   = time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)
)

type changeLog struct {
	mu         sync.Mutex
	changes    []models.EventChange
	registered []string
}

func (l *changeLog) AttendeeRegistered(_ models.Event, a models.Attendee) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registered = append(l.registered, a.UserID)
}

func (l *changeLog) Registered() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.registered...)
}

func (l *changeLog) EventChanged(c models.EventChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
}

func (l *changeLog) Kinds() []models.ChangeKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	kinds := make([]models.ChangeKind, len(l.changes))
	for i, c := range l.changes {
		kinds[i] = c.Kind
	}
	return kinds
}

func newService(t *testing.T) (*Service, *changeLog) {
	t.Helper()
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.RunMigrations(context.Background(), db, nil))

	log := &changeLog{}
	svc := NewService(
		storage.NewEventRepository(db),
		storage.NewAttendeeRepository(db),
		zaptest.NewLogger(t),
		WithClock(func() time.Time { return now }),
		WithObserver(log),
	)
	return svc, log
}

func ptr[T any](v T) *T { return &v }

func validInput(title string, start time.Time) CreateInput {
	end := start.Add(4 * time.Hour)
	return CreateInput{
		Title:       title,
		Description: "An evening of song and cacao",
		Category:    "ceremony",
		Location:    "Amatlán de Quetzalcóatl",
		StartDate:   &start,
		EndDate:     &end,
		Capacity:    2,
		Price:       120000,
	}
}

func TestCreate_Success(t *testing.T) {
	svc, log := newService(t)

	e, err := svc.Create(context.Background(), admin, validInput("Ceremonia de Luna Llena", now.AddDate(0, 0, 10)))
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "ceremonia-de-luna-llena", e.Slug)
	assert.Equal(t, models.CategoryCeremony, e.Category)
	assert.Equal(t, models.DefaultCurrency, e.Currency)
	assert.Equal(t, "admin-1", e.OrganizerID)
	assert.True(t, e.Active)
	assert.Equal(t, []models.ChangeKind{models.EventCreated}, log.Kinds())
}

func TestCreate_Authorization(t *testing.T) {
	svc, log := newService(t)
	in := validInput("Temazcal", now.AddDate(0, 0, 3))

	_, err := svc.Create(context.Background(), Actor{UserRole: RoleAdmin}, in)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Create(context.Background(), guest, in)
	assert.ErrorIs(t, err, ErrForbidden)

	assert.Empty(t, log.Kinds())
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newService(t)
	start := now.AddDate(0, 0, 3)

	tests := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"missing title", func(in *CreateInput) { in.Title = "" }, "title"},
		{"short title", func(in *CreateInput) { in.Title = "ab" }, "title"},
		{"bad category", func(in *CreateInput) { in.Category = "PARTY" }, "category"},
		{"bad slug", func(in *CreateInput) { in.Slug = "Not A Slug" }, "slug"},
		{"negative capacity", func(in *CreateInput) { in.Capacity = -1 }, "capacity"},
		{"negative price", func(in *CreateInput) { in.Price = -5 }, "price"},
		{"bad currency", func(in *CreateInput) { in.Currency = "pesos" }, "currency"},
		{"bad image url", func(in *CreateInput) { in.ImageURL = "not a url" }, "imageUrl"},
		{"missing start", func(in *CreateInput) { in.StartDate = nil }, "startDate"},
		{"end before start", func(in *CreateInput) { in.EndDate = ptr(start.Add(-time.Hour)) }, "endDate"},
		{"end equals start", func(in *CreateInput) { in.EndDate = ptr(start) }, "endDate"},
		{"underivable slug", func(in *CreateInput) { in.Title = "¡¡¡!!!" }, "slug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput("Sound bath", start)
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), admin, in)
			require.ErrorIs(t, err, ErrValidation)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}

func TestCreate_DuplicateSlug(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, admin, validInput("Sound bath", now.AddDate(0, 0, 3)))
	require.NoError(t, err)

	_, err = svc.Create(ctx, admin, validInput("Sound Bath!", now.AddDate(0, 0, 5)))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGet_WithAttendees(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, admin, validInput("Cacao circle", now.AddDate(0, 0, 3)))
	require.NoError(t, err)

	a, err := svc.Register(ctx, e.ID, RegisterInput{UserID: "u1", Name: "Ana", Email: "Ana@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", a.Email)
	_, err = svc.Register(ctx, e.ID, RegisterInput{UserID: "u2", Name: "Luis", Email: "luis@example.com"})
	require.NoError(t, err)

	got, err := svc.SetAttendeeStatus(ctx, e.ID, a.ID, admin, StatusInput{Status: "confirmed"})
	require.NoError(t, err)
	assert.Len(t, got.Attendees, 2)
	assert.Equal(t, 1, got.ConfirmedCount)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_Contract(t *testing.T) {
	svc, log := newService(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, admin, validInput("Full moon temazcal", now.AddDate(0, 0, 3)))
	require.NoError(t, err)
	other, err := svc.Create(ctx, admin, validInput("New moon meditation", now.AddDate(0, 0, 9)))
	require.NoError(t, err)

	_, err = svc.Update(ctx, e.ID, Actor{}, UpdateInput{Title: ptr("Changed")})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Update(ctx, e.ID, guest, UpdateInput{Title: ptr("Changed")})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Update(ctx, e.ID, admin, UpdateInput{Category: ptr("PARTY")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Update(ctx, "missing", admin, UpdateInput{Title: ptr("Changed")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Update(ctx, e.ID, admin, UpdateInput{EndDate: ptr(e.StartDate.Add(-time.Minute))})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Update(ctx, e.ID, admin, UpdateInput{Slug: ptr(other.Slug)})
	assert.ErrorIs(t, err, ErrConflict)

	updated, err := svc.Update(ctx, e.ID, admin, UpdateInput{
		Title:    ptr("Temazcal de Luna Llena"),
		Slug:     ptr("temazcal-luna-llena"),
		Capacity: ptr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, "Temazcal de Luna Llena", updated.Title)
	assert.Equal(t, "temazcal-luna-llena", updated.Slug)
	assert.Zero(t, updated.Capacity)
	// Untouched fields survive a partial update.
	assert.Equal(t, int64(120000), updated.Price)

	// Keeping the event's own slug is not a conflict.
	_, err = svc.Update(ctx, e.ID, admin, UpdateInput{Slug: ptr("temazcal-luna-llena")})
	require.NoError(t, err)

	assert.Equal(t, []models.ChangeKind{
		models.EventCreated, models.EventCreated, models.EventUpdated, models.EventUpdated,
	}, log.Kinds())
}

func TestDelete_SoftDeletes(t *testing.T) {
	svc, log := newService(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, admin, validInput("Herbal walk", now.AddDate(0, 0, 3)))
	require.NoError(t, err)

	_, err = svc.Delete(ctx, e.ID, Actor{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.Delete(ctx, e.ID, guest)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Delete(ctx, "missing", admin)
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err := svc.Delete(ctx, e.ID, admin)
	require.NoError(t, err)
	assert.False(t, deleted.Active)

	list, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := svc.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	// A second delete succeeds without another notification.
	_, err = svc.Delete(ctx, e.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, []models.ChangeKind{models.EventCreated, models.EventDeleted}, log.Kinds())
}

func TestRegister_Rules(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, admin, validInput("Drum circle", now.AddDate(0, 0, 3)))
	require.NoError(t, err)

	_, err = svc.Register(ctx, e.ID, RegisterInput{UserID: "u1", Name: "Ana", Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Register(ctx, "missing", RegisterInput{UserID: "u1", Name: "Ana", Email: "ana@example.com"})
	assert.ErrorIs(t, err, ErrNotFound)

	a, err := svc.Register(ctx, e.ID, RegisterInput{UserID: "u1", Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.AttendeePending, a.Status)

	_, err = svc.Register(ctx, e.ID, RegisterInput{UserID: "u1", Name: "Ana", Email: "ana@example.com"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Register(ctx, e.ID, RegisterInput{UserID: "u2", Name: "Luis", Email: "luis@example.com"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, e.ID, RegisterInput{UserID: "u3", Name: "Eva", Email: "eva@example.com"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Delete(ctx, e.ID, admin)
	require.NoError(t, err)
	_, err = svc.Register(ctx, e.ID, RegisterInput{UserID: "u4", Name: "Rosa", Email: "rosa@example.com"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegister_EndedEvent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, admin, validInput("Past ceremony", now.AddDate(0, 0, -3)))
	require.NoError(t, err)

	_, err = svc.Register(ctx, e.ID, RegisterInput{UserID: "u1", Name: "Ana", Email: "ana@example.com"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSetAttendeeStatus_Errors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, admin, validInput("Yoga retreat", now.AddDate(0, 0, 3)))
	require.NoError(t, err)

	_, err = svc.SetAttendeeStatus(ctx, e.ID, "nobody", guest, StatusInput{Status: "CONFIRMED"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.SetAttendeeStatus(ctx, e.ID, "nobody", admin, StatusInput{Status: "MAYBE"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.SetAttendeeStatus(ctx, e.ID, "nobody", admin, StatusInput{Status: "CONFIRMED"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegister_NotifiesObservers(t *testing.T) {
	svc, log := newService(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, admin, validInput("Sound bath", now.AddDate(0, 0, 3)))
	require.NoError(t, err)

	_, err = svc.Register(ctx, e.ID, RegisterInput{UserID: "u1", Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, e.ID, RegisterInput{UserID: "u1", Name: "Ana", Email: "ana@example.com"})
	require.Error(t, err)

	assert.Equal(t, []string{"u1"}, log.Registered())
}

func TestSetAttendeeStatus_ReactivationRespectsCapacity(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	in := validInput("Cacao ceremony", now.AddDate(0, 0, 3))
	in.Capacity = 1
	e, err := svc.Create(ctx, admin, in)
	require.NoError(t, err)

	first, err := svc.Register(ctx, e.ID, RegisterInput{UserID: "u1", Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	_, err = svc.SetAttendeeStatus(ctx, e.ID, first.ID, admin, StatusInput{Status: "CANCELLED"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, e.ID, RegisterInput{UserID: "u2", Name: "Luis", Email: "luis@example.com"})
	require.NoError(t, err)

	_, err = svc.SetAttendeeStatus(ctx, e.ID, first.ID, admin, StatusInput{Status: "CONFIRMED"})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := svc.Get(ctx, e.ID)
	require.NoError(t, err)
	active := 0
	for _, a := range got.Attendees {
		if a.Status != models.AttendeeCancelled {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestRegister_AfterCancellation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, admin, validInput("Full moon walk", now.AddDate(0, 0, 3)))
	require.NoError(t, err)

	a, err := svc.Register(ctx, e.ID, RegisterInput{UserID: "u1", Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	_, err = svc.SetAttendeeStatus(ctx, e.ID, a.ID, admin, StatusInput{Status: "CANCELLED"})
	require.NoError(t, err)

	again, err := svc.Register(ctx, e.ID, RegisterInput{UserID: "u1", Name: "Ana María", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID)
	assert.Equal(t, models.AttendeePending, again.Status)

	got, err := svc.Get(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, got.Attendees, 1)
	assert.Equal(t, "Ana María", got.Attendees[0].Name)
}
