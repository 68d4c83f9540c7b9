package waitlist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling-engine/internal/config"
)

// passthroughLocker runs the critical section inline.
type passthroughLocker struct {
	calls int
}

func (l *passthroughLocker) WithProviderLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	l.calls++
	return fn(ctx)
}

type recordedEvent struct {
	eventType string
	payload   map[string]any
}

// memWaitlistRepo mirrors the conditional-update semantics of the Postgres
// repository, including per-provider monotonic positions.
type memWaitlistRepo struct {
	mu        sync.Mutex
	entries   map[uuid.UUID]*Entry
	positions map[uuid.UUID]int64
	events    []recordedEvent
}

func newMemWaitlistRepo() *memWaitlistRepo {
	return &memWaitlistRepo{
		entries:   make(map[uuid.UUID]*Entry),
		positions: make(map[uuid.UUID]int64),
	}
}

func (r *memWaitlistRepo) Create(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[e.ProviderID]++
	e.Position = r.positions[e.ProviderID]
	cp := *e
	r.entries[e.ID] = &cp
	return nil
}

func (r *memWaitlistRepo) GetByID(_ context.Context, id uuid.UUID) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memWaitlistRepo) ListByProvider(_ context.Context, providerID uuid.UUID) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if e.ProviderID == providerID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *memWaitlistRepo) ActiveByPosition(_ context.Context, providerID uuid.UUID, limit int) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if e.ProviderID == providerID && e.Status == StatusActive {
			out = append(out, *e)
		}
	}
	// insertion sort by position, the set is tiny
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Position < out[j-1].Position; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memWaitlistRepo) MarkOffered(_ context.Context, id uuid.UUID, slotStart, deadline time.Time) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Status != StatusActive {
		return nil, ErrEntryNotFound
	}
	e.Status = StatusOffered
	e.OfferedSlotStart = &slotStart
	e.OfferExpiresAt = &deadline
	cp := *e
	return &cp, nil
}

func (r *memWaitlistRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to EntryStatus) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Status != from {
		return nil, ErrEntryNotFound
	}
	e.Status = to
	cp := *e
	return &cp, nil
}

func (r *memWaitlistRepo) ReleaseExpiredOffers(_ context.Context, providerID uuid.UUID, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.ProviderID == providerID && e.OfferExpired(now) {
			e.Status = StatusActive
			e.OfferedSlotStart = nil
			e.OfferExpiresAt = nil
			n++
		}
	}
	return n, nil
}

func (r *memWaitlistRepo) InsertEvent(_ context.Context, eventType string, payload map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{eventType: eventType, payload: payload})
	return nil
}

type waitlistFixture struct {
	svc      *Service
	repo     *memWaitlistRepo
	locker   *passthroughLocker
	provider uuid.UUID
	now      time.Time
}

func setupWaitlist(t *testing.T) *waitlistFixture {
	t.Helper()

	f := &waitlistFixture{
		repo:     newMemWaitlistRepo(),
		locker:   &passthroughLocker{},
		provider: uuid.New(),
		now:      time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.repo, f.locker, config.Config{OfferTTL: 30 * time.Minute}, zap.NewNop())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *waitlistFixture) addEntry(t *testing.T, appointmentType string, windows []TimeWindow) *Entry {
	t.Helper()
	entry, err := f.svc.Add(context.Background(), AddRequest{
		PatientID:       uuid.New(),
		ProviderID:      f.provider,
		AppointmentType: appointmentType,
		PreferredFrom:   f.now,
		PreferredUntil:  f.now.Add(14 * 24 * time.Hour),
		Windows:         windows,
	})
	require.NoError(t, err)
	return entry
}

func TestAdd_AssignsMonotonicPositions(t *testing.T) {
	f := setupWaitlist(t)

	first := f.addEntry(t, "consultation", nil)
	second := f.addEntry(t, "consultation", nil)
	third := f.addEntry(t, "follow_up", nil)

	assert.Equal(t, int64(1), first.Position)
	assert.Equal(t, int64(2), second.Position)
	assert.Equal(t, int64(3), third.Position)
	assert.Equal(t, StatusActive, first.Status)
	assert.Equal(t, UrgencyRoutine, first.Urgency, "urgency defaults to routine")
}

func TestAdd_Validation(t *testing.T) {
	f := setupWaitlist(t)

	_, err := f.svc.Add(context.Background(), AddRequest{
		ProviderID:      f.provider,
		AppointmentType: "consultation",
		PreferredFrom:   f.now,
		PreferredUntil:  f.now.Add(time.Hour),
	})
	assert.Error(t, err, "patient is required")

	_, err = f.svc.Add(context.Background(), AddRequest{
		PatientID:       uuid.New(),
		ProviderID:      f.provider,
		AppointmentType: "consultation",
		PreferredFrom:   f.now.Add(time.Hour),
		PreferredUntil:  f.now,
	})
	assert.Error(t, err, "empty preferred range is rejected")
}

func TestOfferForRelease_OffersLowestMatchingPosition(t *testing.T) {
	f := setupWaitlist(t)
	mismatch := f.addEntry(t, "surgery", nil)
	match := f.addEntry(t, "consultation", nil)
	later := f.addEntry(t, "consultation", nil)

	slotStart := f.now.Add(48 * time.Hour)
	err := f.svc.OfferForRelease(context.Background(), f.provider, slotStart, 30, "consultation")
	require.NoError(t, err)
	assert.Equal(t, 1, f.locker.calls)

	offered, err := f.repo.GetByID(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOffered, offered.Status)
	require.NotNil(t, offered.OfferedSlotStart)
	assert.Equal(t, slotStart, *offered.OfferedSlotStart)
	require.NotNil(t, offered.OfferExpiresAt)
	assert.Equal(t, f.now.Add(30*time.Minute), *offered.OfferExpiresAt)

	// Only one entry gets the offer.
	for _, id := range []uuid.UUID{mismatch.ID, later.ID} {
		e, err := f.repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, e.Status)
	}

	require.Len(t, f.repo.events, 4) // 3 created + 1 offered
	assert.Equal(t, EventSlotOffered, f.repo.events[3].eventType)
}

func TestOfferForRelease_ScanDepthCapsCandidates(t *testing.T) {
	f := setupWaitlist(t)
	for i := 0; i < ScanDepth; i++ {
		f.addEntry(t, "surgery", nil)
	}
	deep := f.addEntry(t, "consultation", nil)

	err := f.svc.OfferForRelease(context.Background(), f.provider, f.now.Add(48*time.Hour), 30, "consultation")
	require.NoError(t, err)

	e, err := f.repo.GetByID(context.Background(), deep.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, e.Status, "entries beyond the scan depth are not offered")
}

func TestOfferForRelease_ReclaimsExpiredOffersFirst(t *testing.T) {
	f := setupWaitlist(t)
	entry := f.addEntry(t, "consultation", nil)

	firstSlot := f.now.Add(24 * time.Hour)
	require.NoError(t, f.svc.OfferForRelease(context.Background(), f.provider, firstSlot, 30, "consultation"))

	// The patient never responds; the deadline passes.
	f.now = f.now.Add(31 * time.Minute)

	secondSlot := f.now.Add(24 * time.Hour)
	require.NoError(t, f.svc.OfferForRelease(context.Background(), f.provider, secondSlot, 30, "consultation"))

	e, err := f.repo.GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOffered, e.Status)
	require.NotNil(t, e.OfferedSlotStart)
	assert.Equal(t, secondSlot, *e.OfferedSlotStart, "expired offer rejoins the pool and may be offered again")
}

func TestOfferForRelease_NoMatchLeavesWaitlistUntouched(t *testing.T) {
	f := setupWaitlist(t)
	entry := f.addEntry(t, "surgery", nil)

	err := f.svc.OfferForRelease(context.Background(), f.provider, f.now.Add(48*time.Hour), 30, "consultation")
	require.NoError(t, err)

	e, err := f.repo.GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, e.Status)
}

func TestRespond_AcceptAndDecline(t *testing.T) {
	f := setupWaitlist(t)

	accepter := f.addEntry(t, "consultation", nil)
	require.NoError(t, f.svc.OfferForRelease(context.Background(), f.provider, f.now.Add(24*time.Hour), 30, "consultation"))

	updated, err := f.svc.Respond(context.Background(), accepter.ID, true)
	require.NoError(t, err)
	assert.Equal(t, StatusBooked, updated.Status)

	decliner := f.addEntry(t, "consultation", nil)
	require.NoError(t, f.svc.OfferForRelease(context.Background(), f.provider, f.now.Add(24*time.Hour), 30, "consultation"))

	updated, err = f.svc.Respond(context.Background(), decliner.ID, false)
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, updated.Status)
}

func TestRespond_WithoutOfferRejected(t *testing.T) {
	f := setupWaitlist(t)
	entry := f.addEntry(t, "consultation", nil)

	_, err := f.svc.Respond(context.Background(), entry.ID, true)
	assert.ErrorIs(t, err, ErrNotOffered)
}

func TestRespond_ExpiredOfferReleased(t *testing.T) {
	f := setupWaitlist(t)
	entry := f.addEntry(t, "consultation", nil)
	require.NoError(t, f.svc.OfferForRelease(context.Background(), f.provider, f.now.Add(24*time.Hour), 30, "consultation"))

	f.now = f.now.Add(31 * time.Minute)

	_, err := f.svc.Respond(context.Background(), entry.ID, true)
	assert.ErrorIs(t, err, ErrOfferExpired)

	e, err := f.repo.GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, e.Status, "late response puts the entry back in the pool")
}

func TestExpire(t *testing.T) {
	f := setupWaitlist(t)
	entry := f.addEntry(t, "consultation", nil)

	updated, err := f.svc.Expire(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, updated.Status)
}

func TestEntryMatches(t *testing.T) {
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	entry := &Entry{
		AppointmentType: "consultation",
		PreferredFrom:   base,
		PreferredUntil:  base.AddDate(0, 0, 7),
	}

	t.Run("type must match exactly", func(t *testing.T) {
		assert.True(t, entry.Matches(base.Add(24*time.Hour), "consultation"))
		assert.False(t, entry.Matches(base.Add(24*time.Hour), "surgery"))
	})

	t.Run("preferred range bounds", func(t *testing.T) {
		assert.True(t, entry.Matches(base, "consultation"))
		assert.True(t, entry.Matches(base.AddDate(0, 0, 7), "consultation"))
		assert.False(t, entry.Matches(base.Add(-time.Minute), "consultation"))
		assert.False(t, entry.Matches(base.AddDate(0, 0, 7).Add(time.Minute), "consultation"))
	})

	t.Run("time of day windows", func(t *testing.T) {
		windowed := *entry
		windowed.Windows = []TimeWindow{{StartMinute: 540, EndMinute: 720}} // 09:00-12:00

		assert.True(t, windowed.Matches(base.Add(24*time.Hour).Add(9*time.Hour), "consultation"))
		assert.True(t, windowed.Matches(base.Add(24*time.Hour).Add(12*time.Hour), "consultation"))
		assert.False(t, windowed.Matches(base.Add(24*time.Hour).Add(13*time.Hour), "consultation"))
		assert.False(t, windowed.Matches(base.Add(24*time.Hour).Add(8*time.Hour+59*time.Minute), "consultation"))
	})
}
