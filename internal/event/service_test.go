package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilstats/veil-analytics/internal/codec"
	"github.com/veilstats/veil-analytics/internal/origin"
	"go.uber.org/zap"
)

type fakeRepo struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (f *fakeRepo) Create(_ context.Context, e *Event) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeRepo) RecentWindow(context.Context, uuid.UUID, int) ([]*Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Event(nil), f.events...), nil
}

func (f *fakeRepo) ByDateRange(context.Context, uuid.UUID, time.Time, time.Time) ([]*Event, error) {
	return nil, nil
}

func (f *fakeRepo) DeleteByOrigin(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) CountByOrigin(context.Context, uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.events)), nil
}

type fakeAuth struct {
	origin *origin.Origin
	keyErr error
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*origin.Origin, error) {
	if f.origin == nil || token != f.origin.Token {
		return nil, origin.ErrUnknownToken
	}
	return f.origin, nil
}

func (f *fakeAuth) ActiveKey(_ context.Context, originID uuid.UUID) (*origin.EncryptionKey, error) {
	if f.keyErr != nil {
		return nil, f.keyErr
	}
	return &origin.EncryptionKey{ID: uuid.New(), OriginID: originID, IsActive: true}, nil
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []Notification
	err           error
}

func (r *recordingNotifier) EventAccepted(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifications)
}

func testOrigin() *origin.Origin {
	return &origin.Origin{
		ID:     uuid.New(),
		Domain: "example.com",
		Token:  "veil_test_token",
	}
}

func TestTrackEvent_Success(t *testing.T) {
	o := testOrigin()
	repo := &fakeRepo{}
	notifier := &recordingNotifier{}
	cdc := codec.NewJSONCodec()
	s := NewService(repo, &fakeAuth{origin: o}, cdc, notifier, zap.NewNop())

	e, err := s.TrackEvent(context.Background(), Collect{
		Token:      o.Token,
		OccurredAt: time.Now().UTC(),
		Page:       "/pricing",
		EventType:  TypePageview,
		Value:      1,
	})
	require.NoError(t, err)

	assert.Equal(t, o.ID, e.OriginID)
	assert.Equal(t, TypePageview, e.EventType)
	assert.Equal(t, 1.0, cdc.Decode(e.ValueBlob))

	require.Len(t, repo.events, 1)
	require.Equal(t, 1, notifier.count())
	assert.Equal(t, o.ID, notifier.notifications[0].OriginID)
}

func TestTrackEvent_UnknownToken(t *testing.T) {
	repo := &fakeRepo{}
	notifier := &recordingNotifier{}
	s := NewService(repo, &fakeAuth{origin: testOrigin()}, codec.NewJSONCodec(), notifier, zap.NewNop())

	_, err := s.TrackEvent(context.Background(), Collect{
		Token:      "veil_wrong",
		OccurredAt: time.Now().UTC(),
		Page:       "/",
		EventType:  TypePageview,
	})
	require.ErrorIs(t, err, origin.ErrUnknownToken)

	// Nothing persisted, nothing published.
	assert.Empty(t, repo.events)
	assert.Zero(t, notifier.count())
}

func TestTrackEvent_NoActiveKey(t *testing.T) {
	o := testOrigin()
	repo := &fakeRepo{}
	s := NewService(repo, &fakeAuth{origin: o, keyErr: origin.ErrNoActiveKey}, codec.NewJSONCodec(), &recordingNotifier{}, zap.NewNop())

	_, err := s.TrackEvent(context.Background(), Collect{
		Token:      o.Token,
		OccurredAt: time.Now().UTC(),
		Page:       "/",
		EventType:  TypePageview,
	})
	require.ErrorIs(t, err, origin.ErrNoActiveKey)
	assert.Empty(t, repo.events)
}

func TestTrackEvent_InvalidType(t *testing.T) {
	o := testOrigin()
	repo := &fakeRepo{}
	s := NewService(repo, &fakeAuth{origin: o}, codec.NewJSONCodec(), &recordingNotifier{}, zap.NewNop())

	_, err := s.TrackEvent(context.Background(), Collect{
		Token:      o.Token,
		OccurredAt: time.Now().UTC(),
		Page:       "/",
		EventType:  "clickstream",
	})
	require.ErrorIs(t, err, ErrInvalidEventType)
	assert.Empty(t, repo.events)
}

func TestTrackEvent_NotifierFailureDoesNotFailRequest(t *testing.T) {
	o := testOrigin()
	repo := &fakeRepo{}
	notifier := &recordingNotifier{err: assert.AnError}
	s := NewService(repo, &fakeAuth{origin: o}, codec.NewJSONCodec(), notifier, zap.NewNop())

	_, err := s.TrackEvent(context.Background(), Collect{
		Token:      o.Token,
		OccurredAt: time.Now().UTC(),
		Page:       "/",
		EventType:  TypeSession,
		Value:      1,
	})
	require.NoError(t, err)
	assert.Len(t, repo.events, 1)
}
