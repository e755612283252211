package telemetry

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"authcore/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.AuthEvent
	ctxErrs []error
	emitErr error
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.AuthEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	return m.emitErr
}

func (m *mockEventEmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestEmitAsync_NilEmitterOrEvent(t *testing.T) {
	require.NotPanics(t, func() { EmitAsync(nil, &domain.AuthEvent{}, zerolog.Nop()) })

	emitter := &mockEventEmitter{}
	EmitAsync(emitter, nil, zerolog.Nop())
	time.Sleep(10 * time.Millisecond)
	require.Zero(t, emitter.count())
}

func TestEmitAsync_Emits(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitAsync(emitter, &domain.AuthEvent{Type: domain.EventLogout, IdentityID: "id-1"}, zerolog.Nop())

	require.Eventually(t, func() bool { return emitter.count() == 1 }, time.Second, 5*time.Millisecond)
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	require.Equal(t, "id-1", emitter.events[0].IdentityID)
	require.NoError(t, emitter.ctxErrs[0], "emit context must not inherit request cancellation")
}

func TestEmitAsync_ErrorIsLogged(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	log := zerolog.New(zerolog.SyncWriter(&lockedWriter{mu: &mu, w: &buf}))
	emitter := &mockEventEmitter{emitErr: errors.New("broker down")}

	EmitAsync(emitter, &domain.AuthEvent{Type: domain.EventLoginFailed}, log)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return bytes.Contains(buf.Bytes(), []byte("broker down"))
	}, time.Second, 5*time.Millisecond)
}

func TestEmitAsync_ConcurrentAccess(t *testing.T) {
	emitter := &mockEventEmitter{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(emitter, &domain.AuthEvent{Type: domain.EventSignup}, zerolog.Nop())
		}()
	}
	wg.Wait()
	require.Eventually(t, func() bool { return emitter.count() == 10 }, time.Second, 5*time.Millisecond)
}

func TestMultiEmitter(t *testing.T) {
	a := &mockEventEmitter{}
	b := &mockEventEmitter{emitErr: errors.New("b failed")}
	m := MultiEmitter{a, nil, b}

	err := m.Emit(context.Background(), &domain.AuthEvent{})
	require.ErrorContains(t, err, "b failed")
	require.Equal(t, 1, a.count())
	require.Equal(t, 1, b.count())
	require.NoError(t, MultiEmitter{}.Emit(context.Background(), &domain.AuthEvent{}))
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
