package positions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"LiveChart/internal/domain/models"
	pkghttp "LiveChart/pkg/http"
)

func TestRESTFeed_Positions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"symbol":"AAPL","side":"LONG","entryPrice":180.5,"openedAt":"2024-01-02T15:04:05Z"},
			{"symbol":"MSFT","side":"short","entryPrice":410,"openedAt":"1704207845000"}
		]`))
	}))
	defer srv.Close()

	feed := NewRESTFeed(pkghttp.NewClient(), srv.URL)
	got, err := feed.Positions(context.Background())
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2, got %d", len(got))
	}
	want := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	if got[0].Side != models.SideLong || !got[0].OpenedAt.Equal(want) || got[0].EntryPrice != 180.5 {
		t.Fatalf("unexpected %+v", got[0])
	}
	if got[1].Side != models.SideShort || !got[1].OpenedAt.Equal(want) {
		t.Fatalf("unexpected %+v", got[1])
	}
}

func TestRESTFeed_RejectsUnknownSide(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"symbol":"AAPL","side":"flat","entryPrice":1,"openedAt":"1704207845"}]`))
	}))
	defer srv.Close()

	if _, err := NewRESTFeed(pkghttp.NewClient(), srv.URL).Positions(context.Background()); err == nil {
		t.Fatalf("want error for unknown side")
	}
}

type stubFeed struct {
	positions []models.Position
	err       error
}

func (s stubFeed) Positions(ctx context.Context) ([]models.Position, error) {
	return s.positions, s.err
}

type recordingSink struct {
	mu    sync.Mutex
	calls [][]models.Position
}

func (r *recordingSink) SetPositions(p []models.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, p)
}

func TestPoller_PollPushesToSink(t *testing.T) {
	pos := []models.Position{{Symbol: "AAPL", Side: models.SideLong, EntryPrice: 1, OpenedAt: time.Unix(60, 0)}}
	sink := &recordingSink{}
	p, err := NewPoller(stubFeed{positions: pos}, sink, "@every 1h", nil)
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}
	p.Start()
	defer p.Stop(context.Background())

	if len(sink.calls) != 1 || len(sink.calls[0]) != 1 {
		t.Fatalf("want one push on start, got %v", sink.calls)
	}
}

func TestPoller_FailedPollKeepsPrevious(t *testing.T) {
	sink := &recordingSink{}
	p, err := NewPoller(stubFeed{err: errors.New("down")}, sink, "@every 1h", nil)
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}
	p.Poll()
	if len(sink.calls) != 0 || p.Runs() != 1 {
		t.Fatalf("failed poll should not push; calls=%d runs=%d", len(sink.calls), p.Runs())
	}
}

func TestNewPoller_BadSchedule(t *testing.T) {
	if _, err := NewPoller(stubFeed{}, &recordingSink{}, "not a schedule", nil); err == nil {
		t.Fatalf("want schedule error")
	}
}
