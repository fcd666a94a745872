package reconcile

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/evgray/chatglass/internal/capture"
	"github.com/evgray/chatglass/internal/chats"
	"github.com/evgray/chatglass/internal/domain"
	"github.com/evgray/chatglass/internal/recognize"
	"github.com/google/uuid"
)

// fakeSource serves a fixed frame and window set.
type fakeSource struct {
	windows    []capture.Window
	captureErr error
	detectErr  error
}

func (f *fakeSource) DetectWindows(ctx context.Context) ([]capture.Window, error) {
	return f.windows, f.detectErr
}

func (f *fakeSource) CaptureFrame(ctx context.Context) (image.Image, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return image.NewRGBA(image.Rect(0, 0, 1920, 1080)), nil
}

func (f *fakeSource) Crop(frame image.Image, region image.Rectangle) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy())), nil
}

// fakeRecognizer returns per-window candidate batches keyed by crop
// size, or a per-call scripted sequence.
type fakeRecognizer struct {
	mu      sync.Mutex
	batches map[string][]recognize.Candidate // keyed by crop bounds string
	failFor map[string]error
	calls   int
	block   chan struct{} // when set, Extract blocks until closed
}

func (f *fakeRecognizer) Extract(ctx context.Context, crop image.Image) ([]recognize.Candidate, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	key := crop.Bounds().String()
	err := f.failFor[key]
	batch := f.batches[key]
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// fakeRepo records saves and can be told to fail.
type fakeRepo struct {
	mu      sync.Mutex
	saves   int
	saveErr error
	last    []domain.ChatRecord
}

func (f *fakeRepo) LoadChats(ctx context.Context) ([]domain.ChatRecord, error) { return nil, nil }

func (f *fakeRepo) SaveChats(ctx context.Context, records []domain.ChatRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.last = records
	return f.saveErr
}

func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

// window builds a window whose region doubles as the recognizer key.
func window(name string, width int) capture.Window {
	return capture.Window{Name: name, Region: image.Rect(0, 0, width, 100)}
}

func cropKey(width int) string {
	return image.Rect(0, 0, width, 100).String()
}

func cands(sender string, texts ...string) []recognize.Candidate {
	out := make([]recognize.Candidate, 0, len(texts))
	for _, text := range texts {
		out = append(out, recognize.Candidate{
			Sender:         sender,
			OriginalText:   text,
			TranslatedText: "t:" + text,
			Side:           "other",
		})
	}
	return out
}

func newReconciler(src capture.Source, rec recognize.Service, list *chats.List, repo *fakeRepo) *Reconciler {
	return New(src, rec, list, repo, DefaultConfig(), nil)
}

func TestRunCycle_MergesNewMessages(t *testing.T) {
	src := &fakeSource{windows: []capture.Window{window("Kim", 300)}}
	rec := &fakeRecognizer{batches: map[string][]recognize.Candidate{
		cropKey(300): cands("Kim", "안녕", "뭐해?"),
	}}
	list := chats.NewList()
	repo := &fakeRepo{}

	report, err := newReconciler(src, rec, list, repo).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if report.Updated != 1 || report.NewMessages != 2 {
		t.Errorf("report = %+v, want 1 updated chat with 2 new messages", report)
	}

	snap := list.Snapshot()
	if len(snap.Chats) != 1 || len(snap.Chats[0].Messages) != 2 {
		t.Fatalf("unexpected collection state: %+v", snap.Chats)
	}
	if snap.Chats[0].UnreadCount != 2 {
		t.Errorf("expected unreadCount 2, got %d", snap.Chats[0].UnreadCount)
	}
	if repo.saves != 1 {
		t.Errorf("expected exactly one persist per merged window, got %d", repo.saves)
	}
}

func TestRunCycle_IdempotentAcrossRepeatedBatches(t *testing.T) {
	src := &fakeSource{windows: []capture.Window{window("Kim", 300)}}
	rec := &fakeRecognizer{batches: map[string][]recognize.Candidate{
		cropKey(300): cands("Kim", "안녕", "뭐해?"),
	}}
	list := chats.NewList()
	repo := &fakeRepo{}
	r := newReconciler(src, rec, list, repo)

	for i := 0; i < 2; i++ {
		if _, err := r.RunCycle(context.Background()); err != nil {
			t.Fatalf("RunCycle %d: %v", i, err)
		}
	}

	snap := list.Snapshot()
	if got := len(snap.Chats[0].Messages); got != 2 {
		t.Errorf("the same batch seen twice must be appended once, got %d messages", got)
	}
}

func TestRunCycle_FailureIsolation(t *testing.T) {
	src := &fakeSource{windows: []capture.Window{
		window("W1", 100), window("W2", 200), window("W3", 300),
	}}
	rec := &fakeRecognizer{
		batches: map[string][]recognize.Candidate{
			cropKey(100): cands("a", "message one"),
			cropKey(300): cands("c", "message three"),
		},
		failFor: map[string]error{
			cropKey(200): fmt.Errorf("%w: blurry crop", recognize.ErrRecognitionFailed),
		},
	}
	list := chats.NewList()
	repo := &fakeRepo{}

	report, err := newReconciler(src, rec, list, repo).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if len(report.WindowErrors) != 1 {
		t.Fatalf("expected exactly one window error, got %d", len(report.WindowErrors))
	}
	werr := report.WindowErrors[0]
	if werr.Window != "W2" {
		t.Errorf("error should reference W2, got %q", werr.Window)
	}
	if !errors.Is(werr, recognize.ErrRecognitionFailed) {
		t.Errorf("window error should wrap the recognition failure: %v", werr)
	}

	snap := list.Snapshot()
	if len(snap.Chats) != 2 {
		t.Fatalf("W1 and W3 should be merged despite W2 failing, got %d chats", len(snap.Chats))
	}
	for _, c := range snap.Chats {
		if c.Name == "W2" {
			t.Error("failed window must leave no chat behind")
		}
	}
}

func TestRunCycle_CaptureFailureIsFatal(t *testing.T) {
	src := &fakeSource{
		windows:    []capture.Window{window("Kim", 300)},
		captureErr: capture.ErrUnavailable,
	}
	rec := &fakeRecognizer{}
	list := chats.NewList()
	repo := &fakeRepo{}

	report, err := newReconciler(src, rec, list, repo).RunCycle(context.Background())
	if !errors.Is(err, capture.ErrUnavailable) {
		t.Fatalf("expected capture unavailable error, got %v", err)
	}
	if report != nil {
		t.Errorf("no report expected for an aborted cycle, got %+v", report)
	}
	if rec.calls != 0 {
		t.Errorf("no window should be processed when capture fails, got %d recognition calls", rec.calls)
	}
}

func TestRunCycle_SingleFlightGate(t *testing.T) {
	block := make(chan struct{})
	src := &fakeSource{windows: []capture.Window{window("Kim", 300)}}
	rec := &fakeRecognizer{
		batches: map[string][]recognize.Candidate{cropKey(300): cands("Kim", "hello")},
		block:   block,
	}
	list := chats.NewList()
	repo := &fakeRepo{}
	r := newReconciler(src, rec, list, repo)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := r.RunCycle(context.Background()); err != nil {
			t.Errorf("RunCycle: %v", err)
		}
	}()

	// Wait until the first cycle is inside Extract, then re-trigger.
	deadline := time.After(2 * time.Second)
	for {
		rec.mu.Lock()
		started := rec.calls > 0
		rec.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first cycle never reached recognition")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	report, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("re-trigger returned error: %v", err)
	}
	if report != nil {
		t.Errorf("re-trigger during an active cycle must be a no-op, got %+v", report)
	}

	close(block)
	<-done

	if got := len(list.Snapshot().Chats[0].Messages); got != 1 {
		t.Errorf("exactly one batch should have been applied, got %d messages", got)
	}
}

func TestRunCycle_PersistenceFailureDoesNotRollBack(t *testing.T) {
	src := &fakeSource{windows: []capture.Window{window("Kim", 300)}}
	rec := &fakeRecognizer{batches: map[string][]recognize.Candidate{
		cropKey(300): cands("Kim", "hello"),
	}}
	list := chats.NewList()
	repo := &fakeRepo{saveErr: errors.New("disk full")}

	report, err := newReconciler(src, rec, list, repo).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("persistence failure must not fail the cycle: %v", err)
	}
	if len(report.WindowErrors) != 0 {
		t.Errorf("persistence failure is logged-only, got window errors: %v", report.WindowErrors)
	}
	if len(list.Snapshot().Chats) != 1 {
		t.Error("in-memory state must remain authoritative after a failed save")
	}
}

func TestRunCycle_SelectionSurvivesCycle(t *testing.T) {
	src := &fakeSource{windows: []capture.Window{window("Kim", 300), window("Lee", 400)}}
	rec := &fakeRecognizer{batches: map[string][]recognize.Candidate{
		cropKey(300): cands("Kim", "from kim"),
		cropKey(400): cands("Lee", "from lee"),
	}}
	list := chats.NewList()
	repo := &fakeRepo{}
	r := newReconciler(src, rec, list, repo)

	if _, err := r.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	// Select the chat currently at the back, then run another cycle
	// that reorders the collection.
	snap := list.Snapshot()
	selected := snap.Chats[len(snap.Chats)-1]
	list.Select(uuid.MustParse(selected.ID))

	rec.mu.Lock()
	rec.batches[cropKey(300)] = cands("Kim", "newer from kim")
	rec.batches[cropKey(400)] = nil
	rec.mu.Unlock()

	report, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if report.SelectedID != selected.ID {
		t.Errorf("selection must survive by identity: got %q, want %q", report.SelectedID, selected.ID)
	}
}
