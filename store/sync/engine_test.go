package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scansync/store"
)

func newTestStore(t *testing.T) *store.LocalStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(dbPath, discardLogger())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(local *store.LocalStore, remote store.RemoteStore, opts Options) *Engine {
	if opts.Pacer == nil {
		opts.Pacer = NoPacing
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	return New(local, remote, nil, opts)
}

func TestSyncDownloadsRemoteItems(t *testing.T) {
	local := newTestStore(t)
	remote := store.NewMockRemote()
	remote.Orders["r1"] = store.OrderRecord{ID: "r1", OrderNumber: "X1", Timestamp: 100}

	engine := newTestEngine(local, remote, Options{})
	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if result.Downloaded != 1 {
		t.Errorf("Expected 1 downloaded, got %d", result.Downloaded)
	}
	if result.MergedNew != 1 {
		t.Errorf("Expected 1 merged, got %d", result.MergedNew)
	}

	orders := local.GetOrders()
	if len(orders) != 1 || orders[0].ID != "r1" || orders[0].OrderNumber != "X1" {
		t.Errorf("Expected local store to contain the remote order, got %+v", orders)
	}
}

func TestSyncNeverOverwritesLocalCopy(t *testing.T) {
	local := newTestStore(t)
	if err := local.PutLabel(store.LabelRecord{ID: "a", Reference: "local-edit", Timestamp: 100}); err != nil {
		t.Fatalf("PutLabel failed: %v", err)
	}

	remote := store.NewMockRemote()
	remote.Labels["a"] = store.LabelRecord{ID: "a", Reference: "remote-copy", Timestamp: 999}

	engine := newTestEngine(local, remote, Options{})
	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if result.MergedNew != 0 {
		t.Errorf("Expected no merges for a present id, got %d", result.MergedNew)
	}

	labels := local.GetLabels()
	if labels[0].Reference != "local-edit" {
		t.Errorf("Local copy was overwritten: got %s", labels[0].Reference)
	}

	// The upload phase pushed the local copy back out.
	if remote.Labels["a"].Reference != "local-edit" {
		t.Errorf("Expected remote to carry the local copy after upload, got %s", remote.Labels["a"].Reference)
	}
}

func TestSyncUploadsLocalItems(t *testing.T) {
	local := newTestStore(t)
	for _, rec := range []store.LabelRecord{
		{ID: "a", Reference: "1000", Timestamp: 100},
		{ID: "b", Reference: "2000", Timestamp: 200},
	} {
		if err := local.PutLabel(rec); err != nil {
			t.Fatalf("PutLabel failed: %v", err)
		}
	}

	remote := store.NewMockRemote()
	engine := newTestEngine(local, remote, Options{})
	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if result.Uploaded != 2 {
		t.Errorf("Expected 2 uploaded, got %d", result.Uploaded)
	}
	if len(remote.Labels) != 2 {
		t.Errorf("Expected 2 labels on remote, got %d", len(remote.Labels))
	}
}

func TestSyncDownloadFailureAborts(t *testing.T) {
	local := newTestStore(t)
	remote := store.NewMockRemote()
	remote.GetLabelsErr = &store.RemoteError{Op: "GetLabels", Err: errors.New("connection refused")}

	engine := newTestEngine(local, remote, Options{})
	result, err := engine.Sync(context.Background())
	if err == nil {
		t.Fatal("Expected download failure to abort the run")
	}
	if result != nil {
		t.Errorf("Expected no result on download failure, got %+v", result)
	}
	if !strings.Contains(err.Error(), "download phase") {
		t.Errorf("Expected a download phase error, got %v", err)
	}
	if engine.State() != StateIdle {
		t.Errorf("Expected engine back at idle, got %s", engine.State())
	}
}

func TestSyncRetryAfterPartialUploadConverges(t *testing.T) {
	local := newTestStore(t)
	for _, rec := range []store.LabelRecord{
		{ID: "a", Reference: "1000", Timestamp: 100},
		{ID: "b", Reference: "2000", Timestamp: 200},
	} {
		if err := local.PutLabel(rec); err != nil {
			t.Fatalf("PutLabel failed: %v", err)
		}
	}

	remote := store.NewMockRemote()
	remote.PutLabelErr["b"] = store.NewRemoteError("PutLabel", 500, "internal error")

	engine := newTestEngine(local, remote, Options{})
	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("First sync failed hard: %v", err)
	}
	if result.Uploaded != 1 {
		t.Errorf("Expected 1 uploaded on first run, got %d", result.Uploaded)
	}
	if result.ErrorCount() != 1 {
		t.Errorf("Expected 1 error on first run, got %d", result.ErrorCount())
	}

	delete(remote.PutLabelErr, "b")
	result, err = engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}
	if result.ErrorCount() != 0 {
		t.Errorf("Expected clean second run, got %d errors", result.ErrorCount())
	}
	if len(remote.Labels) != 2 {
		t.Errorf("Expected both labels on remote after retry, got %d", len(remote.Labels))
	}
	if got := len(local.GetLabels()); got != 2 {
		t.Errorf("Expected no local duplicates after retry, got %d labels", got)
	}
}

func TestSyncPermissionDeniedNotCountedAsError(t *testing.T) {
	local := newTestStore(t)
	if err := local.PutLabel(store.LabelRecord{ID: "a", Reference: "1000", Timestamp: 100}); err != nil {
		t.Fatalf("PutLabel failed: %v", err)
	}

	remote := store.NewMockRemote()
	remote.PutLabelErr["a"] = store.NewRemoteError("PutLabel", 403, "permission denied")

	engine := newTestEngine(local, remote, Options{})
	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if result.PermissionDenied != 1 {
		t.Errorf("Expected 1 permission denied, got %d", result.PermissionDenied)
	}
	if result.ErrorCount() != 0 {
		t.Errorf("Permission denied must not count as an error, got %d", result.ErrorCount())
	}
	if len(result.Failures) != 1 || result.Failures[0].Kind != KindPermissionDenied {
		t.Errorf("Expected a permission denied failure entry, got %+v", result.Failures)
	}
}

func TestSyncUnreachableAbortsUploadWithPartialResult(t *testing.T) {
	local := newTestStore(t)
	for _, rec := range []store.LabelRecord{
		{ID: "a", Reference: "1000", Timestamp: 200},
		{ID: "b", Reference: "2000", Timestamp: 100},
	} {
		if err := local.PutLabel(rec); err != nil {
			t.Fatalf("PutLabel failed: %v", err)
		}
	}

	remote := store.NewMockRemote()
	// Uploads walk the local store newest first, so "a" goes out cleanly and
	// "b" hits the transport failure.
	remote.PutLabelErr["b"] = &store.RemoteError{Op: "PutLabel", Err: errors.New("connection reset")}

	engine := newTestEngine(local, remote, Options{})
	result, err := engine.Sync(context.Background())
	if err == nil {
		t.Fatal("Expected an unreachable remote to abort the upload phase")
	}
	if result == nil {
		t.Fatal("Expected the partial result alongside the abort error")
	}
	if result.Uploaded != 1 {
		t.Errorf("Expected 1 item uploaded before the abort, got %d", result.Uploaded)
	}
	if engine.State() != StateIdle {
		t.Errorf("Expected engine back at idle, got %s", engine.State())
	}
}

func TestSyncMergeAbortsWhenLocalStoreUnavailable(t *testing.T) {
	local := newTestStore(t)
	remote := store.NewMockRemote()
	remote.Labels["r1"] = store.LabelRecord{ID: "r1", Reference: "1000", Timestamp: 100}

	local.Close()

	engine := newTestEngine(local, remote, Options{})
	result, err := engine.Sync(context.Background())
	if err == nil {
		t.Fatal("Expected an unavailable local store to abort the merge phase")
	}
	if !errors.Is(err, store.ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable in the abort error, got %v", err)
	}
	if !strings.Contains(err.Error(), "merge phase") {
		t.Errorf("Expected a merge phase error, got %v", err)
	}
	if result == nil {
		t.Fatal("Expected the partial result alongside the abort error")
	}
	if result.Downloaded != 1 {
		t.Errorf("Expected the download count preserved, got %d", result.Downloaded)
	}
	if engine.State() != StateIdle {
		t.Errorf("Expected engine back at idle, got %s", engine.State())
	}
}

func TestSyncPerItemTimeoutCountedNotFatal(t *testing.T) {
	local := newTestStore(t)
	if err := local.PutLabel(store.LabelRecord{ID: "a", Reference: "1000", Timestamp: 100}); err != nil {
		t.Fatalf("PutLabel failed: %v", err)
	}

	remote := store.NewMockRemote()
	remote.Latency = 50 * time.Millisecond

	engine := newTestEngine(local, remote, Options{LabelTimeout: 5 * time.Millisecond})
	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("A per-item timeout must not abort the run: %v", err)
	}

	if result.Uploaded != 0 {
		t.Errorf("Expected no items uploaded, got %d", result.Uploaded)
	}
	if len(result.Failures) != 1 || result.Failures[0].Kind != KindTimeout {
		t.Errorf("Expected one timeout failure, got %+v", result.Failures)
	}
	if result.ErrorCount() != 1 {
		t.Errorf("Timeouts count as errors, got %d", result.ErrorCount())
	}
}

func TestSyncRejectsConcurrentRun(t *testing.T) {
	local := newTestStore(t)
	remote := store.NewMockRemote()
	remote.Labels["r1"] = store.LabelRecord{ID: "r1", Reference: "1000", Timestamp: 100}

	engine := newTestEngine(local, remote, Options{})

	// Progress callbacks run on the sync goroutine, so a Sync call from one
	// observes the engine mid-run.
	var reentrant error
	unsubscribe := engine.Subscribe(func(Progress) {
		if reentrant == nil {
			_, reentrant = engine.Sync(context.Background())
		}
	})
	defer unsubscribe()

	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if !errors.Is(reentrant, ErrSyncInProgress) {
		t.Errorf("Expected ErrSyncInProgress from the overlapping call, got %v", reentrant)
	}
	if engine.State() != StateIdle {
		t.Errorf("Expected engine back at idle, got %s", engine.State())
	}
}

func TestSyncProgressReachesTotal(t *testing.T) {
	local := newTestStore(t)
	for _, rec := range []store.LabelRecord{
		{ID: "a", Reference: "1000", Timestamp: 100},
		{ID: "b", Reference: "2000", Timestamp: 200},
	} {
		if err := local.PutLabel(rec); err != nil {
			t.Fatalf("PutLabel failed: %v", err)
		}
	}

	remote := store.NewMockRemote()
	engine := newTestEngine(local, remote, Options{})

	var updates []Progress
	unsubscribe := engine.Subscribe(func(p Progress) {
		updates = append(updates, p)
	})
	defer unsubscribe()

	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if len(updates) == 0 {
		t.Fatal("Expected progress updates")
	}
	if updates[0].Phase != "downloading" {
		t.Errorf("Expected the download phase to announce itself first, got %q", updates[0].Phase)
	}
	last := updates[len(updates)-1]
	if last.Current != last.Total {
		t.Errorf("Expected final progress %d/%d to be complete", last.Current, last.Total)
	}
	for i := 1; i < len(updates); i++ {
		if updates[i].Phase == updates[i-1].Phase && updates[i].Current < updates[i-1].Current {
			t.Errorf("Progress went backwards within phase %s: %d after %d",
				updates[i].Phase, updates[i].Current, updates[i-1].Current)
		}
	}
}

func TestSyncUnsubscribeStopsUpdates(t *testing.T) {
	local := newTestStore(t)
	if err := local.PutLabel(store.LabelRecord{ID: "a", Reference: "1000", Timestamp: 100}); err != nil {
		t.Fatalf("PutLabel failed: %v", err)
	}

	remote := store.NewMockRemote()
	engine := newTestEngine(local, remote, Options{})

	calls := 0
	unsubscribe := engine.Subscribe(func(Progress) { calls++ })
	unsubscribe()

	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected no updates after unsubscribe, got %d", calls)
	}
}

type recordingCompressor struct {
	calls int
}

func (c *recordingCompressor) Compress(dataURI string, maxKB int) (string, error) {
	c.calls++
	return "data:image/jpeg;base64,c2hydW5r", nil
}

func TestSyncCompressesImagesBeforeUpload(t *testing.T) {
	local := newTestStore(t)
	if err := local.PutLabel(store.LabelRecord{
		ID: "a", Reference: "1000", Timestamp: 100,
		OriginalImage: "data:image/png;base64,b3JpZ2luYWw=",
	}); err != nil {
		t.Fatalf("PutLabel failed: %v", err)
	}

	remote := store.NewMockRemote()
	comp := &recordingCompressor{}
	engine := New(local, remote, comp, Options{Pacer: NoPacing, Logger: discardLogger()})

	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if comp.calls != 1 {
		t.Errorf("Expected 1 compression call, got %d", comp.calls)
	}
	if got := remote.Labels["a"].OriginalImage; got != "data:image/jpeg;base64,c2hydW5r" {
		t.Errorf("Expected compressed payload on remote, got %s", got)
	}
	if local.GetLabels()[0].OriginalImage != "data:image/png;base64,b3JpZ2luYWw=" {
		t.Error("Compression must not modify the local copy")
	}
}

func TestSyncNilCompressorDropsImageFields(t *testing.T) {
	local := newTestStore(t)
	if err := local.PutLabel(store.LabelRecord{
		ID: "a", Reference: "1000", Timestamp: 100,
		OriginalImage: "data:image/png;base64,b3JpZ2luYWw=",
	}); err != nil {
		t.Fatalf("PutLabel failed: %v", err)
	}

	remote := store.NewMockRemote()
	engine := newTestEngine(local, remote, Options{})

	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if got := remote.Labels["a"].OriginalImage; got != "" {
		t.Errorf("Expected image field dropped without a compressor, got %s", got)
	}
	if remote.Labels["a"].Reference != "1000" {
		t.Error("Non-image fields must survive the upload")
	}
}
