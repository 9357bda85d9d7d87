// Package sync reconciles the local store with the shared remote store in
// three ordered phases: download the full remote collections, merge new
// remote items into the local store, then upload every local item to the
// remote store. Phases tolerate failure at item granularity; only losing a
// store entirely, the remote unreachable or the local database unavailable,
// aborts a run.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"scansync/store"
)

// ErrSyncInProgress rejects a sync request while another run is active.
// Requests are never queued or merged into the in-flight run.
var ErrSyncInProgress = errors.New("sync already in progress")

// State is the engine's externally observable lifecycle value.
type State string

const (
	StateIdle        State = "idle"
	StateDownloading State = "downloading"
	StateMerging     State = "merging"
	StateUploading   State = "uploading"
)

// Progress is emitted to subscribers on every processed item.
type Progress struct {
	Current int
	Total   int
	Phase   string
}

// ErrorKind classifies a per-item failure.
type ErrorKind string

const (
	KindTimeout          ErrorKind = "timeout"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindStorage          ErrorKind = "storage"
	KindRemote           ErrorKind = "remote"
	KindUnreachable      ErrorKind = "unreachable"
)

// ItemFailure records one item that could not be processed.
type ItemFailure struct {
	Collection string
	ID         string
	Kind       ErrorKind
	Err        error
}

// Result contains aggregate statistics for one sync run.
type Result struct {
	Downloaded       int
	MergedNew        int
	Uploaded         int
	PermissionDenied int
	Failures         []ItemFailure
	Duration         time.Duration
}

// ErrorCount is the user-facing error tally. Permission-denied failures are
// excluded: they usually mean the document already exists and the write was
// redundant.
func (r *Result) ErrorCount() int {
	n := 0
	for _, f := range r.Failures {
		if f.Kind != KindPermissionDenied {
			n++
		}
	}
	return n
}

// Pacer inserts a pause between uploaded items. Injected so tests run
// without real delays.
type Pacer interface {
	Pause(ctx context.Context)
}

type fixedDelay time.Duration

func (d fixedDelay) Pause(ctx context.Context) {
	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// FixedDelay returns a Pacer that sleeps for d between items.
func FixedDelay(d time.Duration) Pacer {
	return fixedDelay(d)
}

type noPacing struct{}

func (noPacing) Pause(context.Context) {}

// NoPacing disables inter-item delays.
var NoPacing Pacer = noPacing{}

// Compressor shrinks an image payload to at most maxKB. The engine drops a
// field whose compression fails rather than failing the item.
type Compressor interface {
	Compress(dataURI string, maxKB int) (string, error)
}

// Defaults applied when Options leaves a field zero.
const (
	DefaultLabelTimeout = 30 * time.Second
	DefaultOrderTimeout = 60 * time.Second
	DefaultImageMaxKB   = 150
	DefaultPacingDelay  = 100 * time.Millisecond
)

// Options configures an Engine.
type Options struct {
	LabelTimeout time.Duration // per-item upload deadline for labels
	OrderTimeout time.Duration // per-item upload deadline for orders
	ImageMaxKB   int           // compression target per image field
	Pacer        Pacer
	Logger       *slog.Logger
}

// Engine coordinates synchronization between the local store and the remote
// store. Items are processed strictly one at a time; only one sync may run
// at once.
type Engine struct {
	local      *store.LocalStore
	remote     store.RemoteStore
	compressor Compressor
	opts       Options

	mu      stdsync.Mutex
	state   State
	subs    map[int]func(Progress)
	nextSub int
}

// New creates a sync engine. compressor may be nil, in which case oversized
// image fields are stripped from outgoing payloads instead of compressed.
func New(local *store.LocalStore, remote store.RemoteStore, compressor Compressor, opts Options) *Engine {
	if opts.LabelTimeout == 0 {
		opts.LabelTimeout = DefaultLabelTimeout
	}
	if opts.OrderTimeout == 0 {
		opts.OrderTimeout = DefaultOrderTimeout
	}
	if opts.ImageMaxKB == 0 {
		opts.ImageMaxKB = DefaultImageMaxKB
	}
	if opts.Pacer == nil {
		opts.Pacer = FixedDelay(DefaultPacingDelay)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Engine{
		local:      local,
		remote:     remote,
		compressor: compressor,
		opts:       opts,
		state:      StateIdle,
		subs:       make(map[int]func(Progress)),
	}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Subscribe registers a progress callback and returns its unsubscribe
// function. Callbacks run on the sync goroutine and must not block.
func (e *Engine) Subscribe(fn func(Progress)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

func (e *Engine) notify(p Progress) {
	e.mu.Lock()
	fns := make([]func(Progress), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

// begin transitions Idle -> Downloading, failing if a run is active.
func (e *Engine) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return false
	}
	e.state = StateDownloading
	return true
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Sync runs one full reconciliation. A failed run leaves both stores in
// whatever state the completed sub-steps produced; every write is idempotent
// by id, so re-running converges. When a phase aborts, the partial Result is
// returned alongside the error.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	if !e.begin() {
		return nil, ErrSyncInProgress
	}
	defer e.setState(StateIdle)

	start := time.Now()
	result := &Result{}

	e.opts.Logger.Info("sync started")
	e.notify(Progress{Phase: "downloading"})

	// Phase 1: full-collection download. No partial result is kept on
	// failure.
	remoteLabels, err := e.remote.GetLabels(ctx)
	if err != nil {
		e.opts.Logger.Error("download phase failed", "error", err)
		return nil, fmt.Errorf("download phase: %w", err)
	}
	remoteOrders, err := e.remote.GetOrders(ctx)
	if err != nil {
		e.opts.Logger.Error("download phase failed", "error", err)
		return nil, fmt.Errorf("download phase: %w", err)
	}
	result.Downloaded = len(remoteLabels) + len(remoteOrders)
	e.opts.Logger.Info("download phase complete",
		"labels", len(remoteLabels), "orders", len(remoteOrders))

	// Phase 2: merge remote items into the local store.
	e.setState(StateMerging)
	if err := e.merge(remoteLabels, remoteOrders, result); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	// Phase 3: upload the full local store.
	e.setState(StateUploading)
	if err := e.upload(ctx, result); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	result.Duration = time.Since(start)
	e.opts.Logger.Info("sync complete",
		"downloaded", result.Downloaded,
		"merged_new", result.MergedNew,
		"uploaded", result.Uploaded,
		"errors", result.ErrorCount(),
		"permission_denied", result.PermissionDenied,
		"duration", result.Duration)
	return result, nil
}

// merge writes every remote item absent from the local store. A remote item
// whose id is already present is left untouched: the local copy wins by
// presence, remote never overwrites a local edit here. Per-item failures are
// logged and counted and the phase walks the full item set, except when the
// local store itself is unavailable, which aborts the run.
func (e *Engine) merge(labels []store.LabelRecord, orders []store.OrderRecord, result *Result) error {
	total := len(labels) + len(orders)
	current := 0

	for _, rec := range labels {
		inserted, err := mergeIfAbsent(rec.ID, e.local.ExistsLabel, func() error {
			return e.local.PutLabel(rec)
		})
		if err != nil {
			if errors.Is(err, store.ErrStorageUnavailable) {
				e.opts.Logger.Error("local store unavailable, aborting merge", "error", err)
				return fmt.Errorf("merge phase: %w", err)
			}
			result.Failures = append(result.Failures, ItemFailure{
				Collection: store.CollectionLabels, ID: rec.ID, Kind: KindStorage, Err: err,
			})
			e.opts.Logger.Warn("merge failed for label", "id", rec.ID, "error", err)
		} else if inserted {
			result.MergedNew++
		}
		current++
		e.notify(Progress{Current: current, Total: total, Phase: "merging"})
	}

	for _, rec := range orders {
		inserted, err := mergeIfAbsent(rec.ID, e.local.ExistsOrder, func() error {
			return e.local.PutOrder(rec)
		})
		if err != nil {
			if errors.Is(err, store.ErrStorageUnavailable) {
				e.opts.Logger.Error("local store unavailable, aborting merge", "error", err)
				return fmt.Errorf("merge phase: %w", err)
			}
			result.Failures = append(result.Failures, ItemFailure{
				Collection: store.CollectionOrders, ID: rec.ID, Kind: KindStorage, Err: err,
			})
			e.opts.Logger.Warn("merge failed for order", "id", rec.ID, "error", err)
		} else if inserted {
			result.MergedNew++
		}
		current++
		e.notify(Progress{Current: current, Total: total, Phase: "merging"})
	}

	e.opts.Logger.Info("merge phase complete", "new", result.MergedNew, "total", total)
	return nil
}

// mergeIfAbsent is the exists-guarded insert shared by both collections.
// Present items are left untouched so a local edit is never overwritten.
func mergeIfAbsent(id string, exists func(string) (bool, error), put func() error) (bool, error) {
	present, err := exists(id)
	if err != nil {
		return false, err
	}
	if present {
		return false, nil
	}
	if err := put(); err != nil {
		return false, err
	}
	return true, nil
}

// upload re-reads the full local store and writes every item to the remote
// store under its own id. Returns an error only when the remote store
// becomes unreachable; everything else is a counted per-item outcome.
func (e *Engine) upload(ctx context.Context, result *Result) error {
	labels := e.local.GetLabels()
	orders := e.local.GetOrders()
	total := len(labels) + len(orders)
	current := 0

	e.opts.Logger.Info("upload phase starting", "labels", len(labels), "orders", len(orders))

	for _, rec := range labels {
		out := e.prepareLabel(rec)
		err := e.putWithTimeout(ctx, e.opts.LabelTimeout, func(c context.Context) error {
			return e.remote.PutLabel(c, out)
		})
		current++
		e.notify(Progress{Current: current, Total: total, Phase: "uploading labels"})

		if abort := e.recordUploadOutcome(result, store.CollectionLabels, rec.ID, err); abort != nil {
			return abort
		}
		e.opts.Pacer.Pause(ctx)
	}

	for _, rec := range orders {
		out := e.prepareOrder(rec)
		err := e.putWithTimeout(ctx, e.opts.OrderTimeout, func(c context.Context) error {
			return e.remote.PutOrder(c, out)
		})
		current++
		e.notify(Progress{Current: current, Total: total, Phase: "uploading orders"})

		if abort := e.recordUploadOutcome(result, store.CollectionOrders, rec.ID, err); abort != nil {
			return abort
		}
		e.opts.Pacer.Pause(ctx)
	}

	e.opts.Logger.Info("upload phase complete", "uploaded", result.Uploaded)
	return nil
}

// recordUploadOutcome books one upload attempt. Unreachable aborts the
// phase; effects of completed items stand.
func (e *Engine) recordUploadOutcome(result *Result, collection, id string, err error) error {
	if err == nil {
		result.Uploaded++
		return nil
	}

	kind := classify(err)
	if kind == KindUnreachable {
		e.opts.Logger.Error("remote store unreachable, aborting upload", "error", err)
		return fmt.Errorf("upload phase: %w", err)
	}

	if kind == KindPermissionDenied {
		result.PermissionDenied++
	}
	result.Failures = append(result.Failures, ItemFailure{
		Collection: collection, ID: id, Kind: kind, Err: err,
	})
	e.opts.Logger.Warn("upload failed for item",
		"collection", collection, "id", id, "kind", string(kind), "error", err)
	return nil
}

func (e *Engine) putWithTimeout(ctx context.Context, timeout time.Duration, put func(context.Context) error) error {
	itemCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return put(itemCtx)
}

// prepareLabel builds the outgoing payload: image fields are compressed to
// the configured ceiling, or dropped when compression fails or no
// compressor is configured. The remote store enforces a per-document size
// limit.
func (e *Engine) prepareLabel(rec store.LabelRecord) store.LabelRecord {
	rec.OriginalImage = e.shrink(rec.OriginalImage)
	rec.CroppedImage = e.shrink(rec.CroppedImage)
	rec.PackingPhoto = e.shrink(rec.PackingPhoto)
	return rec
}

func (e *Engine) prepareOrder(rec store.OrderRecord) store.OrderRecord {
	rec.OriginalImage = e.shrink(rec.OriginalImage)
	return rec
}

func (e *Engine) shrink(dataURI string) string {
	if dataURI == "" {
		return ""
	}
	if e.compressor == nil {
		return ""
	}
	out, err := e.compressor.Compress(dataURI, e.opts.ImageMaxKB)
	if err != nil {
		e.opts.Logger.Warn("image compression failed, dropping field", "error", err)
		return ""
	}
	return out
}

// classify maps an upload error to its ErrorKind.
func classify(err error) ErrorKind {
	var re *store.RemoteError
	if errors.As(err, &re) {
		switch {
		case re.IsPermissionDenied():
			return KindPermissionDenied
		case re.IsTimeout():
			return KindTimeout
		case re.IsUnreachable():
			return KindUnreachable
		}
		return KindRemote
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindRemote
}
