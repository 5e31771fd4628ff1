// Package ffi holds the process-wide handle registry backing the C
// ABI: a mutex-guarded map from opaque handle to the Go object it
// refers to. This is the only global state in the module; the
// merger/pipeline/profile types themselves stay free of it.
//
// cmd/libperforatorcore is the cgo c-shared package that exports this
// registry's operations under the C function names embedders call;
// this package is plain Go so it can also be unit-tested without a
// cgo build.
package ffi

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/aadil-01/perforator/merge"
	"github.com/aadil-01/perforator/parallelmerge"
	"github.com/aadil-01/perforator/profile"
)

// Handle is an opaque reference into this package's registries. The
// zero Handle is never issued and means "invalid" at the C boundary.
type Handle uint64

var nextHandle uint64

func allocHandle() Handle {
	return Handle(atomic.AddUint64(&nextHandle, 1))
}

// Manager corresponds to a make_merge_manager handle: it holds the
// configured worker-thread count new sessions are started with.
type Manager struct {
	threadCount uint32
}

// Session corresponds to merger_start's out_session handle. It wraps
// either a single-threaded merge.Merger (thread_count <= 1) or a
// parallelmerge.Pipeline (thread_count > 1) behind one interface so
// the exported merger_add_profile/merger_finish calls don't need to
// know which.
type Session struct {
	merger   *merge.Merger
	pipeline *parallelmerge.Pipeline
}

func (s *Session) add(p *profile.Profile) error {
	if s.pipeline != nil {
		return s.pipeline.Add(p)
	}
	return s.merger.Add(p)
}

func (s *Session) finish() (*profile.Profile, error) {
	if s.pipeline != nil {
		return s.pipeline.Finish()
	}
	return s.merger.Finish()
}

// Registry is the mutex-guarded handle table. A package-level
// instance (Default) backs the exported C functions; tests construct
// their own Registry to avoid cross-test interference.
type Registry struct {
	mu        sync.Mutex
	managers  map[Handle]*Manager
	sessions  map[Handle]*Session
	profiles  map[Handle]*profile.Profile
	errorsMap map[Handle]error
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		managers:  make(map[Handle]*Manager),
		sessions:  make(map[Handle]*Session),
		profiles:  make(map[Handle]*profile.Profile),
		errorsMap: make(map[Handle]error),
	}
}

// Default is the registry cmd/libperforatorcore's exported C
// functions operate on.
var Default = NewRegistry()

// MakeMergeManager implements make_merge_manager.
func (r *Registry) MakeMergeManager(threadCount uint32) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := allocHandle()
	r.managers[h] = &Manager{threadCount: threadCount}
	return h
}

// DestroyMergeManager implements destroy_merge_manager.
func (r *Registry) DestroyMergeManager(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.managers, h)
}

// MergerStart implements merger_start: it builds a Session configured
// per opts and the manager's thread count, returning its handle.
func (r *Registry) MergerStart(managerHandle Handle, opts merge.Options) (Handle, Handle) {
	r.mu.Lock()
	mgr, ok := r.managers[managerHandle]
	r.mu.Unlock()
	if !ok {
		return 0, r.newError(errUnknownHandle("manager", managerHandle))
	}

	sess := &Session{}
	if mgr.threadCount <= 1 {
		sess.merger = merge.New(opts)
	} else {
		sess.pipeline = parallelmerge.New(context.Background(), profile.New(), parallelmerge.Options{
			MergeOptions:     opts,
			ConcurrencyLevel: mgr.threadCount,
			BufferSize:       2 * mgr.threadCount,
		})
	}

	r.mu.Lock()
	h := allocHandle()
	r.sessions[h] = sess
	r.mu.Unlock()
	return h, 0
}

// MergerAddProfile implements merger_add_profile.
func (r *Registry) MergerAddProfile(sessionHandle, profileHandle Handle) Handle {
	r.mu.Lock()
	sess, sessOK := r.sessions[sessionHandle]
	p, profOK := r.profiles[profileHandle]
	r.mu.Unlock()
	if !sessOK {
		return r.newError(errUnknownHandle("session", sessionHandle))
	}
	if !profOK {
		return r.newError(errUnknownHandle("profile", profileHandle))
	}
	if err := sess.add(p); err != nil {
		return r.newError(err)
	}
	return 0
}

// MergerFinish implements merger_finish: consumes the session handle
// and returns a fresh profile handle for the merged result.
func (r *Registry) MergerFinish(sessionHandle Handle) (Handle, Handle) {
	r.mu.Lock()
	sess, ok := r.sessions[sessionHandle]
	if ok {
		delete(r.sessions, sessionHandle)
	}
	r.mu.Unlock()
	if !ok {
		return 0, r.newError(errUnknownHandle("session", sessionHandle))
	}

	out, err := sess.finish()
	if err != nil {
		return 0, r.newError(err)
	}
	return r.putProfile(out), 0
}

// MergerDispose implements merger_dispose for sessions abandoned
// without calling Finish (e.g. the owner is unwinding after an
// error).
func (r *Registry) MergerDispose(sessionHandle Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionHandle)
}

func (r *Registry) putProfile(p *profile.Profile) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := allocHandle()
	r.profiles[h] = p
	return h
}

// ProfileDispose implements profile_dispose.
func (r *Registry) ProfileDispose(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, h)
}

// ProfileHandle exposes a registered profile by handle, for
// serialization entry points.
func (r *Registry) ProfileHandle(h Handle) (*profile.Profile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[h]
	return p, ok
}

// PutProfile registers p (e.g. freshly parsed) and returns its
// handle, for profile_parse/profile_parse_pprof.
func (r *Registry) PutProfile(p *profile.Profile) Handle {
	return r.putProfile(p)
}

func (r *Registry) newError(err error) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := allocHandle()
	r.errorsMap[h] = err
	return h
}

// ErrorString implements error_string.
func (r *Registry) ErrorString(h Handle) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.errorsMap[h]; ok {
		return err.Error()
	}
	return ""
}

// ErrorDispose implements error_dispose.
func (r *Registry) ErrorDispose(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.errorsMap, h)
}

// ErrorHandleFor registers an arbitrary Go error (e.g. one produced
// outside this registry, such as a parse failure) and returns its
// handle, for cgo entry points that need to report a failure through
// the same error channel as the registry's own methods.
func (r *Registry) ErrorHandleFor(err error) Handle {
	return r.newError(err)
}

// ErrUnknownProfileHandle builds the same "unknown handle" error
// ProfileHandle's callers see when h isn't registered.
func ErrUnknownProfileHandle(h Handle) error {
	return errUnknownHandle("profile", h)
}

func errUnknownHandle(kind string, h Handle) error {
	return &unknownHandleError{kind: kind, handle: h}
}

type unknownHandleError struct {
	kind   string
	handle Handle
}

func (e *unknownHandleError) Error() string {
	return "ffi: unknown " + e.kind + " handle"
}
