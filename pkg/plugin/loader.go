// Package plugin is C2: discovers and loads dynamic libraries exporting
// the commy plugin ABI, and registers the types they describe into a type
// registry through a thin adapter.
package plugin

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/commy-mesh/commy/pkg/model"
	"github.com/commy-mesh/commy/pkg/typeregistry"
)

// CurrentABIVersion is the ABI version this loader was built against.
// A library exporting a different version is refused with AbiVersion.
const CurrentABIVersion int32 = 1

// State is a loaded plugin's lifecycle state.
type State int

const (
	StateLoaded State = iota
	StateQuarantined
)

// Handle tracks one loaded library: its dlopen handle, the type names it
// registered, and whether a crashing call has quarantined it.
type Handle struct {
	Path    string
	handle  uintptr
	Types   []string
	State   State
}

// Loader scans configured directories for dynamic libraries, validates
// their ABI version, and registers the types they export into registry.
// Library handles are retained for the loader's lifetime; unloading is an
// explicit admin operation gated on every registered type having drained.
type Loader struct {
	registry *typeregistry.Registry

	mu      sync.Mutex
	handles map[string]*Handle // keyed by library path
}

// New builds a Loader that registers discovered types into registry.
func New(registry *typeregistry.Registry) *Loader {
	return &Loader{
		registry: registry,
		handles:  make(map[string]*Handle),
	}
}

// ScanDirs loads every dynamic library matching the platform extension in
// each of dirs. A single library's failure does not abort the scan; all
// errors are returned joined.
func (l *Loader) ScanDirs(dirs []string) error {
	var errs []error
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+platformExt))
		if err != nil {
			errs = append(errs, fmt.Errorf("plugin: scan %s: %w", dir, err))
			continue
		}
		for _, path := range matches {
			if err := l.Load(path); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return joinErrors(errs)
}

// Load opens the library at path, validates its ABI version, invokes its
// registration symbol, and registers every descriptor it returns.
func (l *Loader) Load(path string) error {
	l.mu.Lock()
	if _, already := l.handles[path]; already {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return model.NewFault(model.KindValidation, "plugin.load", err).WithDetail("path", path)
	}

	var abiVersion func() int32
	purego.RegisterLibFunc(&abiVersion, h, "commy_plugin_abi_version")
	if got := abiVersion(); got != CurrentABIVersion {
		return model.NewFault(model.KindAbiVersion, "plugin.load", model.ErrAbiVersion).
			WithDetail("path", path).
			WithDetail("want", CurrentABIVersion).
			WithDetail("got", got)
	}

	descriptors, err := l.invokeRegister(h, path)
	if err != nil {
		return err
	}

	handle := &Handle{Path: path, handle: h}
	for _, d := range descriptors {
		entry := adaptDescriptor(d, path)
		if err := l.registry.Register(entry); err != nil {
			return fmt.Errorf("plugin: register %q from %s: %w", d.TypeName, path, err)
		}
		handle.Types = append(handle.Types, d.TypeName)
	}

	l.mu.Lock()
	l.handles[path] = handle
	l.mu.Unlock()
	return nil
}

// invokeRegister calls com_my_plugin_register inside a crash-isolation
// boundary: an abnormal return (panic in the Go-side trampoline, since
// purego cannot intercept a genuine C-level fault) is translated to
// PluginFault and the library is quarantined rather than taking the
// process down.
func (l *Loader) invokeRegister(h uintptr, path string) (descs []model.PluginTypeDescriptor, faultErr error) {
	defer func() {
		if r := recover(); r != nil {
			l.mu.Lock()
			l.handles[path] = &Handle{Path: path, handle: h, State: StateQuarantined}
			l.mu.Unlock()
			faultErr = model.NewFault(model.KindPluginFault, "plugin.register", model.ErrPluginFault).
				WithDetail("path", path).
				WithDetail("panic", fmt.Sprint(r))
		}
	}()

	var register func(**rawDescriptor, *uintptr)
	purego.RegisterLibFunc(&register, h, "com_my_plugin_register")

	var out *rawDescriptor
	var count uintptr
	register(&out, &count)

	return decodeDescriptors(out, count), nil
}

// quarantine marks the loaded library at path quarantined; a path with no
// handle is left untouched. Already-registered types remain in the registry; a drain check is
// required before they can be removed.
func (l *Loader) quarantine(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.handles[path]; ok {
		h.State = StateQuarantined
	}
}

// Quarantined reports whether the library at path has been quarantined
// after a plugin fault.
func (l *Loader) Quarantined(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.handles[path]
	return ok && h.State == StateQuarantined
}

// Unload removes the bookkeeping for path. Refuses while check reports any
// of the library's registered types are still referenced.
func (l *Loader) Unload(path string, check typeregistry.DrainCheck) error {
	l.mu.Lock()
	h, ok := l.handles[path]
	l.mu.Unlock()
	if !ok {
		return nil
	}

	for _, name := range h.Types {
		if err := l.registry.Remove(name, check); err != nil {
			return fmt.Errorf("plugin: unload %s: %w", path, err)
		}
	}

	l.mu.Lock()
	delete(l.handles, path)
	l.mu.Unlock()
	return nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msg := fmt.Sprintf("plugin: %d load failure(s)", len(errs))
	for _, e := range errs {
		msg += "; " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
