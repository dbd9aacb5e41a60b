package plugin

import (
	"fmt"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/ebitengine/purego"

	"github.com/commy-mesh/commy/pkg/model"
)

// rawDescriptor mirrors PluginTypeDescriptor's C layout exactly: field
// order and widths are part of the frozen ABI and must never change
// without bumping CurrentABIVersion.
type rawDescriptor struct {
	typeName   *byte // null-terminated
	schemaHash uint64
	formats    uint32
	_          uint32 // padding to 8-byte alignment before the pointers
	write      uintptr
	schemaText uintptr // optional getter, may be nil
	destroyCtx uintptr // optional destructor, may be nil
	ctx        uintptr
}

// decodeDescriptors walks the C array of count raw descriptors returned by
// com_my_plugin_register and converts each to a model.PluginTypeDescriptor.
func decodeDescriptors(first *rawDescriptor, count uintptr) []model.PluginTypeDescriptor {
	if first == nil || count == 0 {
		return nil
	}

	size := unsafe.Sizeof(rawDescriptor{})
	out := make([]model.PluginTypeDescriptor, 0, count)
	base := uintptr(unsafe.Pointer(first))

	for i := uintptr(0); i < count; i++ {
		raw := (*rawDescriptor)(unsafe.Pointer(base + i*size))
		out = append(out, model.PluginTypeDescriptor{
			TypeName:   cString(raw.typeName),
			SchemaHash: raw.schemaHash,
			Formats:    model.FormatFlags(raw.formats),
			Write:      wrapWrite(raw.write),
			SchemaText: wrapSchemaText(raw.schemaText),
			DestroyCtx: wrapDestroyCtx(raw.destroyCtx),
			Ctx:        raw.ctx,
		})
	}
	return out
}

// wrapWrite builds a Go trampoline around a plugin's raw write function
// pointer. The pointer comes from the descriptor rather than a named
// symbol, so purego.RegisterLibFunc can't bind it; purego.SyscallN invokes
// it directly by address instead, passing the four words the C ABI
// expects and nothing else.
func wrapWrite(fn uintptr) func(ctx, typedPtr, outBuf, outLen uintptr) int {
	if fn == 0 {
		return nil
	}
	return func(ctx, typedPtr, outBuf, outLen uintptr) int {
		r1, _, _ := purego.SyscallN(fn, ctx, typedPtr, outBuf, outLen)
		return int(r1)
	}
}

// wrapSchemaText builds a trampoline around a plugin's optional schema-text
// getter, which returns a null-terminated C string.
func wrapSchemaText(fn uintptr) func(ctx uintptr) string {
	if fn == 0 {
		return nil
	}
	return func(ctx uintptr) string {
		r1, _, _ := purego.SyscallN(fn, ctx)
		return cString((*byte)(unsafe.Pointer(r1)))
	}
}

// wrapDestroyCtx builds a trampoline around a plugin's optional ctx
// destructor.
func wrapDestroyCtx(fn uintptr) func(ctx uintptr) {
	if fn == 0 {
		return nil
	}
	return func(ctx uintptr) {
		purego.SyscallN(fn, ctx)
	}
}

// cString reads a null-terminated C string starting at p.
func cString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for {
		b := *(*byte)(unsafe.Pointer(uintptr(unsafe.Pointer(p)) + uintptr(n)))
		if b == 0 {
			break
		}
		n++
	}
	buf := unsafe.Slice(p, n)
	return string(buf)
}

// adaptDescriptor validates d and wraps it in a TypeEntry whose Writer
// adapts C3's internal contract (value any, out []byte) to the
// descriptor's C write function. A plugin-backed type's value must be the
// uintptr of its native representation; that is the contract a plugin and
// its callers share, since Commy's generic Record can't be translated to
// an arbitrary C layout without the plugin's own knowledge of it. The
// caller is responsible for keeping that pointer's target alive (e.g. via
// runtime.KeepAlive) for the duration of the call, since a bare uintptr is
// invisible to the garbage collector.
func adaptDescriptor(d model.PluginTypeDescriptor, libraryPath string) *model.TypeEntry {
	schemaText := ""
	if d.SchemaText != nil {
		schemaText = d.SchemaText(d.Ctx)
	}

	entry := &model.TypeEntry{
		Name:        d.TypeName,
		SchemaHash:  d.SchemaHash,
		Formats:     d.Formats,
		LibraryPath: libraryPath,
		SchemaText:  schemaText,
	}

	if d.Write == nil {
		entry.Writer = func(value any, out []byte) (int, error) {
			return 0, model.NewFault(model.KindPluginFault, "plugin.writer",
				fmt.Errorf("type %q exports no write function", d.TypeName)).
				WithDetail("path", libraryPath)
		}
		return entry
	}

	entry.Writer = func(value any, out []byte) (int, error) {
		typedPtr, ok := value.(uintptr)
		if !ok {
			return 0, model.NewFault(model.KindPluginFault, "plugin.writer",
				fmt.Errorf("plugin type %q requires a raw typed pointer, got %T", d.TypeName, value)).
				WithDetail("path", libraryPath)
		}
		if len(out) == 0 {
			return 0, model.NewFault(model.KindCapacityExceeded, "plugin.writer", model.ErrCapacityExceeded).
				WithDetail("type", d.TypeName)
		}
		n := d.Write(d.Ctx, typedPtr, uintptr(unsafe.Pointer(&out[0])), uintptr(len(out)))
		if n < 0 {
			return 0, model.NewFault(model.KindPluginFault, "plugin.writer",
				fmt.Errorf("plugin type %q write failed", d.TypeName)).
				WithDetail("path", libraryPath)
		}
		return n, nil
	}
	return entry
}

// HashSchema computes the 64-bit fixed-seed fast hash over canonicalized
// schema text, per the plugin ABI's schema_hash definition: whitespace
// outside string literals stripped, fields sorted by declaration order.
// Canonicalization is the caller's responsibility (it is schema-language
// specific); HashSchema only performs the fixed-seed hash itself.
func HashSchema(canonicalSchemaText string) uint64 {
	return xxhash.Sum64String(canonicalSchemaText)
}
