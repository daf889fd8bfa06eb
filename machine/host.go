package machine

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/pxt-runtime/errors"
	"github.com/wippyai/pxt-runtime/heap"
	"github.com/wippyai/pxt-runtime/wasm"
)

// HostModule is the import module name of the object ABI.
const HostModule = "pxt"

// signature counts i32 parameters and results.
type signature struct {
	params  int
	results int
}

// hostABI lists every function of the object ABI. All values are i32.
var hostABI = map[string]signature{
	"incr": {1, 0},
	"decr": {1, 0},

	"mk_record": {2, 1},
	"ld":        {2, 1},
	"ldref":     {2, 1},
	"st":        {3, 0},
	"stref":     {3, 0},

	"mk_action":         {3, 1},
	"st_capture":        {3, 0},
	"st_capture_ref":    {3, 0},
	"ld_capture":        {2, 1},
	"ld_capture_ref":    {2, 1},
	"run_action":        {2, 1},
	"run_in_background": {1, 0},
	"register_handler":  {3, 0},

	"mk_collection":  {1, 1},
	"push":           {2, 0},
	"get_at":         {2, 1},
	"set_at":         {3, 0},
	"remove_at":      {2, 0},
	"index_of":       {3, 1},
	"remove_element": {2, 1},
	"length":         {1, 1},

	"mk_buffer": {1, 1},
	"buf_get":   {2, 1},
	"buf_set":   {3, 0},
	"buf_len":   {1, 1},

	"get_global": {1, 1},
	"set_global": {2, 0},

	"panic": {1, 0},
	"debug": {1, 0},
}

// HostSignature returns the signature of an ABI function.
func HostSignature(name string) (wasm.FuncType, bool) {
	sig, ok := hostABI[name]
	if !ok {
		return wasm.FuncType{}, false
	}
	return wasm.FuncType{Params: i32s(sig.params), Results: i32s(sig.results)}, true
}

// ImportHost adds the import of ABI function name to m and returns its
// function index. It panics on unknown names.
func ImportHost(m *wasm.Module, name string) uint32 {
	ft, ok := HostSignature(name)
	if !ok {
		panic("machine: unknown host function " + name)
	}
	return m.ImportFunc(HostModule, name, ft)
}

func i32s(n int) []wasm.ValType {
	types := make([]wasm.ValType, n)
	for i := range types {
		types[i] = wasm.I32
	}
	return types
}

func apiI32s(n int) []api.ValueType {
	types := make([]api.ValueType, n)
	for i := range types {
		types[i] = api.ValueTypeI32
	}
	return types
}

type hostFn func(ctx context.Context, stack []uint64)

func (m *Wasm) instantiateHost(ctx context.Context) error {
	impls := m.hostFuncs()
	b := m.runtime.NewHostModuleBuilder(HostModule)
	for name, sig := range hostABI {
		fn := impls[name]
		b.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
				fn(ctx, stack)
			}), apiI32s(sig.params), apiI32s(sig.results)).
			WithName(name).
			Export(name)
	}
	_, err := b.Instantiate(ctx)
	return err
}

func (m *Wasm) hostFuncs() map[string]hostFn {
	return map[string]hostFn{
		"incr": func(_ context.Context, s []uint64) {
			heap.Incr(m.handle("pxt.incr", s[0]))
		},
		"decr": func(_ context.Context, s []uint64) {
			heap.Decr(m.handle("pxt.decr", s[0]))
		},

		"mk_record": func(_ context.Context, s []uint64) {
			r := m.heap.MkRecord(int(api.DecodeI32(s[0])), int(api.DecodeI32(s[1])))
			s[0] = m.word(heap.Ref(r))
		},
		"ld": func(_ context.Context, s []uint64) {
			v := m.record("pxt.ld", s[0]).Load(int(api.DecodeI32(s[1])))
			s[0] = api.EncodeU32(uint32(v))
		},
		"ldref": func(_ context.Context, s []uint64) {
			s[0] = m.word(m.record("pxt.ldref", s[0]).LoadRef(int(api.DecodeI32(s[1]))))
		},
		"st": func(_ context.Context, s []uint64) {
			m.record("pxt.st", s[0]).Store(int(api.DecodeI32(s[1])), heap.Word(api.DecodeU32(s[2])))
		},
		"stref": func(_ context.Context, s []uint64) {
			m.record("pxt.stref", s[0]).StoreRef(int(api.DecodeI32(s[1])), m.handle("pxt.stref", s[2]))
		},

		"mk_action": func(_ context.Context, s []uint64) {
			h := m.heap.MkAction(int(api.DecodeI32(s[0])), int(api.DecodeI32(s[1])), int(api.DecodeI32(s[2])))
			s[0] = m.word(h)
		},
		"st_capture": func(_ context.Context, s []uint64) {
			m.action("pxt.st_capture", s[0]).StoreCoreWord(int(api.DecodeI32(s[1])), heap.Word(api.DecodeU32(s[2])))
		},
		"st_capture_ref": func(_ context.Context, s []uint64) {
			m.action("pxt.st_capture_ref", s[0]).StoreCore(int(api.DecodeI32(s[1])), m.handle("pxt.st_capture_ref", s[2]))
		},
		"ld_capture": func(_ context.Context, s []uint64) {
			v := m.action("pxt.ld_capture", s[0]).Captures().Word(int(api.DecodeI32(s[1])))
			s[0] = api.EncodeU32(uint32(v))
		},
		"ld_capture_ref": func(_ context.Context, s []uint64) {
			h := m.action("pxt.ld_capture_ref", s[0]).Captures().Ref(int(api.DecodeI32(s[1])))
			s[0] = m.word(heap.Incr(h))
		},
		"run_action": func(ctx context.Context, s []uint64) {
			r := m.heap.RunAction(ctx, m.handle("pxt.run_action", s[0]), api.DecodeI32(s[1]))
			s[0] = api.EncodeI32(r)
		},
		"run_in_background": func(_ context.Context, s []uint64) {
			m.host.RunInBackground(m.handle("pxt.run_in_background", s[0]))
		},
		"register_handler": func(_ context.Context, s []uint64) {
			source, value := api.DecodeI32(s[0]), api.DecodeI32(s[1])
			if err := m.host.RegisterHandler(source, value, m.handle("pxt.register_handler", s[2])); err != nil {
				m.logger.Warn("register handler failed",
					zap.Int32("source", source),
					zap.Int32("value", value),
					zap.Error(err))
			}
		},

		"mk_collection": func(_ context.Context, s []uint64) {
			c := m.heap.MkCollection(heap.CollectionFlags(api.DecodeU32(s[0])))
			s[0] = m.word(heap.Ref(c))
		},
		"push": func(_ context.Context, s []uint64) {
			m.collection("pxt.push", s[0]).Push(m.handle("pxt.push", s[1]))
		},
		"get_at": func(_ context.Context, s []uint64) {
			s[0] = m.word(m.collection("pxt.get_at", s[0]).GetAt(int(api.DecodeI32(s[1]))))
		},
		"set_at": func(_ context.Context, s []uint64) {
			m.collection("pxt.set_at", s[0]).SetAt(int(api.DecodeI32(s[1])), m.handle("pxt.set_at", s[2]))
		},
		"remove_at": func(_ context.Context, s []uint64) {
			m.collection("pxt.remove_at", s[0]).RemoveAt(int(api.DecodeI32(s[1])))
		},
		"index_of": func(_ context.Context, s []uint64) {
			i := m.collection("pxt.index_of", s[0]).IndexOf(m.handle("pxt.index_of", s[1]), int(api.DecodeI32(s[2])))
			s[0] = api.EncodeI32(int32(i))
		},
		"remove_element": func(_ context.Context, s []uint64) {
			ok := m.collection("pxt.remove_element", s[0]).RemoveElement(m.handle("pxt.remove_element", s[1]))
			s[0] = boolWord(ok)
		},
		"length": func(_ context.Context, s []uint64) {
			s[0] = api.EncodeI32(int32(m.collection("pxt.length", s[0]).Len()))
		},

		"mk_buffer": func(_ context.Context, s []uint64) {
			s[0] = m.word(heap.Ref(m.heap.MkBuffer(int(api.DecodeI32(s[0])))))
		},
		"buf_get": func(_ context.Context, s []uint64) {
			s[0] = api.EncodeU32(uint32(m.buffer("pxt.buf_get", s[0]).At(int(api.DecodeI32(s[1])))))
		},
		"buf_set": func(_ context.Context, s []uint64) {
			m.buffer("pxt.buf_set", s[0]).Set(int(api.DecodeI32(s[1])), byte(api.DecodeU32(s[2])))
		},
		"buf_len": func(_ context.Context, s []uint64) {
			s[0] = api.EncodeI32(int32(m.buffer("pxt.buf_len", s[0]).Len()))
		},

		"get_global": func(_ context.Context, s []uint64) {
			s[0] = api.EncodeU32(m.globals[m.global("pxt.get_global", s[0])])
		},
		"set_global": func(_ context.Context, s []uint64) {
			m.globals[m.global("pxt.set_global", s[0])] = api.DecodeU32(s[1])
		},

		"panic": func(_ context.Context, s []uint64) {
			code := api.DecodeI32(s[0])
			m.heap.Fail(errors.New(errors.GuestTrap, errors.SubGuestPanic).
				Site("pxt.panic").
				Value(code).
				Detail("guest panic %d", code).
				Build())
		},
		"debug": func(_ context.Context, s []uint64) {
			m.logger.Debug("guest debug", zap.Int32("value", api.DecodeI32(s[0])))
		},
	}
}

func boolWord(ok bool) uint64 {
	if ok {
		return 1
	}
	return 0
}

// word returns the guest word for h.
func (m *Wasm) word(h heap.Handle) uint64 {
	return api.EncodeU32(m.words.Word(h))
}

// handle resolves a guest word. Words naming no live handle are
// use-after-free.
func (m *Wasm) handle(site string, v uint64) heap.Handle {
	word := api.DecodeU32(v)
	h, ok := m.words.Handle(word)
	if !ok {
		m.heap.Fail(errors.New(errors.ReferenceAlreadyDeleted, errors.SubStaleWord).
			Site(site).
			Value(word).
			Detail("word %#x names no live object", word).
			Build())
	}
	return h
}

func (m *Wasm) global(site string, v uint64) int {
	i := int(api.DecodeI32(v))
	if i < 0 || i >= len(m.globals) {
		m.heap.Fail(errors.IndexOutOfBounds(site, errors.SubGlobalIndex, i, 0, len(m.globals)))
	}
	return i
}

func (m *Wasm) record(site string, v uint64) *heap.Record {
	return expect[*heap.Record](m, site, v, heap.KindRecord)
}

func (m *Wasm) action(site string, v uint64) *heap.Action {
	return expect[*heap.Action](m, site, v, heap.KindAction)
}

func (m *Wasm) collection(site string, v uint64) *heap.Collection {
	return expect[*heap.Collection](m, site, v, heap.KindCollection)
}

func (m *Wasm) buffer(site string, v uint64) *heap.Buffer {
	return expect[*heap.Buffer](m, site, v, heap.KindBuffer)
}

func expect[T heap.Object](m *Wasm, site string, v uint64, want heap.Kind) T {
	h := m.handle(site, v)
	o, ok := heap.As[T](h)
	if !ok {
		m.heap.Fail(errors.New(errors.GuestTrap, errors.SubGuestKind).
			Site(site).
			Value(api.DecodeU32(v)).
			Detail("%s is not a %s", h, want).
			Build())
	}
	return o
}
