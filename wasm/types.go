package wasm

import (
	"fmt"
	"strconv"
	"strings"
)

// Binary format header.
const (
	Magic   uint32 = 0x6D736100
	Version uint32 = 0x01
)

// Section IDs.
const (
	SectionCustom   byte = 0
	SectionType     byte = 1
	SectionImport   byte = 2
	SectionFunction byte = 3
	SectionMemory   byte = 5
	SectionExport   byte = 7
	SectionCode     byte = 10
)

// Import and export kinds.
const (
	KindFunc   byte = 0
	KindMemory byte = 2
)

const funcTypeByte byte = 0x60

// ValType is a value type encoding.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
)

func (v ValType) String() string {
	switch v {
	case I32:
		return "i32"
	case I64:
		return "i64"
	}
	return fmt.Sprintf("valtype(%#x)", byte(v))
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (f FuncType) equal(o FuncType) bool {
	return sameTypes(f.Params, o.Params) && sameTypes(f.Results, o.Results)
}

func sameTypes(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// EntryType is the signature of every closure body:
// (self, env, arg i32) -> i32.
var EntryType = FuncType{Params: []ValType{I32, I32, I32}, Results: []ValType{I32}}

// EntryPrefix starts the export name of a closure body.
const EntryPrefix = "pxt_entry_"

// EntryName returns the export name of the closure body for the entry marker
// at word offset startptr.
func EntryName(startptr int) string {
	return EntryPrefix + strconv.Itoa(startptr)
}

// ParseEntryName reverses EntryName.
func ParseEntryName(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, EntryPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Import is a function import.
type Import struct {
	Module  string
	Name    string
	TypeIdx uint32
}

// Export names a function or memory.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Func is a defined function.
type Func struct {
	Locals  []ValType
	Body    []byte
	TypeIdx uint32
}

// Memory declares a linear memory in 64KiB pages.
type Memory struct {
	Max *uint32
	Min uint32
}

// CustomSection carries opaque named data.
type CustomSection struct {
	Name string
	Data []byte
}

// Module is an in-memory guest module.
type Module struct {
	Memory  *Memory
	Types   []FuncType
	Imports []Import
	Funcs   []Func
	Exports []Export
	Customs []CustomSection
}

// TypeIndex returns the index of ft, adding it when missing.
func (m *Module) TypeIndex(ft FuncType) uint32 {
	for i, t := range m.Types {
		if t.equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// ImportFunc adds a function import and returns its function index. It
// panics once a function has been defined.
func (m *Module) ImportFunc(module, name string, ft FuncType) uint32 {
	if len(m.Funcs) > 0 {
		panic("wasm: import added after a defined function")
	}
	m.Imports = append(m.Imports, Import{Module: module, Name: name, TypeIdx: m.TypeIndex(ft)})
	return uint32(len(m.Imports) - 1)
}

// AddFunc defines a function with the body built by code and returns its
// function index.
func (m *Module) AddFunc(ft FuncType, code *Code, locals ...ValType) uint32 {
	m.Funcs = append(m.Funcs, Func{TypeIdx: m.TypeIndex(ft), Locals: locals, Body: code.Bytes()})
	return uint32(len(m.Imports) + len(m.Funcs) - 1)
}

// ExportFunc exports function idx under name.
func (m *Module) ExportFunc(name string, idx uint32) {
	m.Exports = append(m.Exports, Export{Name: name, Kind: KindFunc, Idx: idx})
}

// ExportMemory declares memory 0 with min pages and exports it under name.
func (m *Module) ExportMemory(name string, min uint32) {
	m.Memory = &Memory{Min: min}
	m.Exports = append(m.Exports, Export{Name: name, Kind: KindMemory})
}
