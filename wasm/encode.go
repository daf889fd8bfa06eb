package wasm

import "github.com/wippyai/pxt-runtime/wasm/internal/leb"

// Encode returns the module in binary format.
func (m *Module) Encode() []byte {
	var w leb.Writer
	w.U32LE(Magic)
	w.U32LE(Version)

	if len(m.Types) > 0 {
		var sec leb.Writer
		sec.U32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.Byte(funcTypeByte)
			writeValTypes(&sec, ft.Params)
			writeValTypes(&sec, ft.Results)
		}
		w.Section(SectionType, sec.Bytes())
	}

	if len(m.Imports) > 0 {
		var sec leb.Writer
		sec.U32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			sec.Name(imp.Module)
			sec.Name(imp.Name)
			sec.Byte(KindFunc)
			sec.U32(imp.TypeIdx)
		}
		w.Section(SectionImport, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		var sec leb.Writer
		sec.U32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			sec.U32(f.TypeIdx)
		}
		w.Section(SectionFunction, sec.Bytes())
	}

	if m.Memory != nil {
		var sec leb.Writer
		sec.U32(1)
		if m.Memory.Max != nil {
			sec.Byte(1)
			sec.U32(m.Memory.Min)
			sec.U32(*m.Memory.Max)
		} else {
			sec.Byte(0)
			sec.U32(m.Memory.Min)
		}
		w.Section(SectionMemory, sec.Bytes())
	}

	if len(m.Exports) > 0 {
		var sec leb.Writer
		sec.U32(uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			sec.Name(exp.Name)
			sec.Byte(exp.Kind)
			sec.U32(exp.Idx)
		}
		w.Section(SectionExport, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		var sec leb.Writer
		sec.U32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			var body leb.Writer
			writeLocals(&body, f.Locals)
			body.Raw(f.Body)
			sec.U32(uint32(body.Len()))
			sec.Raw(body.Bytes())
		}
		w.Section(SectionCode, sec.Bytes())
	}

	for _, cs := range m.Customs {
		var sec leb.Writer
		sec.Name(cs.Name)
		sec.Raw(cs.Data)
		w.Section(SectionCustom, sec.Bytes())
	}

	return w.Bytes()
}

func writeValTypes(w *leb.Writer, types []ValType) {
	w.U32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

// writeLocals groups consecutive locals of the same type.
func writeLocals(w *leb.Writer, locals []ValType) {
	type run struct {
		t ValType
		n uint32
	}
	var runs []run
	for _, t := range locals {
		if len(runs) > 0 && runs[len(runs)-1].t == t {
			runs[len(runs)-1].n++
			continue
		}
		runs = append(runs, run{t: t, n: 1})
	}
	w.U32(uint32(len(runs)))
	for _, r := range runs {
		w.U32(r.n)
		w.Byte(byte(r.t))
	}
}
