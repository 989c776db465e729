// Package symtab implements the flat, codegen-only symbol tables of
// spec.md §3.4: per-function locals and parameters, plus one
// process-level globals table. Lookup order is local → parameter →
// global, first hit wins. These are an opaque key/value store for
// the code generator — the parser and semantic validator never touch
// them, grounded on original_source's src/common/symbol_table.c
// bucket table, rendered here as flat maps since a function body's
// fanout is already capped at 32 declarations.
package symtab

const minCapacityHint = 32

// Local describes one local variable's frame accounting: its
// non-negative offset from the post-prologue SP, its storage size in
// bytes, and whether it holds a pointer (2 bytes) rather than a
// scalar (1 byte) — see spec.md §4.6.3.
type Local struct {
	Name      string
	Offset    int
	Size      int
	IsPointer bool
}

// Param describes one parameter's positive frame offset relative to
// IX (spec.md §4.6.2): offsets start at base+4, where base is the
// locals frame size, and increase by 2 per parameter, skipping the
// saved IX word and return address.
type Param struct {
	Name      string
	Offset    int
	IsPointer bool
}

// Global records only what codegen needs to reference a global by
// name: its mangled-name pointerness, for lowering identifier and
// assignment nodes that touch it.
type Global struct {
	Name      string
	IsPointer bool
}

// Function is the per-function symbol scope: locals and parameters
// populated by the frame-offset collection pass (spec.md §4.6.3)
// before any code is emitted for that function's body.
type Function struct {
	locals     map[string]Local
	localOrder []string
	params     map[string]Param
}

// NewFunction creates an empty per-function scope.
func NewFunction() *Function {
	return &Function{
		locals: make(map[string]Local, minCapacityHint),
		params: make(map[string]Param, minCapacityHint),
	}
}

// AddLocal registers a local at the next frame offset, returning it.
// Offsets accumulate in declaration order: the new local's offset is
// the running total of prior local sizes.
func (f *Function) AddLocal(name string, size int, isPointer bool) Local {
	offset := 0
	for _, n := range f.localOrder {
		offset += f.locals[n].Size
	}
	l := Local{Name: name, Offset: offset, Size: size, IsPointer: isPointer}
	f.locals[name] = l
	f.localOrder = append(f.localOrder, name)
	return l
}

// AddParam registers a parameter at frame offset base+4+2*index. base
// is the caller's current locals frame size: original_source's
// codegen_function re-anchors IX to the post-prologue SP (so locals
// sit at non-negative ix+offsets), which pushes every parameter's
// offset out past the full locals region before the saved-IX/return-
// address pair it skips. Callers with no locals pass base 0, giving
// the simpler 4+2*index the parser-facing documentation describes.
func (f *Function) AddParam(name string, index int, isPointer bool, base int) Param {
	p := Param{Name: name, Offset: base + 4 + 2*index, IsPointer: isPointer}
	f.params[name] = p
	return p
}

// LocalsSize is the total frame space locals occupy: sum(sizes), per
// spec.md §8.1's frame-offset invariant.
func (f *Function) LocalsSize() int {
	total := 0
	for _, n := range f.localOrder {
		total += f.locals[n].Size
	}
	return total
}

// Locals returns the registered locals in declaration order.
func (f *Function) Locals() []Local {
	out := make([]Local, 0, len(f.localOrder))
	for _, n := range f.localOrder {
		out = append(out, f.locals[n])
	}
	return out
}

// Globals is the process-level table of global variable names,
// shared across every function in a compilation unit.
type Globals struct {
	entries map[string]Global
}

// NewGlobals creates an empty globals table.
func NewGlobals() *Globals {
	return &Globals{entries: make(map[string]Global, minCapacityHint)}
}

// Add registers a global.
func (g *Globals) Add(name string, isPointer bool) {
	g.entries[name] = Global{Name: name, IsPointer: isPointer}
}

// Resolution is the result of Lookup's local → parameter → global
// resolution order of spec.md §3.4. Kind is ResolutionNone if name is
// not declared anywhere visible to the current function.
type Resolution struct {
	IsPointer bool
	Kind      ResolutionKind
	Local     Local
	Param     Param
}

// ResolutionKind distinguishes which table a Lookup hit came from.
type ResolutionKind uint8

const (
	ResolutionNone ResolutionKind = iota
	ResolutionLocal
	ResolutionParam
	ResolutionGlobal
)

// Lookup resolves name against fn (may be nil for file-scope lookups)
// then the shared globals table, first hit wins.
func Lookup(fn *Function, globals *Globals, name string) Resolution {
	if fn != nil {
		if l, ok := fn.locals[name]; ok {
			return Resolution{IsPointer: l.IsPointer, Kind: ResolutionLocal, Local: l}
		}
		if p, ok := fn.params[name]; ok {
			return Resolution{IsPointer: p.IsPointer, Kind: ResolutionParam, Param: p}
		}
	}
	if globals != nil {
		if g, ok := globals.entries[name]; ok {
			return Resolution{IsPointer: g.IsPointer, Kind: ResolutionGlobal}
		}
	}
	return Resolution{Kind: ResolutionNone}
}
