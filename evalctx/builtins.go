package evalctx

import "github.com/gogpu/shadergraph/ops"

// builtinsFacade implements hostjit.Builtins over a Context's builtin
// map. It is a separate type from Context because hostjit.Variables and
// hostjit.Builtins both declare a Get(name string) (ops.Vec, bool)
// method with different semantics; Go cannot give one type two
// differently-behaved methods of the same name.
type builtinsFacade struct {
	ctx *Context
}

// Get implements hostjit.Builtins, reading caller-supplied builtin
// values (time, delta_time, bpm, beat_number, beat_delta per spec.md
// §4.2/§7).
func (b builtinsFacade) Get(name string) (ops.Vec, bool) {
	v, ok := b.ctx.builtins[name]
	return v, ok
}
