package shadergen

import (
	"fmt"

	"github.com/gogpu/shadergraph/ir"
)

// emitExec walks the execution graph starting at id, emitting one
// statement per executable node and following exec_out/exec_true/
// exec_false/exec_body edges. visited is scoped to the current branch
// arm or loop body: per spec.md §4.3, each branch arm starts a fresh
// visitation set (so a node reachable from both arms is duplicated
// rather than merged), and a loop's body is its own nested scope.
func (w *Writer) emitExec(id ir.NodeID, visited map[ir.NodeID]bool) error {
	for {
		if visited[id] {
			return nil
		}
		visited[id] = true

		n, ok := w.fn.NodeByID(id)
		if !ok {
			return fmt.Errorf("shadergen: execution edge references unknown node %q", id)
		}

		next, done, err := w.emitStmt(id, n, visited)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if next == "" {
			return nil
		}
		id = next
	}
}

// emitStmt emits node n's side effect (if any) and returns the id of the
// next node to visit via exec_out, or done=true if this statement
// terminates its execution path (func_return) or has already continued
// traversal itself (flow_branch, flow_loop).
func (w *Writer) emitStmt(id ir.NodeID, n *ir.Node, visited map[ir.NodeID]bool) (next ir.NodeID, done bool, err error) {
	switch n.Op {
	case "var_set":
		if err := w.emitVarSet(id, n); err != nil {
			return "", false, err
		}
	case "buffer_store":
		if err := w.emitBufferStore(id, n); err != nil {
			return "", false, err
		}
	case "texture_store":
		if err := w.emitTextureStore(id, n); err != nil {
			return "", false, err
		}
	case "call_func":
		expr, err := w.lowerCallExpr(id, n)
		if err != nil {
			return "", false, err
		}
		w.writeLine(expr + ";")
	case "func_return":
		w.writeLine("return;")
		return "", true, nil
	case "flow_branch":
		if err := w.emitBranch(id, n, visited); err != nil {
			return "", false, err
		}
		return "", true, nil
	case "flow_loop":
		if err := w.emitLoop(id, n, visited); err != nil {
			return "", false, err
		}
		if completed, ok := w.fn.ExecSuccessor(id, "exec_completed"); ok {
			return "", true, w.emitExec(completed, map[ir.NodeID]bool{})
		}
		return "", true, nil
	case "cmd_dispatch", "cmd_draw", "cmd_resize_resource", "cmd_sync_to_cpu", "cmd_wait_cpu_sync":
		w.writeLine(fmt.Sprintf("// %s is a host-side command; not executable on this stage", n.Op))
	default:
		return "", false, fmt.Errorf("shadergen: node %q has op %q, which is not executable", id, n.Op)
	}

	out, ok := w.fn.ExecSuccessor(id, "exec_out")
	if !ok {
		return "", true, nil
	}
	return out, false, nil
}

func (w *Writer) emitVarSet(id ir.NodeID, n *ir.Node) error {
	varID, _ := n.Aux["var"].(string)
	vtype := w.varType(varID)
	value, err := w.resolveInput(id, n, "value", vtype)
	if err != nil {
		return err
	}
	if _, ok := w.fn.LocalVarByID(varID); ok {
		w.writeLine(fmt.Sprintf("%s = %s;", sanitizeIdent(varID), value))
		return nil
	}
	offset, ok := w.opts.VarMap[varID]
	if !ok {
		return fmt.Errorf("shadergen: var_set references unknown variable %q", varID)
	}
	w.emitGlobalsWrite(offset, vtype, value)
	return nil
}

func (w *Writer) varType(varID string) string {
	if lv, ok := w.fn.LocalVarByID(varID); ok {
		return lv.Type
	}
	return w.opts.VarTypes[varID]
}

// emitGlobalsWrite writes a (possibly multi-component) value into the flat
// globals.data array starting at offset, matching globalsReadExpr's layout.
func (w *Writer) emitGlobalsWrite(offset int, vtype, value string) {
	n := componentWidthOf(vtype)
	switch vtype {
	case "", "float":
		w.writeLine(fmt.Sprintf("globals.data[%d] = %s;", offset, value))
	case "int", "uint":
		w.writeLine(fmt.Sprintf("globals.data[%d] = f32(%s);", offset, value))
	case "bool":
		w.writeLine(fmt.Sprintf("globals.data[%d] = select(0.0, 1.0, %s);", offset, value))
	default:
		tmp := w.freshTemp()
		w.writeLine(fmt.Sprintf("let %s = %s;", tmp, value))
		for i := 0; i < n; i++ {
			w.writeLine(fmt.Sprintf("globals.data[%d] = %s[%d];", offset+i, tmp, i))
		}
	}
}

func (w *Writer) emitBufferStore(id ir.NodeID, n *ir.Node) error {
	buf, _ := n.Aux["buffer"].(string)
	idx, err := w.resolveInput(id, n, "index", "int")
	if err != nil {
		return err
	}
	value, err := w.resolveInput(id, n, "value", w.nodeType(id))
	if err != nil {
		return err
	}
	w.writeLine(fmt.Sprintf("%s.data[%s] = %s;", sanitizeIdent(buf), idx, value))
	return nil
}

func (w *Writer) emitTextureStore(id ir.NodeID, n *ir.Node) error {
	tex, _ := n.Aux["texture"].(string)
	coord, err := w.resolveInput(id, n, "coord", "int2")
	if err != nil {
		return err
	}
	value, err := w.resolveInput(id, n, "value", "float4")
	if err != nil {
		return err
	}
	w.writeLine(fmt.Sprintf("textureStore(%s, %s, %s);", sanitizeIdent(tex), coord, value))
	return nil
}

// emitBranch lowers flow_branch to an if/else whose arms each start a
// fresh visitation set: a node reachable from both arms (a merge point)
// is legitimately emitted twice, once per arm, rather than hoisted.
func (w *Writer) emitBranch(id ir.NodeID, n *ir.Node, _ map[ir.NodeID]bool) error {
	cond, err := w.resolveInput(id, n, "cond", "float")
	if err != nil {
		cond, err = w.resolveInput(id, n, "condition", "float")
		if err != nil {
			return err
		}
	}
	w.writeLine(fmt.Sprintf("if (%s != 0.0) {", cond))
	w.pushIndent()
	if trueNode, ok := w.fn.ExecSuccessor(id, "exec_true"); ok {
		if err := w.emitExec(trueNode, map[ir.NodeID]bool{}); err != nil {
			return err
		}
	}
	w.popIndent()
	if falseNode, ok := w.fn.ExecSuccessor(id, "exec_false"); ok {
		w.writeLine("} else {")
		w.pushIndent()
		if err := w.emitExec(falseNode, map[ir.NodeID]bool{}); err != nil {
			return err
		}
		w.popIndent()
		w.writeLine("}")
	} else {
		w.writeLine("}")
	}
	return nil
}

// emitLoop lowers flow_loop to a WGSL for-loop over [start, end), binding
// loop_index reads within the body to the loop variable. start defaults
// to 0 when unbound, matching package hostjit's execLoop.
func (w *Writer) emitLoop(id ir.NodeID, n *ir.Node, _ map[ir.NodeID]bool) error {
	start, err := w.resolveInput(id, n, "start", "int")
	if err != nil {
		start = "0"
	}
	end, err := w.resolveInput(id, n, "end", "int")
	if err != nil {
		return err
	}
	loopVar := fmt.Sprintf("_i%d", len(w.opts.VarMap)+w.tempCount)
	w.tempCount++

	prevLoopVar := w.currentLoopVar
	w.currentLoopVar = loopVar
	defer func() { w.currentLoopVar = prevLoopVar }()

	w.writeLine(fmt.Sprintf("for (var %s: i32 = %s; %s < %s; %s = %s + 1) {", loopVar, start, loopVar, end, loopVar, loopVar))
	w.pushIndent()
	if body, ok := w.fn.ExecSuccessor(id, "exec_body"); ok {
		if err := w.emitExec(body, map[ir.NodeID]bool{}); err != nil {
			return err
		}
	}
	w.popIndent()
	w.writeLine("}")
	return nil
}
