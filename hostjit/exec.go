package hostjit

import (
	"context"
	"fmt"

	"github.com/gogpu/shadergraph/ir"
	"github.com/gogpu/shadergraph/ops"
)

// exec walks the execution graph starting at id, interpreting one
// statement per executable node and following exec_out/exec_true/
// exec_false/exec_body/exec_completed edges, mirroring
// shadergen.Writer.emitExec's traversal but performing side effects
// immediately instead of emitting text.
func (r *run) exec(ctx context.Context, id ir.NodeID) error {
	for {
		if r.returned {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		n, ok := r.p.fn.NodeByID(id)
		if !ok {
			return fmt.Errorf("hostjit: execution edge references unknown node %q", id)
		}

		next, done, err := r.execStmt(ctx, id, n)
		if err != nil {
			return err
		}
		if done || next == "" {
			return nil
		}
		id = next
	}
}

func (r *run) execStmt(ctx context.Context, id ir.NodeID, n *ir.Node) (next ir.NodeID, done bool, err error) {
	switch n.Op {
	case "var_set":
		if err := r.execVarSet(ctx, id, n); err != nil {
			return "", false, err
		}
	case "buffer_store":
		if err := r.execBufferStore(ctx, id, n); err != nil {
			return "", false, err
		}
	case "texture_store":
		if err := r.execTextureStore(ctx, id, n); err != nil {
			return "", false, err
		}
	case "call_func":
		if _, err := r.evalCall(ctx, id, n); err != nil {
			return "", false, err
		}
	case "func_return":
		r.result = nil // func_return with no value is legal (void cpu functions)
		if _, _, ok := r.p.fn.DataSource(id, "val"); ok || n.Aux["val"] != nil {
			v, err := r.input(ctx, id, n, "val")
			if err != nil {
				return "", false, err
			}
			r.result = v
		}
		r.returned = true
		return "", true, nil
	case "flow_branch":
		if err := r.execBranch(ctx, id, n); err != nil {
			return "", false, err
		}
		return "", true, nil
	case "flow_loop":
		if err := r.execLoop(ctx, id, n); err != nil {
			return "", false, err
		}
		if completed, ok := r.p.fn.ExecSuccessor(id, "exec_completed"); ok {
			return "", true, r.exec(ctx, completed)
		}
		return "", true, nil
	case "cmd_dispatch":
		if err := r.execDispatch(ctx, id, n); err != nil {
			return "", false, err
		}
	case "cmd_draw":
		if err := r.execDraw(ctx, id, n); err != nil {
			return "", false, err
		}
	case "cmd_resize_resource":
		if err := r.execResize(ctx, id, n); err != nil {
			return "", false, err
		}
	case "cmd_sync_to_cpu":
		if err := r.requireGlobals(); err != nil {
			return "", false, err
		}
		res, _ := n.Aux["resource"].(string)
		if err := r.rc.Globals.SyncToCPU(ctx, ir.ResourceID(res)); err != nil {
			return "", false, err
		}
	case "cmd_wait_cpu_sync":
		if err := r.requireGlobals(); err != nil {
			return "", false, err
		}
		res, _ := n.Aux["resource"].(string)
		if err := r.rc.Globals.WaitCPUSync(ctx, ir.ResourceID(res)); err != nil {
			return "", false, err
		}
	default:
		return "", false, fmt.Errorf("hostjit: node %q has op %q, which is not executable", id, n.Op)
	}

	out, ok := r.p.fn.ExecSuccessor(id, "exec_out")
	if !ok {
		return "", true, nil
	}
	return out, false, nil
}

func (r *run) requireGlobals() error {
	if r.rc.Globals == nil {
		return fmt.Errorf("hostjit: this program dispatches GPU work and requires a Globals facade")
	}
	return nil
}

func (r *run) execVarSet(ctx context.Context, id ir.NodeID, n *ir.Node) error {
	varID, _ := n.Aux["var"].(string)
	value, err := r.input(ctx, id, n, "value")
	if err != nil {
		return err
	}
	if _, ok := r.p.fn.LocalVarByID(varID); ok {
		r.frame.locals[varID] = value
		return nil
	}
	if r.rc.Variables == nil {
		return fmt.Errorf("hostjit: var_set references unresolved variable %q and no Variables facade is bound", varID)
	}
	r.rc.Variables.Set(varID, value)
	return nil
}

func (r *run) execBufferStore(ctx context.Context, id ir.NodeID, n *ir.Node) error {
	buf, _ := n.Aux["buffer"].(string)
	idx, err := r.input(ctx, id, n, "index")
	if err != nil {
		return err
	}
	value, err := r.input(ctx, id, n, "value")
	if err != nil {
		return err
	}
	return r.rc.SetBufferElement(buf, int(idx[0]), value[0])
}

func (r *run) execTextureStore(ctx context.Context, id ir.NodeID, n *ir.Node) error {
	tex, _ := n.Aux["texture"].(string)
	coord, err := r.input(ctx, id, n, "coord")
	if err != nil {
		return err
	}
	value, err := r.input(ctx, id, n, "value")
	if err != nil {
		return err
	}
	x, y := int(coord[0]), int(coord[1])
	if r.rc.Textures == nil {
		r.rc.Textures = map[string][][]ops.Vec{}
	}
	rows := r.rc.Textures[tex]
	for len(rows) <= y {
		rows = append(rows, nil)
	}
	for len(rows[y]) <= x {
		rows[y] = append(rows[y], nil)
	}
	rows[y][x] = value
	r.rc.Textures[tex] = rows
	return nil
}

// execBranch interprets flow_branch as a native if/else: only the taken
// arm is walked, so unlike shadergen's emission (which must print both
// arms as source text) the interpreter does no duplication of work.
func (r *run) execBranch(ctx context.Context, id ir.NodeID, n *ir.Node) error {
	cond, err := r.input(ctx, id, n, "cond")
	if err != nil {
		cond, err = r.input(ctx, id, n, "condition")
		if err != nil {
			return err
		}
	}
	if cond.Bool() {
		if trueNode, ok := r.p.fn.ExecSuccessor(id, "exec_true"); ok {
			return r.exec(ctx, trueNode)
		}
		return nil
	}
	if falseNode, ok := r.p.fn.ExecSuccessor(id, "exec_false"); ok {
		return r.exec(ctx, falseNode)
	}
	return nil
}

// execLoop interprets flow_loop as a counted native loop, rebinding
// loop_index for each iteration.
func (r *run) execLoop(ctx context.Context, id ir.NodeID, n *ir.Node) error {
	start, err := r.input(ctx, id, n, "start")
	if err != nil {
		start = ops.Scalar(0)
	}
	end, err := r.input(ctx, id, n, "end")
	if err != nil {
		return err
	}

	prevIndex := r.loopIndex
	defer func() { r.loopIndex = prevIndex }()

	body, hasBody := r.p.fn.ExecSuccessor(id, "exec_body")
	for i := int(start[0]); i < int(end[0]); i++ {
		if r.returned {
			return nil
		}
		r.loopIndex = i
		if hasBody {
			if err := r.exec(ctx, body); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *run) execDispatch(ctx context.Context, id ir.NodeID, n *ir.Node) error {
	if err := r.requireGlobals(); err != nil {
		return err
	}
	fnName, _ := n.Aux["func"].(string)
	dispatch, err := dispatchSize(n.Aux["dispatch"])
	if err != nil {
		return err
	}
	args, _ := n.Aux["args"].(map[string]any)
	vecArgs := make(map[string]ops.Vec, len(args))
	for k, raw := range args {
		v, err := r.fromAny(ctx, raw, "")
		if err != nil {
			return err
		}
		vecArgs[k] = v
	}
	return r.rc.Globals.Dispatch(ctx, ir.FunctionID(fnName), dispatch, vecArgs)
}

func dispatchSize(raw any) ([3]int, error) {
	vals, ok := raw.([]any)
	if !ok || len(vals) != 3 {
		return [3]int{}, fmt.Errorf("hostjit: cmd_dispatch requires a 3-element dispatch size")
	}
	var out [3]int
	for i, v := range vals {
		f, err := toFloat(v)
		if err != nil {
			return [3]int{}, err
		}
		out[i] = int(f)
	}
	return out, nil
}

func (r *run) execDraw(ctx context.Context, id ir.NodeID, n *ir.Node) error {
	if err := r.requireGlobals(); err != nil {
		return err
	}
	target, _ := n.Aux["target"].(string)
	vertexFn, _ := n.Aux["vertex"].(string)
	fragFn, _ := n.Aux["fragment"].(string)
	count, err := r.input(ctx, id, n, "count")
	if err != nil {
		return err
	}
	return r.rc.Globals.Draw(ctx, ir.ResourceID(target), ir.FunctionID(vertexFn), ir.FunctionID(fragFn), int(count[0]))
}

func (r *run) execResize(ctx context.Context, id ir.NodeID, n *ir.Node) error {
	if err := r.requireGlobals(); err != nil {
		return err
	}
	res, _ := n.Aux["resource"].(string)
	width, err := r.input(ctx, id, n, "width")
	if err != nil {
		return err
	}
	height, err := r.input(ctx, id, n, "height")
	if err != nil {
		return err
	}
	return r.rc.Globals.Resize(ctx, ir.ResourceID(res), ir.Size2D{Width: int(width[0]), Height: int(height[0])})
}
