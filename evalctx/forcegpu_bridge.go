package evalctx

import (
	"fmt"

	"github.com/gogpu/shadergraph/forcegpu"
	"github.com/gogpu/shadergraph/ops"
)

func componentWidth(tag string) int {
	switch tag {
	case "float2", "int2":
		return 2
	case "float3", "int3":
		return 3
	case "float4", "int4":
		return 4
	case "float3x3":
		return 9
	case "float4x4":
		return 16
	default:
		return 1
	}
}

// ApplyCaptures reads the capture buffer resource populated by a
// Force-GPU trampoline run and writes each captured slot back into ctx,
// per forcegpu.Capture's doc comment ("so the caller... knows how to
// write each slot back after readback", spec.md §4.6 step 5). Call this
// after ctx.Run(goCtx, result.Trampoline) returns.
func ApplyCaptures(ctx *Context, result *forcegpu.Result) error {
	state, ok := ctx.Resources[forcegpu.CaptureBufferID]
	if !ok {
		return fmt.Errorf("evalctx: capture buffer %q not found in context", forcegpu.CaptureBufferID)
	}
	for _, c := range result.Captures {
		w := componentWidth(c.Type)
		if c.Offset+w > len(state.Data) {
			return fmt.Errorf("evalctx: capture slot for %q overruns the capture buffer", captureLabel(c))
		}
		value := append(ops.Vec(nil), state.Data[c.Offset:c.Offset+w]...)
		switch c.Kind {
		case forcegpu.CaptureVar:
			ctx.Inputs[c.VarID] = value
		case forcegpu.CaptureReturn:
			ctx.Result = value
		default:
			return fmt.Errorf("evalctx: unknown capture kind %q", c.Kind)
		}
	}
	return nil
}

func captureLabel(c forcegpu.Capture) string {
	if c.Kind == forcegpu.CaptureVar {
		return c.VarID
	}
	return "return"
}
