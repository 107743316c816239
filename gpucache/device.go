package gpucache

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/core"
	"github.com/gogpu/wgpu/types"
)

// DeviceHandle bundles the adapter/device/queue triple the harness needs
// to encode and submit GPU work, acquired once per process per spec.md
// §9 ("Global state... device and pipeline caches are process-wide").
type DeviceHandle struct {
	Adapter core.AdapterID
	Device  core.DeviceID
	Queue   core.QueueID
	owned   bool // true if this package acquired (and must release) it
}

// deviceAcquirer lets a gpucontext.DeviceProvider hand this package an
// already-created device instead of always owning one, the same
// duck-typed-provider pattern gg/integration/ggcanvas.Canvas uses to
// share a device with its accelerator without an import cycle.
type deviceAcquirer interface {
	AcquireDevice(ctx context.Context) (core.AdapterID, core.DeviceID, core.QueueID, error)
}

var (
	sharedMu    sync.Mutex
	sharedDev   *DeviceHandle
	sharedSem   = NewFIFOSemaphore()
	sharedCache = NewModuleCache()
)

// SharedCache returns the process-wide compiled-module cache.
func SharedCache() *ModuleCache { return sharedCache }

// SharedSemaphore returns the process-wide dispatch-serializing
// semaphore described in spec.md §5.
func SharedSemaphore() *FIFOSemaphore {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	return sharedSem
}

// GetSharedDevice lazily acquires (or returns the already-acquired)
// process-wide device. When provider implements deviceAcquirer, its
// device is reused instead of creating a second one; otherwise this
// package requests its own adapter/device via github.com/gogpu/wgpu/core,
// mirroring gg/backend/wgpu.createDevice's RequestDevice/GetDeviceQueue
// sequence.
func GetSharedDevice(ctx context.Context, provider gpucontext.DeviceProvider) (*DeviceHandle, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedDev != nil {
		return sharedDev, nil
	}

	if acquirer, ok := provider.(deviceAcquirer); ok {
		adapter, device, queue, err := acquirer.AcquireDevice(ctx)
		if err != nil {
			return nil, fmt.Errorf("gpucache: host-provided device acquisition failed: %w", err)
		}
		sharedDev = &DeviceHandle{Adapter: adapter, Device: device, Queue: queue, owned: false}
		return sharedDev, nil
	}

	adapter, err := core.RequestAdapter(&types.RequestAdapterOptions{})
	if err != nil {
		return nil, fmt.Errorf("gpucache: adapter request failed: %w", err)
	}
	device, err := core.RequestDevice(adapter, &types.DeviceDescriptor{
		Label:            "shadergraph-shared-device",
		RequiredLimits:   types.DefaultLimits(),
		RequiredFeatures: nil,
	})
	if err != nil {
		_ = core.AdapterDrop(adapter)
		return nil, fmt.Errorf("gpucache: device request failed: %w", err)
	}
	queue, err := core.GetDeviceQueue(device)
	if err != nil {
		_ = core.DeviceDrop(device)
		_ = core.AdapterDrop(adapter)
		return nil, fmt.Errorf("gpucache: queue acquisition failed: %w", err)
	}

	sharedDev = &DeviceHandle{Adapter: adapter, Device: device, Queue: queue, owned: true}
	return sharedDev, nil
}

// InvalidateSharedDevice marks the cached device invalid after a device
// -lost event (spec.md §5: "marks the cached device invalid so the next
// getSharedDevice re-acquires one"). It releases an owned device's
// handles and always drops the compiled-module cache, since pipelines
// and shader modules do not survive a lost device.
func InvalidateSharedDevice() {
	sharedMu.Lock()
	dev := sharedDev
	sharedDev = nil
	sharedMu.Unlock()

	if dev != nil && dev.owned {
		_ = core.DeviceDrop(dev.Device)
		_ = core.AdapterDrop(dev.Adapter)
	}
	sharedCache.Reset()
}

// ResetForTests is the explicit reset hook spec.md §9 calls for: "tests
// reset between suites to survive device-lost." It behaves like
// InvalidateSharedDevice plus resetting the semaphore's queue, so a test
// suite never inherits a prior suite's stuck waiters.
func ResetForTests() {
	InvalidateSharedDevice()
	sharedMu.Lock()
	sharedSem = NewFIFOSemaphore()
	sharedMu.Unlock()
}
