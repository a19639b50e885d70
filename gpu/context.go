package gpu

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/openfluke/webgpu/wgpu"
)

// AdapterEnv names an environment variable holding a substring of the
// adapter name to prefer (for example "nvidia" or "intel").
const AdapterEnv = "NTG_ADAPTER"

// Context holds the single WebGPU context for the application
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	once     sync.Once
	err      error
}

var ctx Context

// GetContext returns the singleton GPU context, initializing it if necessary.
// A failed initialisation is remembered and returned on every later call.
func GetContext() (*Context, error) {
	ctx.once.Do(func() {
		ctx.err = ctx.init()
	})
	if ctx.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGPU, ctx.err)
	}
	if ctx.Device == nil || ctx.Queue == nil {
		return nil, fmt.Errorf("%w: device or queue not initialized", ErrNoGPU)
	}
	return &ctx, nil
}

func (c *Context) init() error {
	c.Instance = wgpu.CreateInstance(nil)
	if c.Instance == nil {
		return fmt.Errorf("failed to create WebGPU instance")
	}

	// Prefer an explicitly requested adapter, then a discrete NVIDIA part
	want := strings.ToLower(os.Getenv(AdapterEnv))
	if want == "" {
		want = "nvidia"
	}
	for _, a := range c.Instance.EnumerateAdapters(nil) {
		info := a.GetInfo()
		slog.Debug("webgpu adapter", "name", info.Name, "vendor", info.VendorName, "type", info.AdapterType)
		if strings.Contains(strings.ToLower(info.Name), want) ||
			strings.Contains(strings.ToLower(info.VendorName), want) {
			c.Adapter = a
			break
		}
	}

	var err error
	for _, opts := range []*wgpu.RequestAdapterOptions{
		{PowerPreference: wgpu.PowerPreferenceHighPerformance},
		{PowerPreference: wgpu.PowerPreferenceLowPower},
		nil,
	} {
		if c.Adapter != nil {
			break
		}
		c.Adapter, err = c.Instance.RequestAdapter(opts)
		if err != nil {
			slog.Debug("webgpu adapter request failed", "error", err)
		}
	}
	if c.Adapter == nil {
		return fmt.Errorf("all adapter attempts failed: %v", err)
	}

	info := c.Adapter.GetInfo()
	slog.Info("using webgpu adapter", "name", info.Name, "vendor", info.VendorName)

	c.Device, err = c.Adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}
	c.Queue = c.Device.GetQueue()
	return nil
}
