package detector

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openfluke/webgpu/wgpu"
)

// BudgetEnv overrides the soft device memory budget, in MiB.
const BudgetEnv = "NTG_BUDGET_MB"

// DefaultBudgetBytes is used when BudgetEnv is unset or malformed. Four
// 4096x4096 float32 maps fit with room for kernel scratch.
const DefaultBudgetBytes = uint64(512 * 1024 * 1024)

/* ---------- public API ---------- */

// Report is a portable summary of the adapter the generator will run on.
type Report struct {
	WhenISO     string          `json:"when_iso"`
	Backend     string          `json:"backend"`
	AdapterType string          `json:"adapter_type"`
	VendorID    string          `json:"vendor_id_hex"`
	DeviceID    string          `json:"device_id_hex"`
	Name        string          `json:"name"`
	Driver      string          `json:"driver"`
	Recommended Recommendations `json:"recommended"`
	Limits      Limits          `json:"limits"`
}

type Limits struct {
	MaxComputeInvocationsPerWorkgroup uint32 `json:"max_compute_invocations_per_workgroup"`
	MaxComputeWorkgroupSizeX          uint32 `json:"max_compute_workgroup_size_x"`
	MaxComputeWorkgroupsPerDimension  uint32 `json:"max_compute_workgroups_per_dimension"`
	MaxStorageBufferBindingSize       uint64 `json:"max_storage_buffer_binding_size"`
	MaxBufferSize                     uint64 `json:"max_buffer_size"`
}

type Recommendations struct {
	// 1D workgroup size for elementwise kernels.
	WorkgroupX uint32 `json:"workgroup_x"`

	// Soft budget in bytes for tensors kept resident on the device.
	BudgetBytes uint64 `json:"budget_bytes"`

	// Largest element count a single storage binding can hold.
	MaxElements uint64 `json:"max_elements"`
}

// JSON renders the report for the CLI's -probe output.
func (r *Report) JSON() (string, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Detect probes the default high performance adapter. It creates and
// releases its own instance so it can run before the compute context exists.
func Detect() (*Report, error) {
	inst := wgpu.CreateInstance(nil)
	if inst == nil {
		return nil, fmt.Errorf("wgpu.CreateInstance returned nil")
	}
	defer inst.Release()

	adapter, err := inst.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	if adapter == nil {
		return nil, fmt.Errorf("no adapter")
	}
	defer adapter.Release()

	return FromAdapter(adapter), nil
}

// FromAdapter builds a report for an adapter that is already open.
func FromAdapter(adapter *wgpu.Adapter) *Report {
	info := adapter.GetInfo()
	limits := adapter.GetLimits()
	l := Limits{
		MaxComputeInvocationsPerWorkgroup: limits.Limits.MaxComputeInvocationsPerWorkgroup,
		MaxComputeWorkgroupSizeX:          limits.Limits.MaxComputeWorkgroupSizeX,
		MaxComputeWorkgroupsPerDimension:  limits.Limits.MaxComputeWorkgroupsPerDimension,
		MaxStorageBufferBindingSize:       limits.Limits.MaxStorageBufferBindingSize,
		MaxBufferSize:                     limits.Limits.MaxBufferSize,
	}

	return &Report{
		WhenISO:     time.Now().UTC().Format(time.RFC3339),
		Backend:     info.BackendType.String(),
		AdapterType: info.AdapterType.String(),
		VendorID:    fmt.Sprintf("0x%04x", info.VendorId),
		DeviceID:    fmt.Sprintf("0x%04x", info.DeviceId),
		Name:        strings.TrimSpace(info.Name),
		Driver:      strings.TrimSpace(info.DriverDescription),
		Limits:      l,
		Recommended: Recommend(l, os.Getenv(BudgetEnv)),
	}
}

// Recommend derives launch and memory hints from adapter limits. budgetMB
// is the raw BudgetEnv value; empty or invalid values fall back to
// DefaultBudgetBytes.
func Recommend(l Limits, budgetMB string) Recommendations {
	return Recommendations{
		WorkgroupX:  chooseWorkgroup(l),
		BudgetBytes: parseBudget(budgetMB),
		MaxElements: maxElements(l),
	}
}

/* ---------- helpers ---------- */

func chooseWorkgroup(l Limits) uint32 {
	candidates := []uint32{256, 128, 64, 32, 16, 8, 4, 1}
	for _, c := range candidates {
		if c <= l.MaxComputeWorkgroupSizeX && c <= l.MaxComputeInvocationsPerWorkgroup {
			return c
		}
	}
	// absolute portability fallback
	return 1
}

func parseBudget(mbStr string) uint64 {
	if mbStr == "" {
		return DefaultBudgetBytes
	}
	mb, err := strconv.Atoi(strings.TrimSpace(mbStr))
	if err != nil || mb <= 0 {
		return DefaultBudgetBytes
	}
	return uint64(mb) * 1024 * 1024
}

func maxElements(l Limits) uint64 {
	n := l.MaxStorageBufferBindingSize
	if l.MaxBufferSize != 0 && l.MaxBufferSize < n {
		n = l.MaxBufferSize
	}
	return n / 4
}
