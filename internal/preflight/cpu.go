package preflight

import (
	"fmt"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// CPUInfo summarizes the host features that matter for INT8 inference.
type CPUInfo struct {
	Brand         string `json:"brand"`
	Vendor        string `json:"vendor"`
	PhysicalCores int    `json:"physical_cores"`
	LogicalCores  int    `json:"logical_cores"`
	AVX2          bool   `json:"avx2"`
	AVX512F       bool   `json:"avx512f"`
	AVX512VNNI    bool   `json:"avx512_vnni"`
	AVXVNNI       bool   `json:"avx_vnni"`
}

// DetectCPU reads the host CPU via cpuid.
func DetectCPU() CPUInfo {
	return CPUInfo{
		Brand:         strings.TrimSpace(cpuid.CPU.BrandName),
		Vendor:        cpuid.CPU.VendorString,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		AVX2:          cpuid.CPU.Supports(cpuid.AVX2),
		AVX512F:       cpuid.CPU.Supports(cpuid.AVX512F),
		AVX512VNNI:    cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512VNNI),
		AVXVNNI:       cpuid.CPU.Supports(cpuid.AVXVNNI),
	}
}

// Features lists the supported SIMD extensions.
func (c CPUInfo) Features() []string {
	var out []string
	if c.AVX2 {
		out = append(out, "AVX2")
	}
	if c.AVX512F {
		out = append(out, "AVX512F")
	}
	if c.AVX512VNNI {
		out = append(out, "AVX512_VNNI")
	}
	if c.AVXVNNI {
		out = append(out, "AVX_VNNI")
	}
	return out
}

// HasVNNI reports whether either VNNI flavour is available.
func (c CPUInfo) HasVNNI() bool {
	return c.AVX512VNNI || c.AVXVNNI
}

// Summary renders a one-line description of the CPU.
func (c CPUInfo) Summary() string {
	brand := c.Brand
	if brand == "" {
		brand = "unknown CPU"
	}
	features := "none"
	if f := c.Features(); len(f) > 0 {
		features = strings.Join(f, " ")
	}
	return fmt.Sprintf("%s (%d cores, %d threads; %s)", brand, c.PhysicalCores, c.LogicalCores, features)
}

// CheckCPU reports CPU capabilities. INT8 kernels fall back to slower paths
// without VNNI, so the check is advisory.
func CheckCPU(info CPUInfo) Result {
	result := Result{Name: "CPU", Optional: true, Detail: info.Summary()}
	result.Passed = info.HasVNNI()
	if !result.Passed {
		result.Detail += " [no VNNI: INT8 latency will not be representative]"
	}
	return result
}
