package report

import (
	"fmt"
	"runtime"

	"github.com/pbnjay/memory"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
)

const bytesPerGB = 1024 * 1024 * 1024

// Environment describes the machine the results were produced on.
type Environment struct {
	OS        string `json:"os"`
	CPU       string `json:"cpu"`
	CoreCount int    `json:"coreCount"`
	Memory    string `json:"memory"`
}

// NewEnvironment inspects the current host. Missing details degrade to "Unknown".
func NewEnvironment() Environment {
	osName := fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	if info, err := host.Info(); err == nil {
		osName = fmt.Sprintf("%s (%s %s)", osName, info.Platform, info.PlatformVersion)
	}
	return Environment{
		OS:        osName,
		CPU:       cpuModel(),
		CoreCount: runtime.NumCPU(),
		Memory:    fmt.Sprintf("%.1fGB", float64(memory.TotalMemory())/bytesPerGB),
	}
}

func cpuModel() string {
	info, err := cpu.Info()
	if err != nil || len(info) == 0 {
		return "Unknown"
	}
	model := info[0].ModelName
	if model == "" {
		model = "Chip"
	}
	return fmt.Sprintf("%s %s", info[0].VendorID, model)
}

// Banner is the one-line summary printed before judging starts.
func (e Environment) Banner() string {
	return fmt.Sprintf("%s, %s x%d, %s RAM", e.OS, e.CPU, e.CoreCount, e.Memory)
}
