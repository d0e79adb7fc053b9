package actor

import (
	"github.com/shirou/gopsutil/v3/process"
)

// memoryBytes reports the daemon's own RSS for the Status reply's
// memory_bytes field (spec §4.1 table, SPEC_FULL §4.8 domain stack). A
// failure (process gone, unsupported platform) just omits the field.
func memoryBytes(pid int) uint64 {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	info, err := proc.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return info.RSS
}
