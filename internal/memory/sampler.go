package memory

import (
	"os"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// SystemSampler reads system and process memory via gopsutil. Process RSS is
// best-effort: a failure there still yields a usable system reading.
func SystemSampler() (Sample, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Sample{}, err
	}
	s := Sample{
		TotalBytes:     vm.Total,
		AvailableBytes: vm.Available,
		UsedBytes:      vm.Used,
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil && mi != nil {
			s.ProcessRSSBytes = mi.RSS
		}
	}
	return s, nil
}
