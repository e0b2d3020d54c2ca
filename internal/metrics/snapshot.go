package metrics

import "time"

// Snapshot is an immutable point-in-time set of readings. Values are only
// ever handed out by copy.
type Snapshot struct {
	Timestamp time.Time

	CPUUsagePct float64
	CPUTempC    float64

	MemUsagePct       float64
	MemAvailableBytes int64
	MemTotalBytes     int64

	DiskUsagePct       float64
	DiskAvailableBytes int64
	DiskTotalBytes     int64

	NetDownKBs   float64
	NetUpKBs     float64
	NetConnected bool
}

// Field identifies one tracked metric.
type Field int

const (
	FieldCPUUsage Field = iota
	FieldCPUTemperature
	FieldMemoryUsage
	FieldMemoryAvailable
	FieldMemoryTotal
	FieldDiskUsage
	FieldDiskAvailable
	FieldDiskTotal
	FieldNetworkDownload
	FieldNetworkUpload
	FieldNetworkConnected

	fieldCount
)

var fieldNames = [fieldCount]string{
	FieldCPUUsage:         "CpuUsage",
	FieldCPUTemperature:   "CpuTemperature",
	FieldMemoryUsage:      "MemoryUsage",
	FieldMemoryAvailable:  "AvailableMemory",
	FieldMemoryTotal:      "TotalMemory",
	FieldDiskUsage:        "DiskUsage",
	FieldDiskAvailable:    "AvailableDiskSpace",
	FieldDiskTotal:        "TotalDiskSpace",
	FieldNetworkDownload:  "NetworkDownloadSpeed",
	FieldNetworkUpload:    "NetworkUploadSpeed",
	FieldNetworkConnected: "IsNetworkConnected",
}

func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return "Unknown"
	}

	return fieldNames[f]
}

// Fields returns every tracked field in declaration order.
func Fields() []Field {
	fields := make([]Field, 0, fieldCount)
	for f := Field(0); f < fieldCount; f++ {
		fields = append(fields, f)
	}

	return fields
}

// Value returns the current value of f: float64 for percentages, rates and
// temperatures, int64 for byte counts, bool for connectivity.
func (s Snapshot) Value(f Field) any {
	switch f {
	case FieldCPUUsage:
		return s.CPUUsagePct
	case FieldCPUTemperature:
		return s.CPUTempC
	case FieldMemoryUsage:
		return s.MemUsagePct
	case FieldMemoryAvailable:
		return s.MemAvailableBytes
	case FieldMemoryTotal:
		return s.MemTotalBytes
	case FieldDiskUsage:
		return s.DiskUsagePct
	case FieldDiskAvailable:
		return s.DiskAvailableBytes
	case FieldDiskTotal:
		return s.DiskTotalBytes
	case FieldNetworkDownload:
		return s.NetDownKBs
	case FieldNetworkUpload:
		return s.NetUpKBs
	case FieldNetworkConnected:
		return s.NetConnected
	default:
		return nil
	}
}

// Change is emitted for every field whose value differs after an Apply.
type Change struct {
	Field Field
	Value any
	Time  time.Time
}
