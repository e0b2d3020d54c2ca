package metrics

// Update is a partial set of readings from one tick. Nil fields were not
// sampled (or failed) and leave the stored value untouched.
type Update struct {
	CPUUsagePct *float64
	CPUTempC    *float64

	MemUsagePct       *float64
	MemAvailableBytes *int64
	MemTotalBytes     *int64

	DiskUsagePct       *float64
	DiskAvailableBytes *int64
	DiskTotalBytes     *int64

	NetDownKBs   *float64
	NetUpKBs     *float64
	NetConnected *bool
}

func (u *Update) SetCPU(usagePct, tempC float64) {
	u.CPUUsagePct = &usagePct
	u.CPUTempC = &tempC
}

func (u *Update) SetMemory(usedPct float64, availableBytes, totalBytes int64) {
	u.MemUsagePct = &usedPct
	u.MemAvailableBytes = &availableBytes
	u.MemTotalBytes = &totalBytes
}

func (u *Update) SetDisk(usagePct float64, availableBytes, totalBytes int64) {
	u.DiskUsagePct = &usagePct
	u.DiskAvailableBytes = &availableBytes
	u.DiskTotalBytes = &totalBytes
}

func (u *Update) SetThroughput(downKBs, upKBs float64) {
	u.NetDownKBs = &downKBs
	u.NetUpKBs = &upKBs
}

func (u *Update) SetConnected(connected bool) {
	u.NetConnected = &connected
}

// Empty reports whether no field is present.
func (u *Update) Empty() bool {
	return u.CPUUsagePct == nil && u.CPUTempC == nil &&
		u.MemUsagePct == nil && u.MemAvailableBytes == nil && u.MemTotalBytes == nil &&
		u.DiskUsagePct == nil && u.DiskAvailableBytes == nil && u.DiskTotalBytes == nil &&
		u.NetDownKBs == nil && u.NetUpKBs == nil && u.NetConnected == nil
}
