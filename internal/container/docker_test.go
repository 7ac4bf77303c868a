package container

import (
	"strings"
	"testing"
)

func statsJSONFixture() dockerStatsJSON {
	var raw dockerStatsJSON
	raw.CPUStats.CPUUsage.Total = 2000000000
	raw.CPUStats.CPUUsage.PercpuUsage = []uint64{0, 0}
	raw.CPUStats.SystemUsage = 10000000000
	raw.PreCPUStats.CPUUsage.Total = 1000000000
	raw.PreCPUStats.SystemUsage = 8000000000
	raw.MemoryStats.Usage = 256 * 1024 * 1024
	raw.MemoryStats.Limit = 1024 * 1024 * 1024
	raw.Networks = map[string]struct {
		RxBytes uint64 `json:"rx_bytes"`
		TxBytes uint64 `json:"tx_bytes"`
	}{
		"eth0": {RxBytes: 1000, TxBytes: 500},
	}
	raw.BlkioStats.IoServiceBytesRecursive = []struct {
		Op    string `json:"op"`
		Value uint64 `json:"value"`
	}{
		{Op: "Read", Value: 4096},
		{Op: "Write", Value: 8192},
	}
	return raw
}

func TestComputeMetrics_CPUPercentFromDeltas(t *testing.T) {
	raw := statsJSONFixture()
	m := computeMetrics(raw)

	// cpuDelta=1e9, sysDelta=2e9, 2 cpus -> (1e9/2e9)*2*100 = 100
	if m.CPUPercent != 100 {
		t.Errorf("expected CPUPercent 100, got %v", m.CPUPercent)
	}
}

func TestComputeMetrics_MemPercent(t *testing.T) {
	m := computeMetrics(statsJSONFixture())
	if m.MemUsageBytes != 256*1024*1024 {
		t.Errorf("unexpected MemUsageBytes: %d", m.MemUsageBytes)
	}
	if m.MemPercent != 25 {
		t.Errorf("expected MemPercent 25, got %v", m.MemPercent)
	}
}

func TestComputeMetrics_NetworkSumsAcrossInterfaces(t *testing.T) {
	m := computeMetrics(statsJSONFixture())
	if m.NetRxBytes != 1000 || m.NetTxBytes != 500 {
		t.Errorf("unexpected network totals: rx=%d tx=%d", m.NetRxBytes, m.NetTxBytes)
	}
}

func TestComputeMetrics_BlockIOSplitByOp(t *testing.T) {
	m := computeMetrics(statsJSONFixture())
	if m.BlockReadBytes != 4096 {
		t.Errorf("expected BlockReadBytes 4096, got %d", m.BlockReadBytes)
	}
	if m.BlockWriteBytes != 8192 {
		t.Errorf("expected BlockWriteBytes 8192, got %d", m.BlockWriteBytes)
	}
}

func TestComputeMetrics_ZeroSysDeltaAvoidsDivideByZero(t *testing.T) {
	var raw dockerStatsJSON
	raw.CPUStats.SystemUsage = 100
	raw.PreCPUStats.SystemUsage = 100
	m := computeMetrics(raw)
	if m.CPUPercent != 0 {
		t.Errorf("expected CPUPercent 0 when sysDelta is 0, got %v", m.CPUPercent)
	}
}

func TestDecodeJSON_DecodesStatsShape(t *testing.T) {
	body := `{"cpu_stats":{"cpu_usage":{"total_usage":10,"percpu_usage":[0]},"system_cpu_usage":100},
"precpu_stats":{"cpu_usage":{"total_usage":5},"system_cpu_usage":50},
"memory_stats":{"usage":1000,"limit":2000},
"networks":{"eth0":{"rx_bytes":10,"tx_bytes":20}},
"blkio_stats":{"io_service_bytes_recursive":[{"op":"read","value":1}]}}`

	var raw dockerStatsJSON
	if err := decodeJSON(strings.NewReader(body), &raw); err != nil {
		t.Fatalf("decodeJSON failed: %v", err)
	}
	if raw.MemoryStats.Usage != 1000 {
		t.Errorf("expected memory usage 1000, got %d", raw.MemoryStats.Usage)
	}
}

func TestParseDockerMemLimit_EmptyIsZero(t *testing.T) {
	if got := parseDockerMemLimit(""); got != 0 {
		t.Errorf("expected 0 for empty limit, got %d", got)
	}
}

func TestParseDockerMemLimit_ParsesByteSize(t *testing.T) {
	if got := parseDockerMemLimit("2gb"); got != 2*1024*1024*1024 {
		t.Errorf("expected 2GiB in bytes, got %d", got)
	}
}

func TestParseDockerMemLimit_ParsesBareUnitSuffix(t *testing.T) {
	if got := parseDockerMemLimit("2g"); got != 2*1024*1024*1024 {
		t.Errorf("expected 2GiB in bytes for bare suffix, got %d", got)
	}
	if got := parseDockerMemLimit("512m"); got != 512*1024*1024 {
		t.Errorf("expected 512MiB in bytes for bare suffix, got %d", got)
	}
}
