package monitor

import (
	"net"
	"os"
	"runtime"
	"time"
)

var startedAt = time.Now()

// ServerInfo is a point-in-time snapshot of the host and the Go runtime.
type ServerInfo struct {
	Hostname      string `json:"hostname"`
	IP            string `json:"ip"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	GoVersion     string `json:"goVersion"`
	NumCPU        int    `json:"numCpu"`
	NumGoroutine  int    `json:"numGoroutine"`
	PID           int    `json:"pid"`
	WorkDir       string `json:"workDir"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	HeapAllocMB   uint64 `json:"heapAllocMb"`
	HeapSysMB     uint64 `json:"heapSysMb"`
	NumGC         uint32 `json:"numGc"`
}

// CollectServerInfo gathers host and runtime stats for /monitor/server.
func CollectServerInfo() ServerInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	hostname, _ := os.Hostname()
	wd, _ := os.Getwd()

	return ServerInfo{
		Hostname:      hostname,
		IP:            outboundIP(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
		PID:           os.Getpid(),
		WorkDir:       wd,
		UptimeSeconds: int64(time.Since(startedAt).Seconds()),
		HeapAllocMB:   ms.HeapAlloc / 1024 / 1024,
		HeapSysMB:     ms.HeapSys / 1024 / 1024,
		NumGC:         ms.NumGC,
	}
}

// outboundIP finds the interface address the host would use for outbound
// traffic. No packet is sent.
func outboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1"
	}
	return addr.IP.String()
}
