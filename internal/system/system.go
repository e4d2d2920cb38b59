// Package system wraps process-level concerns: ffmpeg capability probing,
// media probing with ffprobe and resource usage reporting.
package system

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// InitResourceLimits raises the open file limit. A render keeps the scene's
// SVG files, GPS logs and map tiles open at various points and the default
// soft limit can be low.
func InitResourceLimits(log *zap.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn("could not read open file limit", zap.Error(err))
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn("could not raise open file limit", zap.Error(err))
	} else {
		log.Debug("open file limit raised",
			zap.Uint64("limit", rLimit.Cur))
	}
}

// GetBestH264Encoder picks the fastest available H.264 encoder, falling
// back to software libx264.
func GetBestH264Encoder() string {
	encoders := []string{
		"h264_videotoolbox",
		"h264_nvenc",
	}

	cmd := exec.Command("ffmpeg", "-encoders")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "libx264"
	}

	for _, enc := range encoders {
		if strings.Contains(string(out), enc) {
			return enc
		}
	}

	return "libx264"
}

// GetVideoLength returns the duration in seconds of a media file.
func GetVideoLength(path string) (float64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe error: %v, output: %s",
			err, string(out))
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f",
		&duration); err != nil {
		return 0, fmt.Errorf("unexpected ffprobe output %q: %w",
			strings.TrimSpace(string(out)), err)
	}

	return duration, nil
}

// LogResourceUsage reports the current process's memory and CPU use, for
// tracking long renders.
func LogResourceUsage(log *zap.Logger) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Debug("could not inspect process", zap.Error(err))
		return
	}

	fields := []zap.Field{}

	if mem, err := proc.MemoryInfo(); err == nil {
		fields = append(fields,
			zap.Uint64("rss_mb", mem.RSS/(1024*1024)))
	}

	if cpu, err := proc.CPUPercent(); err == nil {
		fields = append(fields, zap.Float64("cpu_percent", cpu))
	}

	log.Info("resource usage", fields...)
}
