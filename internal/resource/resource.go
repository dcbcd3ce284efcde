// Package resource recommends a chunk size and a streaming posture for a
// file from its size and the memory available on the host.
//
// Every recommendation is advisory. Nothing here blocks or refuses work;
// callers decide whether to honor an Assessment.
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"

	"github.com/JonMunkholm/datacleaner/internal/errs"
)

// Chunk sizes in rows.
const (
	ChunkSmall          = 50_000
	ChunkMedium         = 100_000
	ChunkLarge          = 200_000
	ChunkMemoryFloor    = 100_000
	ChunkMemoryCeiling  = 500_000
	ChunkLargeFile      = 50_000
	ChunkMemoryPressure = 25_000
	ChunkDegraded       = 100_000

	// DefaultMaxRecommendedGB is the file size above which streaming is
	// recommended regardless of memory.
	DefaultMaxRecommendedGB = 8.0

	memoryUsageFactor = 0.7
	rowsPerMB         = 1000

	bytesPerMB = 1024 * 1024
	bytesPerGB = 1024 * 1024 * 1024
)

// ChunkSize returns the recommended rows per chunk for a file of the given
// size by tier: under 50 MB, under 500 MB, under 2000 MB, and above that a
// memory-proportional size clamped to [100k, 500k].
func ChunkSize(fileSizeMB, availableMemoryMB float64) int {
	switch {
	case fileSizeMB < 50:
		return ChunkSmall
	case fileSizeMB < 500:
		return ChunkMedium
	case fileSizeMB < 2000:
		return ChunkLarge
	}
	n := int(availableMemoryMB * memoryUsageFactor * rowsPerMB)
	return min(max(n, ChunkMemoryFloor), ChunkMemoryCeiling)
}

// Assessment describes, at one point in time, how a file should be read.
type Assessment struct {
	Path                 string  `json:"path"`
	FileSizeBytes        int64   `json:"file_size_bytes"`
	FileSizeGB           float64 `json:"file_size_gb"`
	AvailableMemoryGB    float64 `json:"available_memory_gb"`
	RecommendedChunkSize int     `json:"recommended_chunk_size"`
	Streaming            bool    `json:"streaming"`
	// MemoryRatio is file size over available memory; +Inf with no memory.
	MemoryRatio float64 `json:"memory_ratio"`
	// Moot is set when the file does not exist; downstream validation
	// reports the real error.
	Moot bool `json:"moot,omitempty"`
	// Degraded is set when system metrics could not be read and the
	// defaults below were used instead.
	Degraded bool  `json:"degraded,omitempty"`
	Err      error `json:"-"`
}

// MarshalJSON reports an infinite MemoryRatio as null and Err as a string.
func (a Assessment) MarshalJSON() ([]byte, error) {
	type plain Assessment
	out := struct {
		plain
		MemoryRatio *float64 `json:"memory_ratio"`
		Error       string   `json:"error,omitempty"`
	}{plain: plain(a)}
	if !math.IsInf(a.MemoryRatio, 0) && !math.IsNaN(a.MemoryRatio) {
		out.MemoryRatio = &a.MemoryRatio
	}
	if a.Err != nil {
		out.Error = a.Err.Error()
	}
	return json.Marshal(out)
}

// DegradedAssessment is the fallback used when memory cannot be measured.
func DegradedAssessment(path string, cause error) Assessment {
	return Assessment{
		Path:                 path,
		RecommendedChunkSize: ChunkDegraded,
		Streaming:            false,
		MemoryRatio:          0,
		Degraded:             true,
		Err:                  fmt.Errorf("%w: %v", errs.ErrResourceCheckDegraded, cause),
	}
}

// MemoryProbe reports memory currently available to the process, in bytes.
type MemoryProbe interface {
	AvailableMemory(ctx context.Context) (uint64, error)
}

// ProbeFunc adapts a function to MemoryProbe.
type ProbeFunc func(ctx context.Context) (uint64, error)

func (f ProbeFunc) AvailableMemory(ctx context.Context) (uint64, error) { return f(ctx) }

// Advisor assesses files against host memory.
type Advisor struct {
	MaxRecommendedGB float64     // <= 0 means DefaultMaxRecommendedGB
	Probe            MemoryProbe // nil means SystemProbe
	Logger           *slog.Logger
}

// NewAdvisor returns an Advisor using the host's memory.
func NewAdvisor(maxGB float64, logger *slog.Logger) *Advisor {
	return &Advisor{MaxRecommendedGB: maxGB, Probe: SystemProbe{}, Logger: logger}
}

func (a *Advisor) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Assess never returns an error. A missing file yields a moot assessment; a
// failed memory probe yields DegradedAssessment and is logged.
func (a *Advisor) Assess(ctx context.Context, path string) Assessment {
	log := a.logger()

	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Assessment{Path: path, RecommendedChunkSize: ChunkSmall, Moot: true}
	}
	if err != nil {
		log.Error("resource check failed", "path", path, "error", err)
		return DegradedAssessment(path, err)
	}

	probe := a.Probe
	if probe == nil {
		probe = SystemProbe{}
	}
	avail, err := probe.AvailableMemory(ctx)
	if err != nil {
		log.Error("resource check failed", "path", path, "error", err)
		return DegradedAssessment(path, err)
	}

	as := Evaluate(fi.Size(), avail, a.maxGB())
	as.Path = path

	if as.FileSizeGB > a.maxGB() {
		log.Warn("large file detected, streaming recommended",
			"path", path,
			"file_size_gb", round2(as.FileSizeGB),
			"max_recommended_gb", a.maxGB(),
		)
	}
	if as.Streaming && as.RecommendedChunkSize == ChunkMemoryPressure {
		log.Warn("limited memory, forcing streaming",
			"path", path,
			"available_memory_gb", round2(as.AvailableMemoryGB),
			"file_size_gb", round2(as.FileSizeGB),
		)
	}
	log.Debug("resource assessment",
		"path", path,
		"chunk_size", as.RecommendedChunkSize,
		"streaming", as.Streaming,
		"memory_ratio", round2(as.MemoryRatio),
	)
	return as
}

func (a *Advisor) maxGB() float64 {
	if a.MaxRecommendedGB <= 0 {
		return DefaultMaxRecommendedGB
	}
	return a.MaxRecommendedGB
}

// Evaluate applies the sizing rules to raw byte counts: the tier chunk size
// first, then the large-file rule, then the memory-pressure rule, each of
// which can only tighten the previous result.
func Evaluate(fileBytes int64, availBytes uint64, maxGB float64) Assessment {
	sizeGB := float64(fileBytes) / bytesPerGB
	availGB := float64(availBytes) / bytesPerGB

	as := Assessment{
		FileSizeBytes:        fileBytes,
		FileSizeGB:           sizeGB,
		AvailableMemoryGB:    availGB,
		RecommendedChunkSize: ChunkSize(float64(fileBytes)/bytesPerMB, float64(availBytes)/bytesPerMB),
	}

	if sizeGB > maxGB {
		as.Streaming = true
		as.RecommendedChunkSize = ChunkLargeFile
	}

	if availGB < sizeGB*2 {
		as.Streaming = true
		as.RecommendedChunkSize = min(as.RecommendedChunkSize, ChunkMemoryPressure)
	}

	if availGB == 0 {
		as.MemoryRatio = math.Inf(1)
		if sizeGB == 0 {
			as.MemoryRatio = 0
		}
	} else {
		as.MemoryRatio = sizeGB / availGB
	}
	return as
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
