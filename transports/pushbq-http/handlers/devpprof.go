package handlers

import (
	"bytes"
	"fmt"
	"runtime"
	"runtime/pprof"
	"sort"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/google/pprof/profile"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/pprofhandler"
)

// DefaultTopAllocations is the number of functions GetSummary reports
// when the request does not ask for a different count.
const DefaultTopAllocations = 10

// AllocationInfo is the in-use heap attributed to one function
type AllocationInfo struct {
	Function     string `json:"function"`
	InuseBytes   int64  `json:"inuse_bytes"`
	InuseObjects int64  `json:"inuse_objects"`
}

// PprofData is the body of GET /debug/summary
type PprofData struct {
	Goroutines     int              `json:"goroutines"`
	HeapAllocBytes uint64           `json:"heap_alloc_bytes"`
	HeapObjects    uint64           `json:"heap_objects"`
	NumGC          uint32           `json:"num_gc"`
	TopAllocations []AllocationInfo `json:"top_allocations"`
}

// DevPprofHandler exposes the runtime profiles. It is only registered when
// profiling is enabled in the config.
type DevPprofHandler struct{}

// NewDevPprofHandler creates a new profiling handler instance
func NewDevPprofHandler() *DevPprofHandler {
	return &DevPprofHandler{}
}

// RegisterRoutes registers the profiling routes
func (h *DevPprofHandler) RegisterRoutes(r *router.Router) {
	r.GET("/debug/summary", h.GetSummary)
	r.GET("/debug/pprof/{profile:*}", pprofhandler.PprofHandler)
}

// GetSummary handles GET /debug/summary?top=N - runtime counters plus the
// functions holding the most in-use heap.
func (h *DevPprofHandler) GetSummary(ctx *fasthttp.RequestCtx) {
	top := DefaultTopAllocations
	if raw := ctx.QueryArgs().Peek("top"); len(raw) > 0 {
		n, err := strconv.Atoi(string(raw))
		if err != nil || n <= 0 {
			SendError(ctx, fasthttp.StatusBadRequest, "top must be a positive integer")
			return
		}
		top = n
	}

	var buf bytes.Buffer
	if err := pprof.Lookup("heap").WriteTo(&buf, 0); err != nil {
		SendError(ctx, fasthttp.StatusInternalServerError, fmt.Sprintf("failed to write heap profile: %v", err))
		return
	}
	prof, err := profile.Parse(&buf)
	if err != nil {
		SendError(ctx, fasthttp.StatusInternalServerError, fmt.Sprintf("failed to parse heap profile: %v", err))
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	SendJSON(ctx, PprofData{
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
		HeapObjects:    mem.HeapObjects,
		NumGC:          mem.NumGC,
		TopAllocations: TopAllocations(prof, top),
	})
}

// TopAllocations sums the in-use samples of a heap profile by leaf function
// and returns the n largest, biggest first.
func TopAllocations(prof *profile.Profile, n int) []AllocationInfo {
	spaceIdx, objectsIdx := -1, -1
	for i, sampleType := range prof.SampleType {
		switch sampleType.Type {
		case "inuse_space":
			spaceIdx = i
		case "inuse_objects":
			objectsIdx = i
		}
	}
	if spaceIdx < 0 {
		return []AllocationInfo{}
	}

	byFunction := make(map[string]*AllocationInfo)
	for _, sample := range prof.Sample {
		name := leafFunction(sample)
		info, ok := byFunction[name]
		if !ok {
			info = &AllocationInfo{Function: name}
			byFunction[name] = info
		}
		info.InuseBytes += sample.Value[spaceIdx]
		if objectsIdx >= 0 {
			info.InuseObjects += sample.Value[objectsIdx]
		}
	}

	allocations := make([]AllocationInfo, 0, len(byFunction))
	for _, info := range byFunction {
		if info.InuseBytes > 0 {
			allocations = append(allocations, *info)
		}
	}
	sort.Slice(allocations, func(i, j int) bool {
		if allocations[i].InuseBytes == allocations[j].InuseBytes {
			return allocations[i].Function < allocations[j].Function
		}
		return allocations[i].InuseBytes > allocations[j].InuseBytes
	})
	if len(allocations) > n {
		allocations = allocations[:n]
	}
	return allocations
}

// leafFunction returns the innermost named function of a sample's stack
func leafFunction(sample *profile.Sample) string {
	for _, location := range sample.Location {
		for _, line := range location.Line {
			if line.Function != nil && line.Function.Name != "" {
				return line.Function.Name
			}
		}
	}
	return "unknown"
}
