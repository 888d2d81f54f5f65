// Command arrowmem reports how this process resolves its Arrow allocation
// backend and how request sizes are rounded, then performs a probe
// allocation on the resolved backend.
//
//	arrowmem [-env .env] [-json] [-trim] [-metrics] [size ...]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	gojson "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/23skdu/arrowmem/allocator"
	"github.com/23skdu/arrowmem/backend"
	"github.com/23skdu/arrowmem/backend/pooled"
	"github.com/23skdu/arrowmem/defaultalloc"
	"github.com/23skdu/arrowmem/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("arrowmem", flag.ContinueOnError)
	fset.SetOutput(stderr)
	envFile := fset.String("env", ".env", "Optional dotenv file loaded before reading configuration")
	asJSON := fset.Bool("json", false, "Print the report as JSON")
	trim := fset.Bool("trim", false, "Return idle pooled regions to the OS after the probe")
	dumpMetrics := fset.Bool("metrics", false, "Print Prometheus metrics after the probe")
	if err := fset.Parse(args); err != nil {
		return 2
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintf(stderr, "arrowmem: load %s: %v\n", *envFile, err)
		return 1
	}

	cfg, err := LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "arrowmem: invalid configuration: %v\n", err)
		return 1
	}

	sizes, err := parseSizes(fset.Args())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "arrowmem: %v\n", err)
		return 2
	}

	logger, err := logging.NewLogger(logging.Config{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		Output: stderr,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "arrowmem: %v\n", err)
		return 1
	}
	logging.SetDefault(logger)

	a, err := defaultalloc.CreateWithLimit(cfg.AllocatorLimit())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create root allocator")
		return 1
	}

	rep := buildReport(a, sizes)
	if err := rep.probe(a, cfg.ProbeSize); err != nil {
		logger.Error().Err(err).Int("size", cfg.ProbeSize).Msg("Probe allocation failed")
		return 1
	}

	if *trim {
		rep.trim(pooled.ManagerFactory())
	}

	if *asJSON {
		err = rep.writeJSON(stdout)
	} else {
		rep.writeText(stdout)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to write report")
		return 1
	}

	if *dumpMetrics {
		if err := writeMetrics(stdout, prometheus.DefaultGatherer); err != nil {
			logger.Error().Err(err).Msg("Failed to gather metrics")
			return 1
		}
	}
	return 0
}

func parseSizes(args []string) ([]int64, error) {
	sizes := make([]int64, 0, len(args))
	for _, arg := range args {
		n, err := strconv.ParseInt(arg, 0, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid size %q", arg)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

// Report is what arrowmem prints.
type Report struct {
	AllocatorType      string     `json:"allocator_type"`
	ManagerType        string     `json:"manager_type"`
	PooledChunkSize    int64      `json:"pooled_chunk_size,omitempty"`
	PooledChunkError   string     `json:"pooled_chunk_error,omitempty"`
	AllocatorFactories []string   `json:"allocator_factories"`
	ManagerFactories   []string   `json:"manager_factories"`
	Backend            string     `json:"backend"`
	RoundingPolicy     string     `json:"rounding_policy"`
	Rounding           []Rounding `json:"rounding"`
	Probe              *Probe     `json:"probe,omitempty"`
	Trimmed            *int       `json:"trimmed,omitempty"`
}

// Rounding is one row of the rounding table.
type Rounding struct {
	Size    int64 `json:"size"`
	Rounded int64 `json:"rounded"`
}

// Probe records the allocator state while the probe buffer was live.
type Probe struct {
	Size      int   `json:"size"`
	Allocated int64 `json:"allocated"`
	Peak      int64 `json:"peak"`
	Headroom  int64 `json:"headroom"`
}

func buildReport(a *allocator.RootAllocator, sizes []int64) *Report {
	policy := a.RoundingPolicy()
	rep := &Report{
		AllocatorType:      defaultalloc.DefaultAllocatorType().String(),
		ManagerType:        defaultalloc.DefaultManagerType().String(),
		AllocatorFactories: backend.AllocatorFactoryNames(),
		ManagerFactories:   backend.ManagerFactoryNames(),
		Backend:            a.Backend(),
		RoundingPolicy:     fmt.Sprint(policy),
		Rounding:           make([]Rounding, 0, len(sizes)),
	}
	if cs, err := pooled.ChunkSize(); err != nil {
		rep.PooledChunkError = err.Error()
	} else {
		rep.PooledChunkSize = cs
	}
	for _, n := range sizes {
		rep.Rounding = append(rep.Rounding, Rounding{Size: n, Rounded: policy.RoundedSize(n)})
	}
	return rep
}

// probe allocates size bytes, records the accounting and closes a.
func (r *Report) probe(a *allocator.RootAllocator, size int) error {
	buf, err := a.Buffer(size)
	if err != nil {
		return err
	}
	r.Probe = &Probe{
		Size:      size,
		Allocated: a.Allocated(),
		Peak:      a.Peak(),
		Headroom:  a.Headroom(),
	}
	buf.Release()
	if err := a.Verify(); err != nil {
		return err
	}
	return a.Close()
}

// trim releases idle pooled regions and records how many were released.
func (r *Report) trim(p *pooled.Pool) {
	n := p.Trim()
	r.Trimmed = &n
}

func (r *Report) writeText(w io.Writer) {
	_, _ = fmt.Fprintf(w, "allocator type:   %s\n", r.AllocatorType)
	_, _ = fmt.Fprintf(w, "manager type:     %s\n", r.ManagerType)
	if r.PooledChunkError != "" {
		_, _ = fmt.Fprintf(w, "pooled chunk:     unavailable (%s)\n", r.PooledChunkError)
	} else {
		_, _ = fmt.Fprintf(w, "pooled chunk:     %d\n", r.PooledChunkSize)
	}
	for _, name := range r.AllocatorFactories {
		_, _ = fmt.Fprintf(w, "allocator factory %s\n", name)
	}
	for _, name := range r.ManagerFactories {
		_, _ = fmt.Fprintf(w, "manager factory   %s\n", name)
	}
	_, _ = fmt.Fprintf(w, "backend:          %s\n", r.Backend)
	_, _ = fmt.Fprintf(w, "rounding policy:  %s\n", r.RoundingPolicy)
	for _, row := range r.Rounding {
		_, _ = fmt.Fprintf(w, "round %d -> %d\n", row.Size, row.Rounded)
	}
	if p := r.Probe; p != nil {
		_, _ = fmt.Fprintf(w, "probe %d: allocated=%d peak=%d headroom=%d\n",
			p.Size, p.Allocated, p.Peak, p.Headroom)
	}
	if r.Trimmed != nil {
		_, _ = fmt.Fprintf(w, "trimmed regions:  %d\n", *r.Trimmed)
	}
}

func (r *Report) writeJSON(w io.Writer) error {
	enc := gojson.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
