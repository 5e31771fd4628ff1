// Command profilemerge reads N profiles from disk (legacy pprof or
// this module's canonical schema, sniffed by extension), merges them
// serially or with the parallel pipeline when -workers > 1, and
// writes the result.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	ppprof "github.com/google/pprof/profile"

	"github.com/aadil-01/perforator/canonicalpb"
	"github.com/aadil-01/perforator/config"
	gokitlog "github.com/aadil-01/perforator/internal/log"
	"github.com/aadil-01/perforator/internal/metrics"
	"github.com/aadil-01/perforator/merge"
	"github.com/aadil-01/perforator/parallelmerge"
	"github.com/aadil-01/perforator/perrors"
	"github.com/aadil-01/perforator/pprofconv"
	"github.com/aadil-01/perforator/profile"
	"github.com/aadil-01/perforator/validate"

	kitlog "github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	var (
		flagOut        = flag.String("o", "merged.pb", "output `file`")
		flagPProfOut   = flag.Bool("pprof-out", false, "write the output in legacy pprof format instead of canonical")
		flagConfig     = flag.String("config", "", "YAML config `file` (config.Config); when set, it fixes merge/pipeline options and -workers/-buffer/-ignore-*/-cleanup-thread-names are ignored")
		flagWorkers    = flag.Uint("workers", 1, "parallel merge worker count (1 = serial merge)")
		flagBufferSize = flag.Uint("buffer", 0, "pending queue capacity for parallel merge (default 2*workers)")
		flagIgnorePID  = flag.Bool("ignore-pids", false, "collapse samples across process ids")
		flagIgnoreTID  = flag.Bool("ignore-tids", false, "collapse samples across thread ids")
		flagIgnoreTS   = flag.Bool("ignore-timestamps", false, "zero every sample timestamp before merging")
		flagCleanup    = flag.Bool("cleanup-thread-names", false, "strip numeric suffixes from thread names before interning")
		flagVerbose    = flag.Bool("v", false, "enable debug logging")
		flagCheck      = flag.Bool("validate", true, "validate the merged output before writing it")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] profile...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	logger := kitlog.NewLogfmtLogger(os.Stderr)
	if !*flagVerbose {
		logger = gokitlog.NewNop()
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	var (
		workers    = uint32(*flagWorkers)
		bufferSize = uint32(*flagBufferSize)
		mergeOpts  merge.Options
	)
	if *flagConfig != "" {
		cfg, err := config.Load(*flagConfig)
		if err != nil {
			log.Fatalf("load config %s: %v", *flagConfig, err)
		}
		workers = cfg.Pipeline.ConcurrencyLevel
		bufferSize = cfg.Pipeline.BufferSize
		mergeOpts = cfg.Pipeline.Merge.ToMergeOptions()
	} else {
		mergeOpts = merge.Options{
			IgnoreProcessIDs:   *flagIgnorePID,
			IgnoreThreadIDs:    *flagIgnoreTID,
			IgnoreTimestamps:   *flagIgnoreTS,
			CleanupThreadNames: *flagCleanup,
		}
	}
	if bufferSize == 0 {
		bufferSize = 2 * workers
	}
	mergeOpts.Logger = logger
	mergeOpts.Metrics = m

	out, err := mergeFiles(flag.Args(), mergeOpts, workers, bufferSize, logger, m)
	if err != nil {
		log.Fatal(err)
	}

	if *flagCheck {
		if err := validate.Validate(out, validate.Options{CheckIndices: true}); err != nil {
			var verr *perrors.Error
			if errors.As(err, &verr) {
				m.ValidateFailuresTotal.WithLabelValues(verr.Table).Inc()
			}
			log.Fatalf("validate merged output: %v", err)
		}
	}

	if err := writeOutput(out, *flagOut, *flagPProfOut); err != nil {
		log.Fatal(err)
	}
	gokitlog.Info(logger, "msg", "wrote merged profile", "path", *flagOut, "inputs", flag.NArg(),
		"merge_p50_seconds", m.Quantile(0.5), "merge_p99_seconds", m.Quantile(0.99))
}

func mergeFiles(paths []string, mergeOpts merge.Options, workers, bufferSize uint32, logger gokitlog.Logger, m *metrics.Metrics) (*profile.Profile, error) {
	if workers <= 1 {
		mgr := merge.New(mergeOpts)
		for _, path := range paths {
			p, err := readProfile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			if err := mgr.Add(p); err != nil {
				return nil, fmt.Errorf("merge %s: %w", path, err)
			}
		}
		return mgr.Finish()
	}

	ctx := context.Background()
	outProfile := profile.New()
	pipeline := parallelmerge.New(ctx, outProfile, parallelmerge.Options{
		MergeOptions:     mergeOpts,
		ConcurrencyLevel: workers,
		BufferSize:       bufferSize,
		Logger:           logger,
		Metrics:          m,
	})
	for _, path := range paths {
		p, err := readProfile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := pipeline.Add(p); err != nil {
			return nil, fmt.Errorf("enqueue %s: %w", path, err)
		}
	}
	return pipeline.Finish()
}

// readProfile sniffs a profile file's schema and parses it into the
// canonical model. Canonical profiles are recognized by the
// ".canonical.pb" / ".cpb" extension; everything else is assumed to
// be legacy pprof (gzip-compressed or not; ppprof.Parse handles
// both transparently).
func readProfile(path string) (*profile.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".canonical.pb") || strings.HasSuffix(path, ".cpb") {
		return canonicalpb.Unmarshal(data)
	}
	pp, err := ppprof.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return pprofconv.ConvertFromPProf(pp)
}

func writeOutput(p *profile.Profile, path string, asPProf bool) error {
	if !asPProf {
		data, err := canonicalpb.Marshal(p)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}
	pp, err := pprofconv.ConvertToPProf(p)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return pp.Write(f)
}
