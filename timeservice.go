// Trusted time oracle

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/mmcloughlin/profile"
	"github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/config"
	"go.uber.org/zap"

	"example.com/time-oracle/base/timemath"

	"example.com/time-oracle/benchmark"

	"example.com/time-oracle/core/client"
	"example.com/time-oracle/core/oracle"
	"example.com/time-oracle/core/tz"

	"example.com/time-oracle/service"
)

const (
	logLevelQuiet = iota
	logLevelDefault
	logLevelVerbose

	ntpClientNative  = "native"
	ntpClientLibrary = "library"

	defaultHTTPAddr = "localhost:8123"
)

type svcConfig struct {
	Servers               []string `toml:"servers,omitempty" yaml:"servers"`
	Timeout               float64  `toml:"timeout,omitempty" yaml:"timeout"` // seconds
	MinSources            int      `toml:"min_sources,omitempty" yaml:"min_sources"`
	MaxOutlierDeviationMs float64  `toml:"max_outlier_deviation_ms,omitempty" yaml:"max_outlier_deviation_ms"`
	MaxDisagreementMs     float64  `toml:"max_disagreement_ms,omitempty" yaml:"max_disagreement_ms"`
	FastModeServerCount   int      `toml:"fast_mode_server_count,omitempty" yaml:"fast_mode_server_count"`
	Concurrency           int      `toml:"concurrency,omitempty" yaml:"concurrency"`
	NTPClient             string   `toml:"ntp_client,omitempty" yaml:"ntp_client"`
	LocalHTTPAddr         string   `toml:"local_http_address,omitempty" yaml:"local_http_address"`
	LocalMetricsAddr      string   `toml:"local_metrics_address,omitempty" yaml:"local_metrics_address"`
}

func initLogger(logLevel int) *zap.Logger {
	if logLevel == logLevelQuiet {
		return zap.NewNop()
	}
	var cfg zap.Config
	if logLevel == logLevelVerbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	log, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	return log
}

func showInfo() {
	bi, ok := debug.ReadBuildInfo()
	if ok {
		fmt.Print(bi.String())
	}
}

func runMonitor(log *zap.Logger, cfg svcConfig) {
	if cfg.LocalMetricsAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		err := http.ListenAndServe(cfg.LocalMetricsAddr, nil)
		log.Fatal("failed to serve metrics", zap.Error(err))
	} else {
		select {}
	}
}

func decodeConfig(name string, raw []byte) (svcConfig, error) {
	var cfg svcConfig
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		p, err := config.NewYAML(config.Source(bytes.NewReader(raw)))
		if err != nil {
			return svcConfig{}, err
		}
		err = p.Get(config.Root).Populate(&cfg)
		if err != nil {
			return svcConfig{}, err
		}
	default:
		err := toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(&cfg)
		if err != nil {
			return svcConfig{}, err
		}
	}
	return cfg, nil
}

// loadConfig returns the zero configuration, i.e. all defaults, if
// configFile is empty.
func loadConfig(log *zap.Logger, configFile string) svcConfig {
	if configFile == "" {
		return svcConfig{}
	}
	raw, err := os.ReadFile(configFile)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}
	cfg, err := decodeConfig(configFile, raw)
	if err != nil {
		log.Fatal("failed to decode configuration", zap.Error(err))
	}
	return cfg
}

func oracleConfig(cfg svcConfig) (oracle.Config, error) {
	c := oracle.DefaultConfig()
	if len(cfg.Servers) != 0 {
		c.Servers = cfg.Servers
	}
	if cfg.Timeout < 0 || cfg.MaxOutlierDeviationMs < 0 || cfg.MaxDisagreementMs < 0 {
		return oracle.Config{}, fmt.Errorf("negative duration in configuration: %+v", cfg)
	}
	if cfg.Timeout != 0 {
		c.Timeout = timemath.Duration(cfg.Timeout)
	}
	if cfg.MinSources != 0 {
		c.MinSources = cfg.MinSources
	}
	if cfg.MaxOutlierDeviationMs != 0 {
		c.MaxOutlierDeviation = timemath.DurationMilliseconds(cfg.MaxOutlierDeviationMs)
	}
	if cfg.MaxDisagreementMs != 0 {
		c.MaxDisagreement = timemath.DurationMilliseconds(cfg.MaxDisagreementMs)
	}
	if cfg.FastModeServerCount != 0 {
		c.FastModeServerCount = cfg.FastModeServerCount
	}
	c.Concurrency = cfg.Concurrency
	err := c.Validate()
	if err != nil {
		return oracle.Config{}, err
	}
	return c, nil
}

func newQuerier(log *zap.Logger, cfg svcConfig) (client.Querier, error) {
	switch cfg.NTPClient {
	case "", ntpClientNative:
		return &client.IPClient{Log: log}, nil
	case ntpClientLibrary:
		return &client.LibraryClient{Log: log}, nil
	default:
		return nil, fmt.Errorf("unexpected NTP client: %q", cfg.NTPClient)
	}
}

func newOracle(log *zap.Logger, cfg svcConfig) *oracle.Oracle {
	ocfg, err := oracleConfig(cfg)
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	q, err := newQuerier(log, cfg)
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	o, err := oracle.New(log, ocfg, q, nil)
	if err != nil {
		log.Fatal("failed to create oracle", zap.Error(err))
	}
	return o
}

func printJSON(log *zap.Logger, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal("failed to encode result", zap.Error(err))
	}
	fmt.Println(string(b))
}

type zoneOutput struct {
	oracle.TimezoneResult
	ZoneInfo *tz.Info `json:"zone_info,omitempty"`
}

func runQuery(log *zap.Logger, cfg svcConfig, mode oracle.Mode, compensate bool, zone string) {
	ctx := context.Background()
	o := newOracle(log, cfg)
	if zone == "" {
		res, err := o.TimeUTC(ctx, mode, compensate)
		if err != nil {
			log.Fatal("failed to get time", zap.Error(err))
		}
		printJSON(log, res)
		return
	}
	res, err := o.TimeForTimezone(ctx, zone, mode, compensate)
	if err != nil {
		log.Fatal("failed to get time", zap.Error(err))
	}
	out := zoneOutput{TimezoneResult: res}
	info, err := tz.Lookup(time.UnixMilli(res.EpochMs), zone)
	if err == nil {
		out.ZoneInfo = &info
	}
	printJSON(log, out)
}

func runCompare(log *zap.Logger, cfg svcConfig, mode oracle.Mode) {
	o := newOracle(log, cfg)
	c, err := o.CompareSystemClock(context.Background(), mode)
	if err != nil {
		log.Fatal("failed to compare system clock", zap.Error(err))
	}
	printJSON(log, c)
}

func runServe(log *zap.Logger, cfg svcConfig) {
	ctx := context.Background()
	o := newOracle(log, cfg)
	addr := cfg.LocalHTTPAddr
	if addr == "" {
		addr = defaultHTTPAddr
	}
	service.StartHTTPServer(ctx, log, addr, service.NewHandler(log, o))
	runMonitor(log, cfg)
}

func runBenchmark(log *zap.Logger, cfg svcConfig, rounds int, verbose bool) {
	ocfg, err := oracleConfig(cfg)
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	q, err := newQuerier(zap.NewNop(), cfg)
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	results := benchmark.Run(context.Background(), log, q, ocfg.Servers, rounds, ocfg.Timeout, ocfg.Concurrency)
	err = benchmark.Print(os.Stdout, results, verbose)
	if err != nil {
		log.Fatal("failed to print results", zap.Error(err))
	}
}

func exitWithUsage() {
	fmt.Println("usage: timeservice <info|query|compare|serve|benchmark|t> [flags]")
	os.Exit(1)
}

func main() {
	var (
		quiet      bool
		verbose    bool
		configFile string
		modeStr    string
		compensate bool
		zone       string
		rounds     int
	)

	infoFlags := flag.NewFlagSet("info", flag.ExitOnError)
	queryFlags := flag.NewFlagSet("query", flag.ExitOnError)
	compareFlags := flag.NewFlagSet("compare", flag.ExitOnError)
	serveFlags := flag.NewFlagSet("serve", flag.ExitOnError)
	benchmarkFlags := flag.NewFlagSet("benchmark", flag.ExitOnError)

	queryFlags.BoolVar(&quiet, "quiet", false, "Disable logging")
	queryFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	queryFlags.StringVar(&configFile, "config", "", "Config file")
	queryFlags.StringVar(&modeStr, "mode", "fast", "Accuracy mode, fast or accurate")
	queryFlags.BoolVar(&compensate, "compensate", true, "Compensate for query latency")
	queryFlags.StringVar(&zone, "zone", "", "IANA time zone name")

	compareFlags.BoolVar(&quiet, "quiet", false, "Disable logging")
	compareFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	compareFlags.StringVar(&configFile, "config", "", "Config file")
	compareFlags.StringVar(&modeStr, "mode", "fast", "Accuracy mode, fast or accurate")

	serveFlags.BoolVar(&quiet, "quiet", false, "Disable logging")
	serveFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	serveFlags.StringVar(&configFile, "config", "", "Config file")

	benchmarkFlags.BoolVar(&quiet, "quiet", false, "Disable logging")
	benchmarkFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	benchmarkFlags.StringVar(&configFile, "config", "", "Config file")
	benchmarkFlags.IntVar(&rounds, "rounds", 100, "Number of query rounds")
	prof := profile.New(profile.CPUProfile, profile.MemProfile)
	prof.SetFlags(benchmarkFlags)

	logLevel := func() int {
		if quiet && verbose {
			exitWithUsage()
		}
		if quiet {
			return logLevelQuiet
		}
		if verbose {
			return logLevelVerbose
		}
		return logLevelDefault
	}
	parseMode := func() oracle.Mode {
		mode, err := oracle.ParseMode(modeStr)
		if err != nil {
			exitWithUsage()
		}
		return mode
	}

	if len(os.Args) < 2 {
		exitWithUsage()
	}

	switch os.Args[1] {
	case infoFlags.Name():
		err := infoFlags.Parse(os.Args[2:])
		if err != nil || infoFlags.NArg() != 0 {
			exitWithUsage()
		}
		showInfo()
	case queryFlags.Name():
		err := queryFlags.Parse(os.Args[2:])
		if err != nil || queryFlags.NArg() != 0 {
			exitWithUsage()
		}
		mode := parseMode()
		log := initLogger(logLevel())
		defer func() { _ = log.Sync() }()
		runQuery(log, loadConfig(log, configFile), mode, compensate, zone)
	case compareFlags.Name():
		err := compareFlags.Parse(os.Args[2:])
		if err != nil || compareFlags.NArg() != 0 {
			exitWithUsage()
		}
		mode := parseMode()
		log := initLogger(logLevel())
		defer func() { _ = log.Sync() }()
		runCompare(log, loadConfig(log, configFile), mode)
	case serveFlags.Name():
		err := serveFlags.Parse(os.Args[2:])
		if err != nil || serveFlags.NArg() != 0 {
			exitWithUsage()
		}
		log := initLogger(logLevel())
		runServe(log, loadConfig(log, configFile))
	case benchmarkFlags.Name():
		err := benchmarkFlags.Parse(os.Args[2:])
		if err != nil || benchmarkFlags.NArg() != 0 || rounds < 1 {
			exitWithUsage()
		}
		log := initLogger(logLevel())
		defer func() { _ = log.Sync() }()
		defer prof.Start().Stop()
		runBenchmark(log, loadConfig(log, configFile), rounds, verbose)
	case "t":
		runT()
	default:
		exitWithUsage()
	}
}
