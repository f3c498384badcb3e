package simulate

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	cmdUtil "github.com/ValentinKolb/ftlsim/cmd/util"
	"github.com/ValentinKolb/ftlsim/lib/common"
	"github.com/ValentinKolb/ftlsim/lib/dispatch"
	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/ValentinKolb/ftlsim/lib/ftl/ssd"
	"github.com/ValentinKolb/ftlsim/lib/ftl/workload"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	deviceConfig ftl.Config
	workloadSpec workload.Spec

	SimulateCmd = &cobra.Command{
		Use:     "simulate",
		Short:   "Run a synthetic workload against a simulated SSD",
		Long:    `Run a synthetic workload against a simulated SSD and report latencies, write amplification and GC activity. Every flag can also be set via environment variables in the format FTLSIM_<flag> (e.g. FTLSIM_STRATEGY=placement)`,
		PreRunE: processConfig,
		RunE:    run,
	}

	configCmd = &cobra.Command{
		Use:     "config",
		Short:   "Print the device configuration and its derived parameters",
		PreRunE: processConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(deviceConfig.String())
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)
	cmdUtil.SetupDeviceFlags(SimulateCmd)
	SimulateCmd.AddCommand(configCmd)

	def := workload.DefaultSpec()
	flags := SimulateCmd.Flags()

	key := "pattern"
	flags.String(key, string(def.Pattern), cmdUtil.WrapString("Access pattern of the workload (sequential, uniform, hotspot)"))
	key = "requests"
	flags.Int(key, def.Requests, cmdUtil.WrapString("Total number of requests over all streams"))
	key = "streams"
	flags.Int(key, def.Streams, cmdUtil.WrapString("Number of concurrent request streams, each stream submits to its own queue"))
	key = "span"
	flags.Uint64(key, def.Span, cmdUtil.WrapString("Number of LPNs touched by the workload, starting at LPN 0"))
	key = "request-pages"
	flags.Uint64(key, def.RequestPages, cmdUtil.WrapString("Length of every request in pages"))
	key = "read-ratio"
	flags.Float64(key, def.ReadRatio, cmdUtil.WrapString("Fraction of requests that are reads"))
	key = "hot-fraction"
	flags.Float64(key, def.HotFraction, cmdUtil.WrapString("(hotspot) Fraction of the span that is hot"))
	key = "hot-probability"
	flags.Float64(key, def.HotProbability, cmdUtil.WrapString("(hotspot) Probability that a request hits the hot region"))
	key = "inter-arrival"
	flags.Duration(key, def.InterArrival, cmdUtil.WrapString("Simulated time between two requests of one stream"))
	key = "placement-groups"
	flags.Int(key, 0, cmdUtil.WrapString("(placement) Reclaim groups the streams spread their writes over, 0 disables placement keys"))
	key = "stream-handles"
	flags.Int(key, 0, cmdUtil.WrapString("(placement) Placement handles per group used by the streams"))
	key = "seed"
	flags.Int64(key, def.Seed, cmdUtil.WrapString("Seed of the request generators"))

	key = "direct"
	flags.Bool(key, false, cmdUtil.WrapString("Submit requests directly to the device instead of through the queue dispatcher"))
	key = "disable-background-gc"
	flags.Bool(key, false, cmdUtil.WrapString("Do not run background GC after requests (dispatcher only)"))
	key = "check"
	flags.Bool(key, false, cmdUtil.WrapString("Verify the mapping and unit bookkeeping after the run"))
	key = "prometheus"
	flags.Bool(key, false, cmdUtil.WrapString("Print the device metrics in Prometheus text format after the run"))
	key = "json"
	flags.Bool(key, false, cmdUtil.WrapString("Print the device info as JSON instead of text"))
	key = "csv"
	flags.String(key, "", cmdUtil.WrapString("Append the results to this CSV file"))

	key = "log-level"
	SimulateCmd.PersistentFlags().String(key, "warn", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		return err
	}
	if err := common.InitLoggers(viper.GetString("log-level"), os.Stderr); err != nil {
		return err
	}

	var err error
	if deviceConfig, err = cmdUtil.GetDeviceConfig(); err != nil {
		return err
	}

	workloadSpec = workload.Spec{
		Pattern:          workload.Pattern(viper.GetString("pattern")),
		Requests:         viper.GetInt("requests"),
		Streams:          viper.GetInt("streams"),
		Span:             viper.GetUint64("span"),
		RequestPages:     viper.GetUint64("request-pages"),
		ReadRatio:        viper.GetFloat64("read-ratio"),
		HotFraction:      viper.GetFloat64("hot-fraction"),
		HotProbability:   viper.GetFloat64("hot-probability"),
		InterArrival:     viper.GetDuration("inter-arrival"),
		PlacementGroups:  viper.GetInt("placement-groups"),
		PlacementHandles: viper.GetInt("stream-handles"),
		Seed:             viper.GetInt64("seed"),
	}
	return nil
}

// run builds the device, drives the workload through it and prints the results
func run(_ *cobra.Command, _ []string) error {
	dev, err := ssd.New(deviceConfig)
	if err != nil {
		return err
	}
	defer dev.Close()

	if err := workloadSpec.Validate(uint64(dev.Info().TotalPages)); err != nil {
		return err
	}
	fmt.Println(deviceConfig.String())
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var sub workload.Submitter
	if viper.GetBool("direct") {
		sub = workload.Direct(dev)
	} else {
		d, err := dispatch.New(dev, dispatch.Config{
			Queues:              workloadSpec.Streams,
			DisableBackgroundGC: viper.GetBool("disable-background-gc"),
		})
		if err != nil {
			return err
		}
		d.Start()
		defer d.Close()
		sub = d
	}

	report, err := workload.Run(ctx, sub, workloadSpec)
	if err != nil {
		return err
	}

	stats := dev.Stats()
	info := dev.Info()
	fmt.Println(report)
	fmt.Println()
	printStats(stats)

	if viper.GetBool("json") {
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		dev.WriteGCMetrics(os.Stdout, true)
	} else {
		printInfo(info)
		fmt.Println()
		dev.WriteGCMetrics(os.Stdout, false)
	}

	if viper.GetBool("check") {
		if err := dev.CheckConsistency(); err != nil {
			return fmt.Errorf("consistency check failed: %w", err)
		}
		fmt.Println("consistency check passed")
	}

	if viper.GetBool("prometheus") {
		fmt.Println()
		dev.WritePrometheus(os.Stdout)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, report, stats); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}
	return nil
}

func printStats(s ftl.Stats) {
	fmt.Printf("%-24s%d\n", "host pages read", s.HostPagesRead)
	fmt.Printf("%-24s%d\n", "host pages written", s.HostPagesWritten)
	fmt.Printf("%-24s%d\n", "gc pages written", s.GCPagesWritten)
	fmt.Printf("%-24s%.3f\n", "write amplification", s.WriteAmplification)
	fmt.Printf("%-24s%d forced / %d background\n", "gc passes", s.ForcedGCPasses, s.BackgroundGCPasses)
	fmt.Printf("%-24s%d\n", "blocks erased", s.BlocksErased)
	fmt.Printf("%-24s%d hits / %d misses\n", "entry cache", s.EntryCacheHits, s.EntryCacheMisses)
	fmt.Printf("%-24s%d hits / %d misses\n", "page cache", s.PageCacheHits, s.PageCacheMisses)
	fmt.Printf("%-24s%d reads / %d writes / %d log gcs\n", "translation pages",
		s.TranslationPageReads, s.TranslationPageWrites, s.TranslationLogGCs)
}

func printInfo(info ftl.DeviceInfo) {
	fmt.Printf("%-24s%v\n", "free units per group", info.FreeUnits)
	fmt.Printf("%-24s%d victim / %d full of %d\n", "units", info.VictimUnits, info.FullUnits, info.Units)
	fmt.Printf("%-24s%d of %d\n", "mapped pages", info.MappedPages, info.TotalPages)
	fmt.Printf("%-24smin %.0f, max %.0f, mean %.2f, stddev %.2f\n", "erase counts",
		info.EraseCounts.Min, info.EraseCounts.Max, info.EraseCounts.Mean, info.EraseCounts.StdDev)
	fmt.Printf("%-24s%s\n", "gc end time", time.Duration(info.GCEndTime))
}

// writeResultsToCSV appends one row per operation kind to a CSV file, the header
// is written when the file is new
func writeResultsToCSV(csvPath string, report *workload.Report, stats ftl.Stats) error {
	_, statErr := os.Stat(csvPath)
	file, err := os.OpenFile(csvPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if os.IsNotExist(statErr) {
		header := []string{
			"Device", "Strategy", "Pattern", "Streams", "Span", "RequestPages", "ReadRatio",
			"Op", "Count", "MeanNs", "P50Ns", "P90Ns", "P99Ns", "MaxNs",
			"WAF", "GCPagesWritten", "BlocksErased", "SimulatedTimeNs",
		}
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header: %v", err)
		}
	}

	for _, row := range []struct {
		op  string
		rep workload.OpReport
	}{{"read", report.Reads}, {"write", report.Writes}} {
		record := []string{
			deviceConfig.Name,
			string(deviceConfig.Strategy),
			string(report.Spec.Pattern),
			strconv.Itoa(report.Spec.Streams),
			strconv.FormatUint(report.Spec.Span, 10),
			strconv.FormatUint(report.Spec.RequestPages, 10),
			strconv.FormatFloat(report.Spec.ReadRatio, 'f', 2, 64),
			row.op,
			strconv.FormatUint(row.rep.Count, 10),
			strconv.FormatInt(row.rep.Mean.Nanoseconds(), 10),
			strconv.FormatInt(row.rep.P50.Nanoseconds(), 10),
			strconv.FormatInt(row.rep.P90.Nanoseconds(), 10),
			strconv.FormatInt(row.rep.P99.Nanoseconds(), 10),
			strconv.FormatInt(row.rep.Max.Nanoseconds(), 10),
			strconv.FormatFloat(stats.WriteAmplification, 'f', 4, 64),
			strconv.FormatUint(stats.GCPagesWritten, 10),
			strconv.FormatUint(stats.BlocksErased, 10),
			strconv.FormatInt(report.SimulatedTime.Nanoseconds(), 10),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}
	return nil
}
