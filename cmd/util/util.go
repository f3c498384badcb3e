package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupDeviceFlags adds the device geometry, timing, GC, allocation and cache flags to a command
func SetupDeviceFlags(cmd *cobra.Command) {
	def := ftl.DefaultConfig()
	flags := cmd.PersistentFlags()

	key := "name"
	flags.String(key, "", WrapString("Name of the simulated device (random if empty)"))

	// geometry
	key = "sector-size"
	flags.Int(key, def.SectorSize, WrapString("Sector size in bytes"))
	key = "sectors-per-page"
	flags.Int(key, def.SectorsPerPage, WrapString("Sectors per flash page"))
	key = "pages-per-block"
	flags.Int(key, def.PagesPerBlock, WrapString("Pages per erase block"))
	key = "blocks-per-plane"
	flags.Int(key, def.BlocksPerPlane, WrapString("Blocks per plane, this is also the number of units per reclaim group"))
	key = "planes-per-die"
	flags.Int(key, def.PlanesPerDie, WrapString("Planes per die"))
	key = "dies-per-channel"
	flags.Int(key, def.DiesPerChannel, WrapString("Dies (LUNs) per channel"))
	key = "channels"
	flags.Int(key, def.Channels, WrapString("Number of channels"))

	// timing
	key = "read-latency"
	flags.Duration(key, def.PageReadLatency, WrapString("Page read latency"))
	key = "write-latency"
	flags.Duration(key, def.PageWriteLatency, WrapString("Page program latency"))
	key = "erase-latency"
	flags.Duration(key, def.BlockEraseLatency, WrapString("Block erase latency"))
	key = "channel-transfer-latency"
	flags.Duration(key, def.ChannelTransferLatency, WrapString("Time one page occupies its channel, only used with --model-channel-transfer"))
	key = "model-channel-transfer"
	flags.Bool(key, def.ModelChannelTransfer, WrapString("Serialize page transfers on the channel in addition to the die"))
	key = "gc-delay"
	flags.Bool(key, def.EnableGCDelay, WrapString("Charge GC reads, writes and erases to the timing model"))

	// garbage collection
	key = "gc-threshold"
	flags.Float64(key, def.GCThresholdPercent, WrapString("Percentage of used units at which background GC starts"))
	key = "gc-threshold-high"
	flags.Float64(key, def.GCThresholdPercentHigh, WrapString("Percentage of used units at which writes are blocked by forced GC"))

	// allocation
	key = "strategy"
	flags.String(key, string(def.Strategy), WrapString("Allocation strategy (line, placement)"))
	key = "reclaim-group-degree"
	flags.Int(key, def.ReclaimGroupDegree, WrapString("(placement) Dies per reclaim group"))
	key = "placement-handles"
	flags.Int(key, def.PlacementHandles, WrapString("(placement) Placement handles per reclaim group"))
	key = "isolation"
	flags.String(key, string(def.Isolation), WrapString("(placement) Where GC moves data of a handle: initial (shared GC unit of the group) or persistent (the handle's own unit)"))

	// metadata cache
	key = "entry-cache"
	flags.Int(key, def.EntryCacheCapacity, WrapString("Capacity of the mapping entry cache"))
	key = "entry-cache-buckets"
	flags.Int(key, def.EntryCacheBuckets, WrapString("Hash buckets of the mapping entry cache"))
	key = "page-cache"
	flags.Int(key, def.PageCacheCapacity, WrapString("Capacity of the translation page cache"))
	key = "page-cache-buckets"
	flags.Int(key, def.PageCacheBuckets, WrapString("Hash buckets of the translation page cache"))
	key = "entries-per-translation-page"
	flags.Int(key, def.EntriesPerTranslationPage, WrapString("Mapping entries held by one translation page"))
	key = "translation-log-blocks"
	flags.Int(key, def.TranslationLogBlocks, WrapString("Blocks of the on-flash translation log"))
	key = "translation-log-block-pages"
	flags.Int(key, def.TranslationLogBlockPages, WrapString("Pages per translation log block"))
}

// InitConfig loads .env files and maps FTLSIM_<FLAG> environment variables onto the flags
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("ftlsim")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetDeviceConfig reads the device configuration from viper and validates it
func GetDeviceConfig() (ftl.Config, error) {
	cfg := ftl.DefaultConfig()
	if name := viper.GetString("name"); name != "" {
		cfg.Name = name
	}

	cfg.SectorSize = viper.GetInt("sector-size")
	cfg.SectorsPerPage = viper.GetInt("sectors-per-page")
	cfg.PagesPerBlock = viper.GetInt("pages-per-block")
	cfg.BlocksPerPlane = viper.GetInt("blocks-per-plane")
	cfg.PlanesPerDie = viper.GetInt("planes-per-die")
	cfg.DiesPerChannel = viper.GetInt("dies-per-channel")
	cfg.Channels = viper.GetInt("channels")

	cfg.PageReadLatency = viper.GetDuration("read-latency")
	cfg.PageWriteLatency = viper.GetDuration("write-latency")
	cfg.BlockEraseLatency = viper.GetDuration("erase-latency")
	cfg.ChannelTransferLatency = viper.GetDuration("channel-transfer-latency")
	cfg.ModelChannelTransfer = viper.GetBool("model-channel-transfer")
	cfg.EnableGCDelay = viper.GetBool("gc-delay")

	cfg.GCThresholdPercent = viper.GetFloat64("gc-threshold")
	cfg.GCThresholdPercentHigh = viper.GetFloat64("gc-threshold-high")

	cfg.Strategy = ftl.StrategyKind(viper.GetString("strategy"))
	cfg.ReclaimGroupDegree = viper.GetInt("reclaim-group-degree")
	cfg.PlacementHandles = viper.GetInt("placement-handles")
	cfg.Isolation = ftl.IsolationKind(viper.GetString("isolation"))

	cfg.EntryCacheCapacity = viper.GetInt("entry-cache")
	cfg.EntryCacheBuckets = viper.GetInt("entry-cache-buckets")
	cfg.PageCacheCapacity = viper.GetInt("page-cache")
	cfg.PageCacheBuckets = viper.GetInt("page-cache-buckets")
	cfg.EntriesPerTranslationPage = viper.GetInt("entries-per-translation-page")
	cfg.TranslationLogBlocks = viper.GetInt("translation-log-blocks")
	cfg.TranslationLogBlockPages = viper.GetInt("translation-log-block-pages")

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("device configuration: %w", err)
	}
	return cfg, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
