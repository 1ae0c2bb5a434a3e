package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parquet-go/parquet-go/compress"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	config "github.com/thirdweb-dev/archive-exporter/configs"
	"github.com/thirdweb-dev/archive-exporter/internal/archive"
	"github.com/thirdweb-dev/archive-exporter/internal/common"
	"github.com/thirdweb-dev/archive-exporter/internal/orchestrator"
	"github.com/thirdweb-dev/archive-exporter/internal/publisher"
	"github.com/thirdweb-dev/archive-exporter/internal/schema"
	"github.com/thirdweb-dev/archive-exporter/internal/storage"
	"github.com/thirdweb-dev/archive-exporter/internal/table"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one dataset over a block range",
	Long: "Fetches a block range for one dataset (blocks, transactions or logs) from the archive " +
		"and writes the selected fields to parquet files in the output directory.\n\n" +
		"Numeric columns are UInt64. A required numeric field holding a larger value, such as a " +
		"transaction value above ~18.4 ETH (in wei) or a block totalDifficulty, stops the export " +
		"with an overflow error; leave such fields out of --fields to export those ranges.",
	Example: "  archive-exporter export --dataset transactions --range 17000000:17000100 " +
		"--fields hash,from,to,value --options from:0x28c6c06298d514db089934071355e5743bf21d60",
	RunE: RunExport,
}

func init() {
	exportCmd.Flags().String("dataset", "", "Dataset to export: blocks, transactions or logs")
	exportCmd.Flags().String("range", "", "Block range start:end, or start: to export up to the archive height")
	exportCmd.Flags().StringSlice("fields", nil, "Comma separated fields, in output column order (defaults per dataset)")
	exportCmd.Flags().StringArray("options", nil, "Filter option key:value, repeatable")
	exportCmd.Flags().String("output-dir", "", "Directory the parquet files are written to")
	exportCmd.Flags().Int("max-chunk-bytes", 0, "Byte budget of one output chunk")
	exportCmd.Flags().Int("channel-capacity", 0, "How many chunks may wait for the writer")
	exportCmd.Flags().String("compression", "", "Parquet codec: snappy, zstd, gzip or none")
	exportCmd.Flags().Bool("progress-enabled", true, "Render a progress bar")
	exportCmd.Flags().Int("progress-update-delay", 0, "Milliseconds to pause after each progress update")
	exportCmd.Flags().String("cache-badger-path", "", "Cache archive pages in a badger db at this path")
	exportCmd.Flags().String("cache-pebble-path", "", "Cache archive pages in a pebble db at this path")
	exportCmd.Flags().String("cache-redis-addr", "", "Cache archive pages in redis at this address")
	viper.BindPFlag("export.dataset", exportCmd.Flags().Lookup("dataset"))
	viper.BindPFlag("export.range", exportCmd.Flags().Lookup("range"))
	viper.BindPFlag("export.fields", exportCmd.Flags().Lookup("fields"))
	viper.BindPFlag("export.options", exportCmd.Flags().Lookup("options"))
	viper.BindPFlag("export.outputDir", exportCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("export.maxChunkBytes", exportCmd.Flags().Lookup("max-chunk-bytes"))
	viper.BindPFlag("export.channelCapacity", exportCmd.Flags().Lookup("channel-capacity"))
	viper.BindPFlag("export.compression", exportCmd.Flags().Lookup("compression"))
	viper.BindPFlag("progress.enabled", exportCmd.Flags().Lookup("progress-enabled"))
	viper.BindPFlag("progress.updateDelay", exportCmd.Flags().Lookup("progress-update-delay"))
}

// exportPlan is the validated form of the export section of the config.
type exportPlan struct {
	dataset common.Dataset
	rng     common.BlockRange
	openEnd bool
	fields  []string
	options common.FilterOptions
	codec   compress.Codec
}

func newExportPlan(cfg config.ExportConfig) (*exportPlan, error) {
	dataset, err := common.ParseDataset(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	rng, openEnd, err := common.ParseRange(cfg.Range)
	if err != nil {
		return nil, err
	}
	fields, err := schema.ValidateFields(dataset, cfg.Fields)
	if err != nil {
		return nil, err
	}
	options, err := common.ParseOptions(dataset, cfg.Options)
	if err != nil {
		return nil, err
	}
	codec, err := table.ParseCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}
	return &exportPlan{
		dataset: dataset,
		rng:     rng,
		openEnd: openEnd,
		fields:  fields,
		options: options,
		codec:   codec,
	}, nil
}

// resolveEnd fills an open range end with the archive height.
func (p *exportPlan) resolveEnd(ctx context.Context, height func(context.Context) (uint64, error)) error {
	if !p.openEnd {
		return nil
	}
	h, err := height(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve archive height: %w", err)
	}
	p.rng.End = h
	p.openEnd = false
	log.Info().Uint64("height", h).Msg("Resolved open range end to archive height")
	return p.rng.Validate()
}

func RunExport(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return configErr
	}
	applyCacheFlags(cmd, &config.Cfg.Cache)

	plan, err := newExportPlan(config.Cfg.Export)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if config.Cfg.Metrics.Enabled {
		startMetricsServer(config.Cfg.Metrics.Addr)
	}

	var clientOpts []archive.ClientOption
	if cacheConfigured(&config.Cfg.Cache) {
		cache, err := storage.NewPageCache(&config.Cfg.Cache)
		if err != nil {
			return err
		}
		defer func() {
			if err := cache.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close page cache")
			}
		}()
		clientOpts = append(clientOpts, archive.WithPageCache(cache))
	}
	client := archive.NewClient(archiveConfig(config.Cfg.Archive), clientOpts...)

	if err := plan.resolveEnd(ctx, client.Height); err != nil {
		return err
	}

	publishers, err := publisher.NewPublishers(ctx, &config.Cfg.Publisher)
	if err != nil {
		return err
	}
	defer func() {
		if err := publishers.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close publishers")
		}
	}()

	opts := []orchestrator.Option{orchestrator.WithPublishers(publishers...)}
	if config.Cfg.Progress.Enabled {
		delay := time.Duration(config.Cfg.Progress.UpdateDelay) * time.Millisecond
		opts = append(opts, orchestrator.WithProgress(os.Stdout, delay))
	}

	pipeline, err := orchestrator.NewPipeline(orchestrator.Config{
		Dataset:         plan.dataset,
		Range:           plan.rng,
		Fields:          plan.fields,
		Options:         plan.options,
		MaxChunkBytes:   config.Cfg.Export.MaxChunkBytes,
		ChannelCapacity: config.Cfg.Export.ChannelCapacity,
		OutputDir:       config.Cfg.Export.OutputDir,
		Codec:           plan.codec,
	}, client, opts...)
	if err != nil {
		return err
	}
	return pipeline.Run(ctx)
}

func archiveConfig(cfg config.ArchiveConfig) archive.Config {
	return archive.Config{
		URL:             cfg.URL,
		RequestTimeout:  time.Duration(cfg.RequestTimeout) * time.Millisecond,
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: time.Duration(cfg.Retry.InitialInterval) * time.Millisecond,
		MaxInterval:     time.Duration(cfg.Retry.MaxInterval) * time.Millisecond,
	}
}

// applyCacheFlags overrides the cache section only for flags set on the
// command line, so an unset flag never switches a backend on.
func applyCacheFlags(cmd *cobra.Command, cfg *config.CacheConfig) {
	flags := cmd.Flags()
	if flags.Changed("cache-badger-path") {
		path, _ := flags.GetString("cache-badger-path")
		cfg.Badger = &config.BadgerConfig{Path: path}
	}
	if flags.Changed("cache-pebble-path") {
		path, _ := flags.GetString("cache-pebble-path")
		cfg.Pebble = &config.PebbleConfig{Path: path}
	}
	if flags.Changed("cache-redis-addr") {
		addr, _ := flags.GetString("cache-redis-addr")
		if cfg.Redis == nil {
			cfg.Redis = &config.RedisConfig{}
		}
		cfg.Redis.Addr = addr
	}
}

func cacheConfigured(cfg *config.CacheConfig) bool {
	return cfg.Badger != nil || cfg.Pebble != nil || cfg.Redis != nil
}

func startMetricsServer(addr string) {
	log.Info().Msgf("Starting Metrics Server on %s", addr)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()
}
