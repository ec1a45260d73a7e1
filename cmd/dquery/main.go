package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AvengeMedia/dankquery/internal/client"
	"github.com/AvengeMedia/dankquery/internal/config"
	"github.com/AvengeMedia/dankquery/internal/engine"
	"github.com/AvengeMedia/dankquery/internal/log"
	"github.com/AvengeMedia/dankquery/internal/server"
	"github.com/AvengeMedia/dankquery/internal/watcher"
	"github.com/spf13/cobra"
)

var (
	Version   string = "dev"
	buildTime string = "unknown"
	commit    string = "unknown"

	configFile string
	indexPath  string
	schemaPath string
	listenAddr string
	logLevel   string
	noWatch    bool
	reset      bool
	readOnly   bool

	searchWhere   []string
	searchRanges  []string
	searchOrder   []string
	searchFields  []string
	searchAfter   []string
	searchLimit   int
	searchOffset  int
	searchVectors bool
	searchJSON    bool

	indexType string
)

var rootCmd = &cobra.Command{
	Use:   "dquery",
	Short: "Typed record search service",
	Long:  "Maps schema-declared record types onto a Bleve index and queries them",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logLevel != "" {
			log.SetLevel(logLevel)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	RunE:  runServe,
}

var searchCmd = &cobra.Command{
	Use:   "search <type> [query]",
	Short: "Search records of one type",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSearch,
}

var indexCmd = &cobra.Command{
	Use:   "index <file.jsonl>",
	Short: "Index records from a JSON lines file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <type> <id>",
	Short: "Delete one record",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelete,
}

var mappingCmd = &cobra.Command{
	Use:   "mapping [type]",
	Short: "Show resolved field mappings",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMapping,
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Ask the running service to reload its schema",
	RunE:  runReload,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage the schema watcher",
}

var watchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check watcher status",
	RunE:  runWatch(func(ctx context.Context, c *client.Client) (string, error) { return c.WatchStatus(ctx) }),
}

var watchStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the schema watcher",
	RunE:  runWatch(func(ctx context.Context, c *client.Client) (string, error) { return c.WatchStart(ctx) }),
}

var watchStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the schema watcher",
	RunE:  runWatch(func(ctx context.Context, c *client.Client) (string, error) { return c.WatchStop(ctx) }),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		log.Infof("dquery version %s", Version)
		log.Infof("  Build time: %s", buildTime)
		log.Infof("  Commit: %s", commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: ~/.config/dankquery/config.toml)")
	rootCmd.PersistentFlags().StringVar(&indexPath, "index", "", "index storage path")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "schema file path")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "HTTP listen address")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	serveCmd.Flags().BoolVar(&noWatch, "no-watch", false, "disable schema file watching")
	serveCmd.Flags().BoolVar(&reset, "reset", false, "drop an index whose mappings no longer match the schema")
	serveCmd.Flags().BoolVar(&readOnly, "read-only", false, "refuse writes")

	searchCmd.Flags().StringArrayVarP(&searchWhere, "where", "w", nil, "equality restriction prop=value (repeatable)")
	searchCmd.Flags().StringArrayVarP(&searchRanges, "range", "r", nil, "range restriction prop:lower..upper (repeatable)")
	searchCmd.Flags().StringArrayVarP(&searchOrder, "order", "o", nil, "sort property, prefix - for descending (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchFields, "fields", nil, "stored fields to load")
	searchCmd.Flags().StringArrayVar(&searchAfter, "after", nil, "sort values of the last hit of the previous page")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (0 uses the configured default)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "results to skip")
	searchCmd.Flags().BoolVar(&searchVectors, "vectors", false, "include term locations")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results in JSON format")

	indexCmd.Flags().StringVarP(&indexType, "type", "t", "", "record type of every line (overrides a _type field)")

	watchCmd.AddCommand(watchStatusCmd)
	watchCmd.AddCommand(watchStartCmd)
	watchCmd.AddCommand(watchStopCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(mappingCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func buildConfig() *config.Config {
	cfgPath := configFile
	if cfgPath == "" {
		cfgPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if indexPath != "" {
		cfg.IndexPath = indexPath
	}
	if schemaPath != "" {
		cfg.SchemaPath = schemaPath
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if readOnly {
		cfg.ReadOnly = true
	}
	if logLevel == "" {
		log.SetLevel(cfg.LogLevel)
	}
	return cfg
}

// remote returns a client when a server answers at the configured address.
func remote(cfg *config.Config) (*client.Client, bool) {
	c := client.New(cfg.ListenAddr)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		return nil, false
	}
	return c, true
}

func openEngine(cfg *config.Config) (*engine.Engine, error) {
	eng, err := engine.New(cfg, reset)
	if err != nil {
		return nil, fmt.Errorf("server not running and cannot open index: %w", err)
	}
	return eng, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := buildConfig()

	eng, err := engine.New(cfg, reset)
	if err != nil {
		return err
	}
	defer eng.Close()

	count, err := eng.DocCount()
	if err != nil {
		return err
	}
	log.Infof("serving %d documents across types %v", count, eng.Types())

	w, err := watcher.New(eng, cfg.SchemaPath)
	if err != nil {
		return err
	}
	if cfg.WatchSchema && !noWatch {
		if err := w.Start(); err != nil {
			log.Errorf("failed to start watcher: %v", err)
			log.Infof("continuing without schema watching")
		}
	}

	httpServer := server.NewHTTP(cfg.ListenAddr, eng, w)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		log.Infof("received shutdown signal")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if w.IsRunning() {
			w.Stop()
		}
		return httpServer.Shutdown(ctx)
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	req := engine.Request{
		Type:        args[0],
		Where:       searchWhere,
		Ranges:      searchRanges,
		Order:       searchOrder,
		Fields:      searchFields,
		Limit:       searchLimit,
		Offset:      searchOffset,
		TermVectors: searchVectors,
		SearchAfter: searchAfter,
	}
	if len(args) > 1 {
		req.Query = args[1]
	}

	cfg := buildConfig()
	ctx := cmd.Context()

	var res *engine.Response
	if c, ok := remote(cfg); ok {
		r, err := c.Search(ctx, req)
		if err != nil {
			return err
		}
		res = r
	} else {
		eng, err := openEngine(cfg)
		if err != nil {
			return err
		}
		defer eng.Close()
		if res, err = eng.Search(ctx, req); err != nil {
			return err
		}
	}

	if searchJSON {
		return printJSON(res)
	}
	printHits(res)
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	batches, err := readRecords(args[0], indexType)
	if err != nil {
		return err
	}

	cfg := buildConfig()
	ctx := cmd.Context()

	var index func(typeName string, recs []record) (int, error)
	if c, ok := remote(cfg); ok {
		index = func(typeName string, recs []record) (int, error) {
			return c.Index(ctx, typeName, recs)
		}
	} else {
		eng, err := openEngine(cfg)
		if err != nil {
			return err
		}
		defer eng.Close()
		index = eng.Index
	}

	total := 0
	for _, b := range batches {
		n, err := index(b.typeName, b.records)
		if err != nil {
			return fmt.Errorf("indexing %s records: %w", b.typeName, err)
		}
		total += n
	}
	log.Infof("indexed %d records from %s", total, args[0])
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg := buildConfig()
	if c, ok := remote(cfg); ok {
		return c.Delete(cmd.Context(), args[0], args[1])
	}

	eng, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()
	if err := eng.Delete(args[0], args[1]); err != nil {
		return err
	}
	log.Infof("deleted %s %s", args[0], args[1])
	return nil
}

func runMapping(cmd *cobra.Command, args []string) error {
	cfg := buildConfig()
	ctx := cmd.Context()

	var (
		types   []string
		mapping func(string) (*engine.TypeInfo, error)
	)
	if c, ok := remote(cfg); ok {
		res, err := c.Types(ctx)
		if err != nil {
			return err
		}
		types = res.Types
		mapping = func(name string) (*engine.TypeInfo, error) { return c.Mapping(ctx, name) }
	} else {
		eng, err := openEngine(cfg)
		if err != nil {
			return err
		}
		defer eng.Close()
		types = eng.Types()
		mapping = eng.Mapping
	}

	if len(args) > 0 {
		types = args
	}
	for _, name := range types {
		info, err := mapping(name)
		if err != nil {
			return err
		}
		fmt.Println(renderMapping(info))
	}
	return nil
}

func runReload(cmd *cobra.Command, args []string) error {
	cfg := buildConfig()
	c, ok := remote(cfg)
	if !ok {
		return errors.New("service not running")
	}
	status, err := c.Reload(cmd.Context())
	if err != nil {
		return err
	}
	log.Infof("%s", status)
	return nil
}

func runWatch(call func(context.Context, *client.Client) (string, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := buildConfig()
		c, ok := remote(cfg)
		if !ok {
			return errors.New("service not running")
		}
		status, err := call(cmd.Context(), c)
		if err != nil {
			return err
		}
		log.Infof("watcher: %s", status)
		return nil
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}
