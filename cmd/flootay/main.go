package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bpeel/flootay-sub000/internal/config"
	"github.com/bpeel/flootay-sub000/internal/encoder"
	"github.com/bpeel/flootay-sub000/internal/gpx"
	"github.com/bpeel/flootay-sub000/internal/logger"
	"github.com/bpeel/flootay-sub000/internal/parser"
	"github.com/bpeel/flootay-sub000/internal/render"
	"github.com/bpeel/flootay-sub000/internal/scene"
	"github.com/bpeel/flootay-sub000/internal/system"
	"github.com/bpeel/flootay-sub000/internal/tilecache"
)

var (
	configPath string

	flagOutput  string
	flagFPS     float64
	flagEncoder string
	flagQuality int
	flagTileDir string
	flagStats   bool

	flagAt string
)

func main() {
	root := &cobra.Command{
		Use:          "flootay",
		Short:        "Render animated overlays for cycling videos",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "",
		"path to a yaml render profile")

	renderCmd := &cobra.Command{
		Use:   "render <script>",
		Short: "Render an overlay script to a video",
		Args:  cobra.ExactArgs(1),
		RunE:  runRender,
	}
	renderCmd.Flags().StringVarP(&flagOutput, "output", "o", "",
		"output video path")
	renderCmd.Flags().Float64Var(&flagFPS, "fps", 0,
		"output frame rate")
	renderCmd.Flags().StringVar(&flagEncoder, "encoder", "",
		"ffmpeg video encoder (default: best available)")
	renderCmd.Flags().IntVar(&flagQuality, "quality", 0,
		"encoder quality (CRF for libx264)")
	renderCmd.Flags().StringVar(&flagTileDir, "tile-dir", "",
		"map tile cache directory")
	renderCmd.Flags().BoolVar(&flagStats, "stats", false,
		"log resource usage after rendering")

	checkCmd := &cobra.Command{
		Use:   "check <script>",
		Short: "Parse an overlay script and report what it contains",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}

	trackCmd := &cobra.Command{
		Use:   "track <gpx-file>",
		Short: "Inspect a GPS track log",
		Args:  cobra.ExactArgs(1),
		RunE:  runTrack,
	}
	trackCmd.Flags().StringVar(&flagAt, "at", "",
		"look up the track at a time (unix seconds or "+
			"2023-04-29T12:30:00Z)")

	root.AddCommand(renderCmd, checkCmd, trackCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}

	if flagOutput != "" {
		cfg.OutputVideo = flagOutput
	}
	if flagFPS != 0 {
		cfg.FPS = flagFPS
	}
	if flagEncoder != "" {
		cfg.VideoEncoder = flagEncoder
	}
	if flagQuality != 0 {
		cfg.Quality = flagQuality
	}
	if flagTileDir != "" {
		cfg.TileDirectory = flagTileDir
	}
	if flagStats {
		cfg.ShowStats = true
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return cfg, nil, err
	}

	return cfg, log, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	system.InitResourceLimits(log)

	scriptPath := args[0]

	scn, err := parser.ParseFile(scriptPath)
	if err != nil {
		return err
	}

	log.Info("script parsed",
		zap.String("script", scriptPath),
		zap.Int("objects", len(scn.Objects)),
		zap.Int("tracks", len(scn.Tracks)),
		zap.Int("frames", scn.NFrames()))

	tiles := buildTileCache(cfg, scn)

	rend, err := render.New(scn, tiles)
	if err != nil {
		return err
	}

	encoderName := cfg.VideoEncoder
	if encoderName == "" {
		encoderName = system.GetBestH264Encoder()
		log.Debug("picked video encoder",
			zap.String("encoder", encoderName))
	}

	params := encoder.Params{
		Width:       scn.VideoWidth,
		Height:      scn.VideoHeight,
		FPS:         cfg.FPS,
		EncoderName: encoderName,
		Quality:     cfg.Quality,
	}

	start := time.Now()

	enc := &encoder.FFmpegEncoder{}
	err = enc.Encode(ctx, params, cfg.OutputVideo, scn.NFrames(),
		func(ctx context.Context, frameNum int) (image.Image, error) {
			return rend.RenderFrame(ctx, float64(frameNum))
		})
	if err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("output", cfg.OutputVideo),
		zap.Duration("elapsed", time.Since(start)),
	}
	if length, err := system.GetVideoLength(cfg.OutputVideo); err == nil {
		fields = append(fields, zap.Float64("video_seconds", length))
	}
	log.Info("render finished", fields...)

	if cfg.ShowStats {
		system.LogResourceUsage(log)
	}

	return nil
}

func buildTileCache(cfg config.Config, scn *scene.Scene) *tilecache.Cache {
	apiKey := cfg.MapAPIKey
	if apiKey == "" {
		apiKey = scn.MapAPIKey
	}

	fetcher := tilecache.NewCurlFetcher(scn.MapURLBase, apiKey)

	return tilecache.New(cfg.TileDirectory, fetcher)
}

func runCheck(cmd *cobra.Command, args []string) error {
	scn, err := parser.ParseFile(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("video: %dx%d, %d frames\n",
		scn.VideoWidth, scn.VideoHeight, scn.NFrames())
	fmt.Printf("objects: %d\n", len(scn.Objects))

	for _, track := range scn.Tracks {
		points := track.Store.Points()
		first := points[0]
		last := points[len(points)-1]
		fmt.Printf("track %s: %d points, %.1f km, %s to %s\n",
			track.Path,
			len(points),
			last.Distance/1000.0,
			formatUnix(first.Time),
			formatUnix(last.Time))
	}

	return nil
}

func runTrack(cmd *cobra.Command, args []string) error {
	store, err := gpx.LoadFile(args[0])
	if err != nil {
		return err
	}

	if flagAt == "" {
		points := store.Points()
		first := points[0]
		last := points[len(points)-1]
		fmt.Printf("%d points, %.1f km, %s to %s\n",
			len(points),
			last.Distance/1000.0,
			formatUnix(first.Time),
			formatUnix(last.Time))
		return nil
	}

	timestamp, err := parseQueryTime(flagAt)
	if err != nil {
		return err
	}

	point, ok := store.Lookup(timestamp)
	if !ok {
		return fmt.Errorf("no track data within %g seconds of %s",
			gpx.MaxTimeGap, flagAt)
	}

	fmt.Printf("position: %.6f, %.6f\n", point.Lat, point.Lon)
	fmt.Printf("speed: %.1f km/h\n", point.Speed*3.6)
	fmt.Printf("elevation: %.0f m\n", point.Elevation)
	fmt.Printf("distance: %.2f km\n", point.Distance/1000.0)

	return nil
}

func parseQueryTime(s string) (float64, error) {
	if t, err := strconv.ParseFloat(s, 64); err == nil {
		return t, nil
	}

	return gpx.ParseTime(s)
}

func formatUnix(t float64) string {
	return time.Unix(int64(t), 0).UTC().Format(time.RFC3339)
}
