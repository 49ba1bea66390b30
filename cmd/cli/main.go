// Package main provides imgctl, a command-line front end to the image
// pipeline. It runs exactly the same resize/compress code as the HTTP
// service, against local files.
// Uses Cobra for command parsing, Cobra is the standard Go CLI framework
// (used by kubectl, docker, hugo, and many others).
//
// Run with: go run ./cmd/cli resize photo.jpg --width 800 --out ./out
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/image-service/internal/codec"
	"github.com/fleveque/image-service/internal/config"
	"github.com/fleveque/image-service/internal/model"
	"github.com/fleveque/image-service/internal/server"
	"github.com/fleveque/image-service/internal/service"
	"github.com/fleveque/image-service/internal/storage"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalOpts are the persistent flags shared by every subcommand.
type globalOpts struct {
	engine  string
	verbose bool
}

// rootCmd creates the root command. Cobra builds a tree of commands:
// imgctl info photo.jpg
// imgctl resize photo.jpg --width 800
func rootCmd() *cobra.Command {
	var g globalOpts

	root := &cobra.Command{
		Use:          "imgctl",
		Short:        "Resize and compress images from the command line",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.engine, "engine", "", "Codec engine: vips or native (default from config)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log pipeline steps")

	root.AddCommand(infoCmd(&g))
	root.AddCommand(operationCmd(&g, service.OpResize, "Resize an image, never enlarging it"))
	root.AddCommand(operationCmd(&g, service.OpCompress, "Re-encode an image at a target quality"))
	root.AddCommand(operationCmd(&g, service.OpResizeAndCompress, "Resize and re-encode an image"))
	return root
}

// env is everything a subcommand needs, built once from config and flags.
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	pipeline *service.Pipeline
	metadata *service.MetadataService
}

func newEnv(g *globalOpts) (*env, error) {
	configPath := os.Getenv("IMG_CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if g.engine != "" {
		cfg.Codec.Engine = g.engine
	}

	// Quiet by default; --verbose gets zap's human-readable development logger.
	var logger *zap.Logger
	if g.verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger = zap.NewNop()
	}
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	engine, err := codec.New(cfg.Codec.Engine)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:      cfg,
		logger:   logger,
		pipeline: service.NewPipeline(engine, server.PipelineOptions(cfg.Processing), nil, logger),
		metadata: service.NewMetadataService(engine),
	}, nil
}

// signalContext cancels on Ctrl+C so a long encode can be abandoned.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func infoCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE",
		Short: "Print format, dimensions and size of an image",
		// cobra.ExactArgs validates the positional arguments before RunE runs.
		Args: cobra.ExactArgs(1),
		// RunE returns an error (vs Run which doesn't). Cobra prints the error automatically.
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(g)
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			ctx, cancel := signalContext()
			defer cancel()

			data, err := storage.ReadImage(args[0], e.cfg.Upload.MaxBytes)
			if err != nil {
				return err
			}
			desc, err := e.metadata.Describe(ctx, data, filepath.Base(args[0]), nil)
			if err != nil {
				return err
			}

			printDescriptor(cmd, "image", desc)
			return nil
		},
	}
}

func operationCmd(g *globalOpts, op, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   op + " FILE",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, g, op, args[0])
		},
	}

	// Flag values are read back through cmd.Flags() so that whether a flag
	// was actually given can be asked of Cobra: "--quality 0" and
	// "no --quality" stay different.
	flags := cmd.Flags()
	if op != service.OpCompress {
		flags.Int("width", 0, "Target width in pixels")
		flags.Int("height", 0, "Target height in pixels")
		flags.String("fit", "", "Fit mode: cover, contain, fill, inside, outside")
	}
	if op != service.OpResize {
		flags.Int("quality", 0, "Quality 1-100 (jpeg, webp, avif)")
		flags.Int("compression-level", 0, "PNG compression level 0-9")
		flags.Bool("lossless", false, "Lossless WebP")
	}
	flags.String("format", "", "Output format: jpeg, png, webp, avif, tiff, gif")
	flags.String("out", "out", "Directory to write the result into")
	return cmd
}

func runOperation(cmd *cobra.Command, g *globalOpts, op, path string) error {
	e, err := newEnv(g)
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	ctx, cancel := signalContext()
	defer cancel()

	data, err := storage.ReadImage(path, e.cfg.Upload.MaxBytes)
	if err != nil {
		return err
	}

	name := filepath.Base(path)
	original, err := e.metadata.Describe(ctx, data, name, nil)
	if err != nil {
		return err
	}
	src := service.NewSourceFormats(name, original.Format)

	resize, encode := requestsFromFlags(cmd)

	var (
		out    *service.Output
		prefix string
	)
	switch op {
	case service.OpResize:
		prefix = "resized_"
		out, err = e.pipeline.ResizeOnly(ctx, data, resize, src)
	case service.OpCompress:
		prefix = "compressed_"
		out, err = e.pipeline.CompressOnly(ctx, data, encode, src)
	default:
		prefix = "processed_"
		out, err = e.pipeline.ResizeAndCompress(ctx, data, resize, encode, src)
	}
	if err != nil {
		return err
	}

	processed, err := e.metadata.Describe(ctx, out.Data, prefix+name, &out.Format)
	if err != nil {
		return err
	}

	outDir, _ := cmd.Flags().GetString("out")
	fs, err := storage.NewFileSystem(outDir)
	if err != nil {
		return err
	}
	written, err := fs.Write(processed.Filename, out.Data)
	if err != nil {
		return err
	}

	printDescriptor(cmd, "original", original)
	printDescriptor(cmd, "result", processed)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", written, savings(original.Size, processed.Size))
	return nil
}

// requestsFromFlags turns only the flags the user actually set into
// optional request fields. Enum values are trimmed and lower-cased, and
// invalid ones are ignored, as in the API.
func requestsFromFlags(cmd *cobra.Command) (model.ResizeRequest, model.EncodeRequest) {
	flags := cmd.Flags()

	var resize model.ResizeRequest
	var encode model.EncodeRequest

	// Errors are impossible here: each lookup names a flag registered with
	// that type, and Changed is false for flags this command lacks.
	if flags.Changed("width") {
		if w, _ := flags.GetInt("width"); w > 0 {
			resize.Width = model.IntPtr(w)
		}
	}
	if flags.Changed("height") {
		if h, _ := flags.GetInt("height"); h > 0 {
			resize.Height = model.IntPtr(h)
		}
	}
	if flags.Changed("fit") {
		raw, _ := flags.GetString("fit")
		if fit, ok := model.ParseFit(normalize(raw)); ok {
			resize.Fit = model.FitPtr(fit)
		}
	}
	if flags.Changed("format") {
		raw, _ := flags.GetString("format")
		if format, ok := model.ParseFormat(normalize(raw)); ok {
			resize.Format = model.FormatPtr(format)
			encode.Format = model.FormatPtr(format)
		}
	}
	if flags.Changed("quality") {
		q, _ := flags.GetInt("quality")
		encode.Quality = model.IntPtr(q)
	}
	if flags.Changed("compression-level") {
		l, _ := flags.GetInt("compression-level")
		encode.CompressionLevel = model.IntPtr(l)
	}
	if flags.Changed("lossless") {
		b, _ := flags.GetBool("lossless")
		encode.Lossless = model.BoolPtr(b)
	}
	return resize, encode
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func printDescriptor(cmd *cobra.Command, label string, d model.ImageDescriptor) {
	dims := "?x?"
	if d.Width != nil && d.Height != nil {
		dims = fmt.Sprintf("%dx%d", *d.Width, *d.Height)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s  %s  %s  %s\n",
		label+":", d.Filename, d.Format, dims, humanize.IBytes(uint64(d.Size)))
}

// savings describes the size change, e.g. "-42.0%".
func savings(before, after int) string {
	if before == 0 {
		return "n/a"
	}
	delta := float64(after-before) / float64(before) * 100
	return fmt.Sprintf("%+.1f%%", delta)
}
