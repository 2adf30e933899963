// Command slidexport applies text overlays to a PDF or image without the
// editor window and writes the result as a ZIP of PNGs or a PDF.
//
// Usage: slidexport [options] <input.pdf|image> <output.zip|output.pdf>
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"slide-editor/internal/analysis"
	"slide-editor/internal/config"
	"slide-editor/internal/export"
	slideimage "slide-editor/internal/image"
	"slide-editor/internal/ingest"
	"slide-editor/internal/inpaint"
	"slide-editor/internal/ocr"
	"slide-editor/internal/ocr/tesseract"
	"slide-editor/internal/version"
)

var (
	flagOverlays = flag.String("overlays", "", "YAML plan of overlays to apply")
	flagConfig   = flag.String("config", config.DefaultPath(), "path to config.yaml")
	flagFormat   = flag.String("format", "", "zip or pdf (default: from the output extension)")
	flagVerbose  = flag.Bool("v", false, "Verbose output")
	flagVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <input> <output>\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *flagVersion {
		fmt.Println("slidexport", version.String())
		return
	}
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, flag.Arg(0), flag.Arg(1)); err != nil {
		fmt.Fprintf(os.Stderr, "slidexport: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, input, output string) error {
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		return err
	}
	if *flagVerbose {
		cfg.Log.Level = "debug"
	}
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	formatName := *flagFormat
	if formatName == "" {
		formatName = output
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}

	plan := &Plan{}
	if *flagOverlays != "" {
		if plan, err = LoadPlan(*flagOverlays); err != nil {
			return err
		}
	}

	in := ingest.New(ingest.Options{
		MaxFileSize: cfg.Ingest.MaxFileSize,
		Rasterizer: ingest.PopplerRasterizer{
			Binary: cfg.Ingest.Pdftoppm,
			DPI:    cfg.Ingest.PDFDPI,
			Logger: logger,
		},
		Logger: logger,
	})
	slides, err := in.LoadFile(ctx, input)
	if err != nil {
		return fmt.Errorf("load %s: %w", input, err)
	}
	logger.Info("loaded", "path", input, "slides", len(slides))

	var an analyzer
	if plan.NeedsAnalysis() {
		svc, closeFn, err := newAnalyzer(cfg, logger)
		if err != nil {
			return err
		}
		defer closeFn()
		an = svc
	}
	slides, err = plan.Apply(ctx, slides, an)
	if err != nil {
		return err
	}

	fonts, err := slideimage.NewFontBook()
	if err != nil {
		return err
	}
	for _, f := range cfg.Fonts {
		if err := fonts.RegisterFile(f.Family, f.Weight == "bold", f.Path); err != nil {
			logger.Warn("skipping font", "family", f.Family, "error", err)
		}
	}

	err = export.WriteFile(ctx, output, slides, slideimage.NewCompositor(fonts, logger), export.Options{
		Format:      format,
		JPEGQuality: cfg.Export.JPEGQuality,
		Logger:      logger,
		Progress: func(done, total int) {
			fmt.Fprintf(os.Stderr, "\rexporting %d/%d", done, total)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		},
	})
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d slides to %s\n", len(slides), output)
	return nil
}

// newAnalyzer builds the recognition pipeline from cfg.
func newAnalyzer(cfg *config.Config, logger *slog.Logger) (*analysis.Service, func(), error) {
	engine, err := tesseract.NewEngine(cfg.OCR.Languages, cfg.OCR.TessdataPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errNeedsAnalyzer, err)
	}
	svcCfg := analysis.Config{
		Recognizer: ocr.NewRecognizer(engine, cfg.OCR.MinConfidence, logger),
		Feather:    cfg.Inpaint.Feather,
		Logger:     logger,
	}
	if cfg.InpaintEnabled() {
		svcCfg.Reconstructor = inpaint.New(inpaint.Options{
			Method: inpaint.Method(cfg.Inpaint.Method),
			Radius: cfg.Inpaint.Radius,
			Dilate: cfg.Inpaint.Dilate,
			Logger: logger,
		})
	}
	svc, err := analysis.NewService(svcCfg)
	if err != nil {
		engine.Close()
		return nil, nil, err
	}
	return svc, func() { engine.Close() }, nil
}
