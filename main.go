// Package main provides the entry point for the Slide Editor application.
package main

import (
	"flag"
	"log/slog"
	"os"

	"slide-editor/internal/analysis"
	"slide-editor/internal/app"
	"slide-editor/internal/config"
	"slide-editor/internal/editor"
	slideimage "slide-editor/internal/image"
	"slide-editor/internal/ingest"
	"slide-editor/internal/inpaint"
	"slide-editor/internal/ocr"
	"slide-editor/internal/ocr/tesseract"
	"slide-editor/internal/version"
	"slide-editor/pkg/geometry"
	"slide-editor/ui/canvas"
	"slide-editor/ui/mainwindow"

	fyneapp "fyne.io/fyne/v2/app"
)

const appID = "io.github.slideeditor"

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)
	logger.Info("starting slide editor", "version", version.String(), "config", *configPath)

	fonts, err := slideimage.NewFontBook()
	if err != nil {
		logger.Error("failed to load bundled fonts", "error", err)
		os.Exit(1)
	}
	for _, f := range cfg.Fonts {
		if err := fonts.RegisterFile(f.Family, f.Weight == "bold", f.Path); err != nil {
			logger.Warn("skipping font", "family", f.Family, "path", f.Path, "error", err)
		}
	}
	compositor := slideimage.NewCompositor(fonts, logger)

	opts := app.Options{
		Loader: ingest.New(ingest.Options{
			MaxFileSize: cfg.Ingest.MaxFileSize,
			Rasterizer: ingest.PopplerRasterizer{
				Binary: cfg.Ingest.Pdftoppm,
				DPI:    cfg.Ingest.PDFDPI,
				Logger: logger,
			},
			Logger: logger,
		}),
		Renderer:     compositor,
		HistoryDepth: cfg.Editor.HistoryDepth,
		JPEGQuality:  cfg.Export.JPEGQuality,
		Logger:       logger,
	}

	engine, err := tesseract.NewEngine(cfg.OCR.Languages, cfg.OCR.TessdataPath)
	if err != nil {
		// The editor still works for manual overlays without recognition.
		logger.Warn("text recognition unavailable", "error", err)
	} else {
		defer engine.Close()
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
			logger.Warn("analysis disabled", "error", err)
		} else {
			opts.Analyzer = svc
		}
	}

	state := app.NewState(opts)

	a := fyneapp.NewWithID(appID)
	a.Settings().SetTheme(&app.SlideEditorTheme{})

	vp := geometry.NewViewport(cfg.Editor.MinZoom, cfg.Editor.MaxZoom)
	cvs := canvas.NewEditorCanvas(state, compositor, vp, editor.Settings{
		MinRectSize: cfg.Editor.MinRectSize,
		HandleSize:  cfg.Editor.HandleSize,
		PanStep:     cfg.Editor.PanStep,
		ZoomStep:    cfg.Editor.ZoomStep,
	}, cfg.Editor.FitMargin)

	win := mainwindow.New(a, state, cvs, logger)

	// Handle command line arguments
	if path := flag.Arg(0); path != "" {
		win.Open(path)
	}

	win.ShowAndRun()
}
