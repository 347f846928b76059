package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/raine/product-lens/config"
	"github.com/raine/product-lens/internal/imagesource"
	"github.com/raine/product-lens/internal/llm"
)

func main() {
	useCamera := flag.Bool("camera", false, "capture a frame from the camera instead of reading a file")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-camera] [-v] [image-path]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required for Gemini\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_MODEL   - Model name (default %s)\n", config.DefaultGeminiModel)
		fmt.Fprintf(os.Stderr, "  CAMERA_DEVICE  - Camera index for -camera (default 0)\n")
	}
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	if !*useCamera && flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var img *imagesource.CapturedImage
	if *useCamera {
		camera := imagesource.NewCamera(imagesource.NewGoCVDevice(cfg.CameraDevice))
		img, err = camera.CaptureOnce(ctx)
	} else {
		img, err = imagesource.NewFileLoader().WithMaxSize(cfg.MaxUploadBytes).LoadFromPath(ctx, flag.Arg(0))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get image: %v\n", err)
		os.Exit(1)
	}

	analyzer, err := llm.NewGeminiAnalyzer(ctx, cfg.APIKey, cfg.GeminiModel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating Gemini analyzer: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=== GEMINI (%s) ===\n", analyzer.Model())

	result, err := analyzer.Analyze(ctx, img.Data, img.MIMEType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error analyzing image: %v\n", err)
		os.Exit(1)
	}

	printResult(result)
}

func printResult(result *llm.AnalysisResult) {
	if len(result.Products) == 0 {
		fmt.Println("No products detected.")
	}
	for i, p := range result.Products {
		fmt.Printf("%d. %s\n", i+1, p.Name)
		fmt.Printf("   Description: %s\n", p.Description)
		if p.HasWarning {
			fmt.Printf("   Warning:     %s\n", p.WarningDetails)
		}
		if !p.WarningConsistent() {
			fmt.Printf("   (warning flag and details disagree)\n")
		}
	}
	fmt.Println()
	fmt.Printf("Tokens:      %d in / %d out / %d total\n",
		result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.TotalTokens)
	fmt.Printf("Cost:        $%.6f\n", result.Usage.CostUSD)
}
