package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/soundsmith/sectional/internal/audio"
	"github.com/soundsmith/sectional/pkg/logger"
	"github.com/soundsmith/sectional/pkg/sectional"
	"github.com/soundsmith/sectional/pkg/utils"
)

// Global flags
var (
	dbPath        string
	tempDir       string
	sampleRate    int
	genre         string
	minSectionSec float64
	diagDir       string
)

func init() {
	flag.StringVar(&dbPath, "db", os.Getenv("SECTIONAL_DB_PATH"), "Path to the sqlite result cache (empty disables caching)")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("SECTIONAL_TEMP_DIR", "/tmp"), "Directory for temporary audio files")
	flag.IntVar(&sampleRate, "rate", 22050, "Audio sample rate for analysis")
	flag.StringVar(&genre, "genre", "", "Genre hint for preset selection (edm, pop, ambient, ...)")
	flag.Float64Var(&minSectionSec, "min-section", 0, "Caller floor for minimum section length, seconds")
	flag.StringVar(&diagDir, "diag", "", "Directory for diagnostic PNGs (enables diagnostics)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func createService() (sectional.Service, error) {
	opts := []sectional.Option{
		sectional.WithTempDir(tempDir),
		sectional.WithSampleRate(sampleRate),
	}
	if dbPath != "" {
		opts = append(opts, sectional.WithDBPath(dbPath))
	}
	return sectional.NewService(opts...)
}

func main() {
	log := logger.GetLogger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	rest := os.Args[2:]

	switch command {
	case "analyze":
		handleAnalyze(log, rest)
	case "fetch":
		handleFetch(log, rest)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`sectional - song structure segmentation

Usage:
  sectional analyze [flags] <audio-file>
  sectional fetch   [flags] <youtube-url>

Flags:`)
	flag.PrintDefaults()
}

// parseArgs splits the positional argument from the flags so flags may
// appear before or after it.
func parseArgs(args []string) (string, error) {
	var positional string
	var flagArgs []string
	for i := 0; i < len(args); i++ {
		if len(args[i]) > 0 && args[i][0] == '-' {
			flagArgs = append(flagArgs, args[i])
			if i+1 < len(args) && needsValue(args[i]) {
				flagArgs = append(flagArgs, args[i+1])
				i++
			}
			continue
		}
		if positional != "" {
			return "", fmt.Errorf("unexpected extra argument: %s", args[i])
		}
		positional = args[i]
	}
	if err := flag.CommandLine.Parse(flagArgs); err != nil {
		return "", err
	}
	if positional == "" {
		return "", fmt.Errorf("missing argument")
	}
	return positional, nil
}

func needsValue(flagArg string) bool {
	switch flagArg {
	case "-db", "--db", "-temp", "--temp", "-rate", "--rate",
		"-genre", "--genre", "-min-section", "--min-section", "-diag", "--diag":
		return true
	}
	return false
}

func handleAnalyze(log *logger.Logger, args []string) {
	path, err := parseArgs(args)
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}

	svc, err := createService()
	if err != nil {
		log.Fatalf("creating service: %v", err)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	analyzeAndPrint(ctx, log, svc, path)
}

// handleFetch downloads audio from a YouTube URL via yt-dlp and analyzes it.
func handleFetch(log *logger.Logger, args []string) {
	url, err := parseArgs(args)
	if err != nil {
		log.Fatalf("fetch: %v", err)
	}
	if !utils.IsYouTubeURL(url) {
		log.Fatalf("not a YouTube URL: %s", url)
	}
	videoID, err := utils.ExtractYouTubeID(url)
	if err != nil {
		log.Fatalf("fetch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	ytdlp.MustInstall(ctx, nil)

	if err := utils.MakeDir(tempDir); err != nil {
		log.Fatalf("creating temp dir: %v", err)
	}

	log.Infof("Downloading audio for %s", videoID)
	dl := ytdlp.New().
		NoPlaylist().
		ExtractAudio().
		AudioFormat("wav").
		Output(filepath.Join(tempDir, "%(id)s.%(ext)s"))
	if _, err := dl.Run(ctx, url); err != nil {
		log.Fatalf("download failed: %v", err)
	}

	audioPath := filepath.Join(tempDir, videoID+".wav")
	defer utils.DeleteFile(audioPath)

	svc, err := createService()
	if err != nil {
		log.Fatalf("creating service: %v", err)
	}
	defer svc.Close()

	analyzeAndPrint(ctx, log, svc, audioPath)
}

func analyzeAndPrint(ctx context.Context, log *logger.Logger, svc sectional.Service, path string) {
	result, err := svc.AnalyzeFile(ctx, path, sectional.FileOptions{
		Genre:           genre,
		MinSectionSec:   minSectionSec,
		WantDiagnostics: diagDir != "",
	})
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	if diagDir != "" {
		samples, sr, rerr := audio.ReadWAVAsFloat64(path)
		if rerr != nil {
			samples, sr = nil, 0
		}
		if derr := sectional.RenderDiagnostics(result, samples, sr, diagDir); derr != nil {
			log.Warnf("diagnostics rendering failed: %v", derr)
		} else {
			log.Infof("Diagnostics written to %s", diagDir)
		}
	}

	// diagnostics are debug artifacts, keep stdout to the stable surface
	result.Diagnostics = nil

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("encoding result: %v", err)
	}
	fmt.Println(string(out))
}
