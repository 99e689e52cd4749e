package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/setanarut/kdimage"
	"github.com/setanarut/kdimage/config"
	"github.com/setanarut/kdimage/ppm"
	"github.com/setanarut/kdimage/utils"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: kdimage [flags] <input>\n\n")
	flag.PrintDefaults()
}

func main() {
	output := flag.String("o", "", "output file (.ppm or .png), default <input>_kd.ppm")
	cfgPath := flag.String("config", "", "YAML config file")
	depth := flag.Int("depth", kdimage.DefaultMaxDepth, "maximum tree depth")
	threshold := flag.Int("threshold", kdimage.DefaultVarianceThreshold, "variance below which a region is flat")
	minPixels := flag.Int("min-pixels", kdimage.DefaultMinRegionPixels, "regions with fewer pixels are flat")
	axis := flag.String("axis", "vertical", "axis of the first split (vertical|horizontal)")
	separators := flag.Bool("separators", false, "draw split lines into the output")
	sepColor := flag.String("separator-color", "#ffffff", "split line color")
	seed := flag.Uint64("seed", 0, "random seed, 0 picks one")
	parallel := flag.Bool("parallel", false, "build subtrees concurrently")
	format := flag.String("format", "", "PPM encoding (ascii|binary)")
	svgPath := flag.String("svg", "", "write the partition as SVG")
	svgScale := flag.Int("svg-scale", 1, "SVG units per pixel")
	palettePath := flag.String("palette", "", "write the output palette as a PNG strip")
	paletteSize := flag.Int("palette-size", 6, "number of palette colors")
	paletteMethod := flag.String("palette-method", "", "palette method (dominantcolor|kmeans)")
	maxWidth := flag.Int("max-width", 0, "downscale wider inputs, 0 keeps the size")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	input := flag.Arg(0)

	cfg := config.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*cfgPath); err != nil {
			fatal("config", err)
		}
	}

	// Flags given on the command line win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "depth":
			cfg.Build.MaxDepth = *depth
		case "threshold":
			cfg.Build.VarianceThreshold = *threshold
		case "min-pixels":
			cfg.Build.MinRegionPixels = *minPixels
		case "axis":
			cfg.Build.FirstAxis = *axis
		case "separators":
			cfg.Build.Separators = *separators
		case "separator-color":
			cfg.Build.SeparatorColor = *sepColor
		case "seed":
			cfg.Build.Seed = *seed
		case "parallel":
			cfg.Build.Parallel = *parallel
		case "format":
			cfg.Output.Format = *format
		case "max-width":
			cfg.Output.MaxWidth = *maxWidth
		case "palette-size":
			cfg.Palette.Size = *paletteSize
		case "palette-method":
			cfg.Palette.Method = *paletteMethod
		}
	})
	if err := cfg.Validate(); err != nil {
		fatal("config", err)
	}

	if *output == "" {
		*output = strings.TrimSuffix(input, filepath.Ext(input)) + "_kd.ppm"
	}
	if err := run(cfg, input, *output, *svgPath, *svgScale, *palettePath); err != nil {
		fatal("kdimage", err)
	}
}

func run(cfg *config.Config, input, output, svgPath string, svgScale int, palettePath string) error {
	opt, err := cfg.BuilderOptions()
	if err != nil {
		return err
	}
	outFormat, err := ppm.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	buf, err := loadBuffer(input, cfg.Output.MaxWidth)
	if err != nil {
		return err
	}
	orig := buf.Clone()

	seed := cfg.Build.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	slog.Debug("building", "input", input, "seed", seed, "max_depth", opt.MaxDepth,
		"threshold", opt.VarianceThreshold, "first_axis", opt.FirstAxis)

	root, err := kdimage.NewTreeBuilder(buf, kdimage.NewRand(seed)).Build(opt)
	if err != nil {
		return err
	}
	if err := utils.SaveBuffer(buf, output, outFormat); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	slog.Info("wrote output", "path", output)

	if svgPath != "" {
		if err := utils.SaveTreeSVG(root, svgScale, svgPath); err != nil {
			return fmt.Errorf("write %s: %w", svgPath, err)
		}
		slog.Info("wrote tree", "path", svgPath)
	}
	if palettePath != "" {
		method, err := utils.ParsePaletteMethod(cfg.Palette.Method)
		if err != nil {
			return err
		}
		palette := utils.ExtractPalette(buf, cfg.Palette.Size, method)
		utils.SortPaletteByBrightness(palette)
		if err := utils.SavePalette(palette, 64, palettePath); err != nil {
			return fmt.Errorf("write %s: %w", palettePath, err)
		}
		for _, s := range palette {
			slog.Debug("palette", "color", s.Color.Hex(), "weight", s.Weight)
		}
		slog.Info("wrote palette", "path", palettePath, "colors", len(palette))
	}

	report, err := utils.NewReport(orig, buf, root)
	if err != nil {
		return err
	}
	if report.InputBytes, err = utils.FileSize(input); err != nil {
		return err
	}
	if report.OutputBytes, err = utils.FileSize(output); err != nil {
		return err
	}
	return report.Write(os.Stdout)
}

// loadBuffer reads input, shrinking it first when maxWidth asks for it.
func loadBuffer(input string, maxWidth int) (*kdimage.ColorBuffer, error) {
	if maxWidth <= 0 {
		return utils.ReadBuffer(input)
	}
	img, err := utils.ReadImage(input)
	if err != nil {
		return nil, err
	}
	small := utils.Downscale(img, maxWidth)
	if small != img {
		b := img.Bounds()
		slog.Info("downscaled input", "from", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
			"to", fmt.Sprintf("%dx%d", small.Bounds().Dx(), small.Bounds().Dy()))
	}
	return kdimage.FromImage(small)
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
