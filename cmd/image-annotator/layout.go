package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	imageannotator "github.com/menta2k/image-annotator"
	"github.com/menta2k/image-annotator/internal/config"
	"github.com/menta2k/image-annotator/internal/utils"
	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/detection"
	"github.com/menta2k/image-annotator/pkg/llamacpp"
	"github.com/menta2k/image-annotator/pkg/measure"
	"github.com/menta2k/image-annotator/pkg/ollama"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/render"
	"github.com/menta2k/image-annotator/pkg/translation"
	"github.com/menta2k/image-annotator/pkg/types"
)

type layoutOptions struct {
	configPath   string
	detections   string
	backend      string
	url          string
	model        string
	fit          string
	width        float64
	height       float64
	translations string
	endpoint     string
	outputDir    string
	format       string
	noPreview    bool
}

// layoutDocument is the JSON written next to the preview
type layoutDocument struct {
	Image       string            `json:"image"`
	Natural     types.Size        `json:"natural"`
	Container   types.Size        `json:"container"`
	Frame       types.Frame       `json:"frame"`
	Fit         string            `json:"fit"`
	Description string            `json:"description,omitempty"`
	Scene       string            `json:"scene,omitempty"`
	Detections  []types.Detection `json:"detections"`
	Labels      []labelEntry      `json:"labels"`
}

type labelEntry struct {
	types.Label
	Translation string `json:"translation,omitempty"`
}

func newLayoutCmd() *cobra.Command {
	var opts layoutOptions

	cmd := &cobra.Command{
		Use:   "layout <image|url>",
		Short: "Place labels over an image",
		Long: `Place labels over an image.

Detections come from a JSON file (--detections), either in the layout
format or as raw vision model output, or from a vision backend (ollama or
llamacpp). The command writes <name>_annotated.json with every label
position in percent of the image and a rendered preview.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file, JSON or TOML (default: ~/.config/image-annotator/config.json if present)")
	cmd.Flags().StringVarP(&opts.detections, "detections", "d", "", "analysis JSON file")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "vision backend: file, ollama or llamacpp")
	cmd.Flags().StringVar(&opts.url, "url", "", "vision server URL")
	cmd.Flags().StringVar(&opts.model, "model", "", "vision model name")
	cmd.Flags().StringVar(&opts.fit, "fit", "", "image fit: contain or cover")
	cmd.Flags().Float64Var(&opts.width, "width", 0, "container width in pixels (default: image width)")
	cmd.Flags().Float64Var(&opts.height, "height", 0, "container height in pixels (default: image height)")
	cmd.Flags().StringVarP(&opts.translations, "translations", "t", "", "translations JSON file")
	cmd.Flags().StringVar(&opts.endpoint, "translate-endpoint", "", "translate service for words missing from the translations")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "output directory")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "preview format: png, jpg or webp")
	cmd.Flags().BoolVar(&opts.noPreview, "no-preview", false, "only write the layout JSON")

	return cmd
}

func runLayout(ctx context.Context, input string, opts layoutOptions) error {
	logger := loggerFromContext(ctx)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	processor := processing.NewProcessor()
	s := startStep(logger, "load image")
	img, err := processor.LoadImageSmart(ctx, input)
	if err != nil {
		return fmt.Errorf("load image %s: %w", input, err)
	}
	natural := processing.NaturalSize(img)
	s.done("width", natural.Width, "height", natural.Height)

	s = startStep(logger, "analyze")
	analysis, err := analyze(ctx, logger, cfg, processor, opts.detections, img, natural)
	if err != nil {
		return err
	}
	s.done("detections", len(analysis.Detections), "keywords", len(analysis.Keywords))

	table, err := loadTranslations(ctx, logger, cfg, analysis)
	if err != nil {
		return err
	}

	var text measure.TextMeasurer = measure.Fixed{}
	fonts, err := measure.NewFontMeasurer()
	if err != nil {
		logger.Warn("fonts unavailable, using fixed metrics", "err", err)
	} else {
		text = fonts
	}

	engine := imageannotator.NewWithConfig(engineConfig(cfg),
		imageannotator.WithTextMeasurer(text),
		imageannotator.WithTranslator(table),
		imageannotator.WithLogger(logger.WithPrefix("engine")),
	)
	defer engine.Stop()

	container := types.Size{Width: opts.width, Height: opts.height}
	if container.Width <= 0 {
		container.Width = natural.Width
	}
	if container.Height <= 0 {
		container.Height = natural.Height
	}

	engine.SetAnalysis(analysis.Detections, analysis.Keywords)
	engine.ImageLoaded(natural)
	engine.Resize(container)
	frame, ok := engine.Frame()
	if !ok {
		return fmt.Errorf("no frame for image %.0fx%.0f in container %.0fx%.0f",
			natural.Width, natural.Height, container.Width, container.Height)
	}
	labels := engine.Labels()
	logger.Info("labels placed", "count", len(labels), "frame", fmt.Sprintf("%.0fx%.0f", frame.Width, frame.Height))

	if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	previewPath, layoutPath := utils.OutputPaths(input, cfg.Output.OutputDir, cfg.Output.Suffix, cfg.Output.DefaultFormat)

	doc := layoutDocument{
		Image:       input,
		Natural:     natural,
		Container:   container,
		Frame:       frame,
		Fit:         cfg.Layout.Fit,
		Description: analysis.Description,
		Scene:       analysis.Scene,
		Detections:  analysis.Detections,
		Labels:      make([]labelEntry, 0, len(labels)),
	}
	for _, l := range labels {
		tr, _ := table.Lookup(l.Text)
		doc.Labels = append(doc.Labels, labelEntry{Label: l, Translation: tr})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	if err := os.WriteFile(layoutPath, data, 0o644); err != nil {
		return fmt.Errorf("write layout %s: %w", layoutPath, err)
	}
	logger.Info("wrote layout", "path", layoutPath)

	if opts.noPreview {
		return nil
	}
	s = startStep(logger, "render preview")
	canvas := render.NewRenderer(fonts, engine.Style()).Render(render.Scene{
		Image:      img,
		Container:  container,
		Frame:      frame,
		Detections: analysis.Detections,
		Labels:     labels,
	})
	if err := processor.SaveImage(canvas, previewPath, cfg.Output.DefaultFormat, cfg.Output.Quality, false); err != nil {
		return fmt.Errorf("write preview %s: %w", previewPath, err)
	}
	s.done("path", previewPath)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if p := config.GetConfigPath(); utils.FileExists(p) {
			path = p
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, opts layoutOptions) {
	if opts.backend != "" {
		cfg.Vision.Backend = opts.backend
	}
	if opts.url != "" {
		cfg.Vision.URL = opts.url
	}
	if opts.model != "" {
		cfg.Vision.Model = opts.model
	}
	if opts.fit != "" {
		cfg.Layout.Fit = opts.fit
	}
	if opts.translations != "" {
		cfg.Translation.File = opts.translations
	}
	if opts.endpoint != "" {
		cfg.Translation.Endpoint = opts.endpoint
	}
	if opts.outputDir != "" {
		cfg.Output.OutputDir = opts.outputDir
	}
	if opts.format != "" {
		cfg.Output.DefaultFormat = opts.format
	}
	if opts.detections != "" {
		cfg.Vision.Backend = "file"
	}
}

func engineConfig(cfg *config.Config) imageannotator.Config {
	return imageannotator.Config{
		Fit:         cfg.Fit(),
		Layout:      cfg.Layout.Config,
		Style:       cfg.Label,
		Interaction: cfg.InteractionTimings(),
		Drag:        cfg.DragThresholds(),
	}
}

func analyze(ctx context.Context, logger *log.Logger, cfg *config.Config, processor *processing.Processor, path string, img image.Image, natural types.Size) (types.Analysis, error) {
	if cfg.Vision.Backend == "file" {
		if path == "" {
			return types.Analysis{}, fmt.Errorf("no detections: pass --detections or choose a vision backend")
		}
		return readAnalysis(path, natural, cfg.Vision.Options)
	}

	var vc client.VisionClient
	switch cfg.Vision.Backend {
	case "ollama":
		c, err := ollama.NewClient(cfg.Vision.URL)
		if err != nil {
			return types.Analysis{}, fmt.Errorf("create ollama client: %w", err)
		}
		if ok, err := c.HasModel(ctx, cfg.Vision.Model); err != nil {
			logger.Warn("could not list models", "err", err)
		} else if !ok {
			logger.Warn("model not pulled, the request will likely fail", "model", cfg.Vision.Model)
		}
		vc = c
	case "llamacpp":
		url := cfg.Vision.URL
		if url == config.Default().Vision.URL {
			// The default points at ollama
			url = ""
		}
		c, err := llamacpp.NewClient(url)
		if err != nil {
			return types.Analysis{}, fmt.Errorf("create llama.cpp client: %w", err)
		}
		vc = c
	default:
		return types.Analysis{}, fmt.Errorf("unknown backend %q", cfg.Vision.Backend)
	}

	b64, err := processor.PrepareImageForModel(img, "jpg", cfg.Vision.MaxDim, cfg.Vision.Quality)
	if err != nil {
		return types.Analysis{}, fmt.Errorf("prepare image: %w", err)
	}
	logger.Debug("querying vision model", "backend", cfg.Vision.Backend, "model", cfg.Vision.Model)

	detector := detection.NewDetectorWithOptions(vc, cfg.Vision.Options)
	return detector.Detect(ctx, cfg.Vision.Model, b64, sentSize(natural, cfg.Vision.MaxDim))
}

// readAnalysis loads detections from a file. Files with an "objects" key are
// raw model answers and go through the same conversion as live answers.
func readAnalysis(path string, natural types.Size, opts detection.Options) (types.Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Analysis{}, fmt.Errorf("read detections: %w", err)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err == nil {
		if _, raw := keys["objects"]; !raw {
			var a types.Analysis
			if err := json.Unmarshal(data, &a); err != nil {
				return types.Analysis{}, fmt.Errorf("parse detections %s: %w", path, err)
			}
			return detection.Normalize(a, opts), nil
		}
	}

	raw, err := detection.ParseAnalysis(string(data))
	if err != nil {
		return types.Analysis{}, fmt.Errorf("parse detections %s: %w", path, err)
	}
	if raw.Fallback {
		return types.Analysis{}, fmt.Errorf("parse detections %s: no JSON analysis found", path)
	}
	return detection.Normalize(detection.Convert(raw, natural), opts), nil
}

// loadTranslations builds the translation table from the configured file and
// asks the translate service for the words still missing. Service failures
// only cost the back faces, so they are logged and ignored.
func loadTranslations(ctx context.Context, logger *log.Logger, cfg *config.Config, a types.Analysis) (*translation.Table, error) {
	table := translation.NewTable()
	if cfg.Translation.File != "" {
		t, err := translation.LoadFile(cfg.Translation.File)
		if err != nil {
			return nil, fmt.Errorf("load translations: %w", err)
		}
		table = t
	}
	if cfg.Translation.Endpoint == "" {
		return table, nil
	}

	words := make([]string, 0, len(a.Detections)+len(a.Keywords))
	for _, d := range a.Detections {
		words = append(words, d.Keyword)
	}
	words = append(words, a.Keywords...)

	n, err := translation.NewFetcher(cfg.Translation.Endpoint, table).Fetch(ctx, words)
	if err != nil {
		logger.Warn("translate service failed", "endpoint", cfg.Translation.Endpoint, "err", err)
		return table, nil
	}
	logger.Debug("fetched translations", "count", n)
	return table, nil
}

// sentSize is the size of the image after PrepareImageForModel downsized its
// long side to maxDim
func sentSize(natural types.Size, maxDim int) types.Size {
	limit := float64(maxDim)
	if maxDim <= 0 || (natural.Width <= limit && natural.Height <= limit) {
		return natural
	}
	if natural.Width >= natural.Height {
		return types.Size{Width: limit, Height: math.Round(natural.Height * limit / natural.Width)}
	}
	return types.Size{Width: math.Round(natural.Width * limit / natural.Height), Height: limit}
}
