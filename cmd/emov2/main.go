// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Command emov2 inspects EMOv2 backbone variants and runs feature extraction
// on images.
package main

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/image/draw"

	"github.com/born-ml/emov2/backend/cpu"
	"github.com/born-ml/emov2/emov2"
	"github.com/born-ml/emov2/tensor"
)

const version = "0.1.0"

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	var logLevel string

	root := &cobra.Command{
		Use:          "emov2",
		Short:        "EMOv2 backbone feature extractor",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			logger = logger.Level(level)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	root.AddCommand(versionCmd())
	root.AddCommand(infoCmd())
	root.AddCommand(extractCmd(&logger))

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("emov2 %s\n", version)
		},
	}
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [variant]",
		Short: "Describe a backbone variant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Println("available variants:")
				for _, name := range emov2.Variants() {
					fmt.Printf("  %s\n", name)
				}
				return nil
			}

			cfg, err := emov2.VariantConfig(args[0])
			if err != nil {
				return err
			}
			model := emov2.New(cfg, cpu.New())

			fmt.Printf("variant:      %s\n", args[0])
			fmt.Printf("depths:       %v\n", cfg.Depths)
			fmt.Printf("dims:         %v\n", cfg.EmbedDims)
			fmt.Printf("window sizes: %v\n", cfg.WindowSizes)
			fmt.Printf("operators:    %v\n", cfg.HybridOps)
			fmt.Printf("out indices:  %v\n", cfg.OutIndices)
			fmt.Printf("parameters:   %d\n", model.NumParameters())
			return nil
		},
	}
}

func extractCmd(logger *zerolog.Logger) *cobra.Command {
	var (
		variant    string
		checkpoint string
	)

	cmd := &cobra.Command{
		Use:   "extract <image>",
		Short: "Run the backbone on an image and report per-stage feature statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := emov2.VariantConfig(variant)
			if err != nil {
				return err
			}

			backend := cpu.New()
			model := emov2.New(cfg, backend)
			model.SetLogger(*logger)
			model.SetTraining(false)

			if checkpoint != "" {
				if err := model.LoadPretrained(checkpoint); err != nil {
					return err
				}
				model.SanitizeNorm()
			}

			input, err := loadImage(args[0], cfg.ImgSize, backend)
			if err != nil {
				return err
			}

			logger.Info().Str("image", args[0]).Str("variant", variant).Msg("extracting features")
			start := time.Now()
			features := model.Forward(input)
			logger.Info().Dur("elapsed", time.Since(start)).Msg("forward pass done")

			for i, f := range features {
				mean, std := tensorStats(f.Data())
				fmt.Printf("output %d: shape %v  mean %.4f  std %.4f\n",
					cfg.OutIndices[i], f.Shape(), mean, std)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "emov2_det", "backbone variant")
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "SafeTensors checkpoint to load")
	return cmd
}

// loadImage decodes a PNG or JPEG, resizes it to size x size, and converts it
// to a normalized NCHW float tensor in [0, 1].
func loadImage(path string, size int, backend *cpu.Backend) (*tensor.Tensor[float32, *cpu.Backend], error) {
	//nolint:gosec // G304: image path comes from the command line
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	data := make([]float32, 3*size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			offset := dst.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				data[c*size*size+y*size+x] = float32(dst.Pix[offset+c]) / 255
			}
		}
	}
	return tensor.FromSlice(data, tensor.Shape{1, 3, size, size}, backend)
}

func tensorStats(data []float32) (mean, std float64) {
	for _, v := range data {
		mean += float64(v)
	}
	mean /= float64(len(data))
	for _, v := range data {
		d := float64(v) - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(data)))
	return mean, std
}
