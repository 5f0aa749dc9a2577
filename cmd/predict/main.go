// Command predict runs the fuel cell models from the terminal, either against
// local artifacts or against a running prediction server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"fuelcell/config"
	fhttp "fuelcell/http"
	"fuelcell/ml"
	"fuelcell/report"
	"fuelcell/stack"

	"github.com/go-resty/resty/v2"
	"github.com/schollz/progressbar/v3"
)

// predictFunc returns the model prediction and the reference estimate for one input.
type predictFunc func(ctx context.Context, in ml.Input) (*ml.Prediction, *stack.Reference, error)

func main() {
	voltage := flag.Float64("voltage", ml.DefaultVoltage, "stack voltage in V")
	current := flag.Float64("current", ml.DefaultCurrent, "stack current in A")
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	pngPath := flag.String("png", "", "also write the bar chart to this PNG file")
	server := flag.String("server", "", "predict through a running server at this base URL")
	interactive := flag.Bool("interactive", false, "read \"voltage current\" pairs from stdin")
	flag.Parse()

	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		*configPath = ""
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	formatter, err := report.NewFormatter(cfg.Report.Locale)
	if err != nil {
		fatal(err)
	}

	var predict predictFunc
	if *server != "" {
		predict = remotePredictor(resty.New().SetBaseURL(*server).SetTimeout(cfg.HTTP.Timeout), cfg.Stack)
	} else {
		predict, err = localPredictor(cfg)
		if err != nil {
			fatal(err)
		}
	}

	ctx := context.Background()
	if *interactive {
		if err := runInteractive(ctx, os.Stdin, os.Stdout, predict, formatter); err != nil {
			fatal(err)
		}
		return
	}

	prediction, ref, err := predict(ctx, ml.Input{Voltage: *voltage, Current: *current})
	if err != nil {
		fatal(err)
	}
	if err := formatter.WriteText(os.Stdout, prediction, ref); err != nil {
		fatal(err)
	}
	if *pngPath != "" {
		if err := writePNG(*pngPath, prediction); err != nil {
			fatal(err)
		}
		fmt.Printf("\nChart written to %s\n", *pngPath)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func localPredictor(cfg *config.Config) (predictFunc, error) {
	paths := cfg.Models.Paths.All()
	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("⏳ loading models"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	artifacts, err := ml.LoadArtifacts(cfg.Models.Paths, ml.WithProgress(func(name string) {
		bar.Describe("⏳ loaded " + name)
		_ = bar.Add(1)
	}))
	_ = bar.Finish()
	if err != nil {
		return nil, err
	}

	predictor := ml.NewPredictor(ml.NewRegistry(artifacts), nil)
	params := cfg.Stack
	return func(ctx context.Context, in ml.Input) (*ml.Prediction, *stack.Reference, error) {
		prediction, err := predictor.Predict(ctx, in)
		if err != nil {
			return nil, nil, err
		}
		ref := params.Estimate(in.Voltage, in.Current)
		return prediction, &ref, nil
	}, nil
}

type apiError struct {
	Error string `json:"error"`
}

func remotePredictor(client *resty.Client, params stack.Parameters) predictFunc {
	return func(ctx context.Context, in ml.Input) (*ml.Prediction, *stack.Reference, error) {
		var result fhttp.PredictResponse
		var failure apiError
		res, err := client.R().
			SetContext(ctx).
			SetBody(fhttp.PredictRequest{Voltage: &in.Voltage, Current: &in.Current, Stack: &params}).
			SetResult(&result).
			SetError(&failure).
			Post("/api/predict")
		if err != nil {
			return nil, nil, fmt.Errorf("request prediction: %w", err)
		}
		if res.IsError() {
			if failure.Error != "" {
				return nil, nil, fmt.Errorf("server returned %d: %s", res.StatusCode(), failure.Error)
			}
			return nil, nil, fmt.Errorf("server returned %d", res.StatusCode())
		}
		if result.Prediction == nil {
			return nil, nil, errors.New("server returned no prediction")
		}
		return result.Prediction, &result.Reference, nil
	}
}

// runInteractive predicts one line at a time until EOF or "quit". Bad lines are
// reported and skipped.
func runInteractive(ctx context.Context, r io.Reader, w io.Writer, predict predictFunc, formatter *report.Formatter) error {
	scanner := bufio.NewScanner(r)
	fmt.Fprint(w, "voltage current> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "quit", "exit":
			return nil
		default:
			in, err := parseInput(line)
			if err == nil {
				var prediction *ml.Prediction
				var ref *stack.Reference
				prediction, ref, err = predict(ctx, in)
				if err == nil {
					err = formatter.WriteText(w, prediction, ref)
				}
			}
			if err != nil {
				fmt.Fprintln(w, "error:", err)
			}
		}
		fmt.Fprint(w, "\nvoltage current> ")
	}
	return scanner.Err()
}

func parseInput(line string) (ml.Input, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ' ' || r == '\t' || r == ',' })
	if len(fields) != 2 {
		return ml.Input{}, fmt.Errorf("expected \"voltage current\", got %q", line)
	}
	voltage, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return ml.Input{}, fmt.Errorf("voltage: %w", err)
	}
	current, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return ml.Input{}, fmt.Errorf("current: %w", err)
	}
	return ml.Input{Voltage: voltage, Current: current}, nil
}

func writePNG(path string, p *ml.Prediction) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.RenderPNG(file, p); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
