package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bagula/platform/internal/calibration"
	"github.com/spf13/cobra"
)

// calibrationPoint is one judgment record in the input file.
type calibrationPoint struct {
	Confidence *float64 `json:"confidence"`
	Correct    bool     `json:"correct"`
}

func newCalibrateCmd() *cobra.Command {
	var buckets int

	cmd := &cobra.Command{
		Use:   "calibrate <points.json>",
		Short: "Analyze confidence calibration from judgment data",
		Long:  "Reads a JSON array of {confidence, correct} judgment records and reports Expected Calibration Error, per-bucket accuracy, and confidence bias.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalibrate(cmd, args[0], buckets)
		},
	}

	cmd.Flags().IntVar(&buckets, "buckets", calibration.DefaultBuckets, "number of equal-width confidence buckets")
	return cmd
}

func runCalibrate(cmd *cobra.Command, path string, buckets int) error {
	out := cmd.OutOrStdout()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read points: %w", err)
	}
	var points []calibrationPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return fmt.Errorf("parse points: %w", err)
	}

	cal := calibration.New(buckets)
	for _, p := range points {
		cal.AddPoint(p.Confidence, p.Correct)
	}

	res := cal.Calibrate()
	if res.InsufficientData {
		fmt.Fprintln(out, "No data points with confidence; nothing to calibrate.")
		return nil
	}

	fmt.Fprintf(out, "Calibration over %d points\n", res.TotalPoints)
	fmt.Fprintf(out, "  ECE: %.4f\n\n", res.ECE)
	fmt.Fprintln(out, "  bucket        count  confidence  accuracy")
	for _, b := range res.Buckets {
		if b.Count == 0 {
			continue
		}
		fmt.Fprintf(out, "  [%.2f, %.2f)  %5d  %10.3f  %8.3f\n",
			b.Low, b.High, b.Count, b.MeanConfidence, b.Accuracy)
	}

	bias := cal.AnalyzeBias()
	fmt.Fprintf(out, "\n%s\n", bias.Description)
	return nil
}
