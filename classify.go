package main

import (
	"encoding/json"
	"fmt"
	"image"
	"os"

	"github.com/krau/agrotagger/config"
	"github.com/krau/agrotagger/onnx"
	"github.com/krau/agrotagger/service"
	"github.com/spf13/cobra"
)

var classifierName string

var classifyCmd = &cobra.Command{
	Use:   "classify image...",
	Short: "Classify local images without starting the server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ok := config.C().Classifier(classifierName)
		if !ok {
			return fmt.Errorf("unknown classifier %q", classifierName)
		}
		if err := onnx.Init(); err != nil {
			return err
		}
		defer onnx.Destroy()

		clf, err := service.NewClassifier(cfg)
		if err != nil {
			return err
		}
		defer clf.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, p := range args {
			out := struct {
				File string `json:"file"`
				*service.Prediction
				Error string `json:"error,omitempty"`
			}{File: p}
			img, err := decodeImage(p)
			if err == nil {
				out.Prediction, err = clf.Predict(cmd.Context(), img)
			}
			if err != nil {
				out.Error = err.Error()
			}
			if err := enc.Encode(out); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifierName, "classifier", "disease", "configured classifier name")
}

func decodeImage(p string) (image.Image, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
