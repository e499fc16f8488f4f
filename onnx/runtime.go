package onnx

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/krau/agrotagger/config"
	ort "github.com/yalue/onnxruntime_go"
)

const EnvLib = "ONNXRUNTIME_LIB"

var pathOnce sync.Once
var libPath string

func LibPath() string {
	pathOnce.Do(func() {
		libPath = resolveLibPath(config.C().Libonnx, os.Getenv(EnvLib), runtime.GOOS)
		if libPath == "" {
			slog.Error("ONNX Runtime library path could not be determined for this OS")
		} else {
			slog.Info("Using ONNX Runtime library", slog.String("path", libPath))
		}
	})
	return libPath
}

func resolveLibPath(configured, env, goos string) string {
	if configured != "" {
		return configured
	}
	if env != "" {
		return env
	}
	for _, p := range candidates(goos) {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func candidates(goos string) []string {
	switch goos {
	case "linux":
		return []string{
			filepath.Join("onnxlibs", "libonnxruntime.so"),
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
			"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
		}
	case "darwin":
		return []string{
			filepath.Join("onnxlibs", "libonnxruntime.dylib"),
			"/usr/local/lib/libonnxruntime.dylib",
			"/opt/homebrew/lib/libonnxruntime.dylib",
		}
	case "windows":
		return []string{filepath.Join("onnxlibs", "onnxruntime.dll")}
	default:
		return nil
	}
}

// Init loads the shared library and prepares the global ONNX Runtime environment.
func Init() error {
	p := LibPath()
	if p == "" {
		return errors.New("onnxruntime library not found, set libonnx or " + EnvLib)
	}
	ort.SetSharedLibraryPath(p)
	return ort.InitializeEnvironment()
}

func Destroy() {
	if err := ort.DestroyEnvironment(); err != nil {
		slog.Warn("Failed to destroy ONNX Runtime environment", slog.String("error", err.Error()))
	}
}
