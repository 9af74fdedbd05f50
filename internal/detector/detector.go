// detector.go fruit detection model specific code
package detector

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	tflite "github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"
	"golang.org/x/sync/singleflight"

	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/cpuspec"
	"github.com/tphakala/fruitcount-go/internal/errors"
	"github.com/tphakala/fruitcount-go/internal/logging"
	"github.com/tphakala/fruitcount-go/internal/observability/metrics"
)

// getLoggerSafe returns a logger for the service, falling back to default if logging not initialized
func getLoggerSafe(service string) *slog.Logger {
	logger := logging.ForService(service)
	if logger == nil {
		logger = slog.Default().With("service", service)
	}
	return logger
}

// Detector wraps a YOLO-family TFLite interpreter and counts configured
// fruit classes on decoded images.
type Detector struct {
	Settings *conf.Settings

	interpreter *tflite.Interpreter
	model       *tflite.Model
	labels      []string

	// Model input geometry, read from the input tensor after allocation.
	inputSize int

	// Allow-list resolution state. Resolution runs at most once per loaded
	// label table; concurrent first callers share the winner's result.
	resolveGroup singleflight.Group
	resolveMu    sync.RWMutex
	resolved     *classFilter

	// mu serializes access to the interpreter, tensors are shared state.
	mu sync.Mutex

	metrics *metrics.DetectorMetrics
	log     *slog.Logger
}

// New initializes a Detector from the given settings. The model is loaded,
// the interpreter allocated and the label table read before New returns, so
// a non-nil Detector is ready for Detect calls.
func New(settings *conf.Settings, detectorMetrics *metrics.DetectorMetrics) (*Detector, error) {
	d := &Detector{
		Settings: settings,
		metrics:  detectorMetrics,
		log:      getLoggerSafe("detector"),
	}

	if err := d.initializeModel(); err != nil {
		d.recordModelLoad(err)
		return nil, errors.New(fmt.Errorf("detector: failed to initialize model: %w", err)).
			Component("detector").
			Category(errors.CategoryModelInit).
			ModelContext(settings.Detector.ModelPath, settings.Detector.ModelName).
			Build()
	}

	if err := d.loadLabels(); err != nil {
		d.Close()
		d.recordModelLoad(err)
		return nil, errors.New(fmt.Errorf("detector: failed to load class labels: %w", err)).
			Component("detector").
			Category(errors.CategoryModelInit).
			ModelContext(settings.Detector.ModelPath, settings.Detector.ModelName).
			Context("label_path", settings.Detector.LabelPath).
			Build()
	}

	if err := d.validateModelAndLabels(); err != nil {
		d.Close()
		d.recordModelLoad(err)
		return nil, errors.New(fmt.Errorf("detector: model validation failed: %w", err)).
			Component("detector").
			Category(errors.CategoryModelInit).
			ModelContext(settings.Detector.ModelPath, settings.Detector.ModelName).
			Build()
	}

	d.recordModelLoad(nil)
	return d, nil
}

// initializeModel loads and initializes the detection model.
func (d *Detector) initializeModel() error {
	start := time.Now()

	modelData, err := d.loadModel()
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryModelLoad).
			ModelContext(d.Settings.Detector.ModelPath, d.Settings.Detector.ModelName).
			Timing("model-load", time.Since(start)).
			Build()
	}

	d.model = tflite.NewModel(modelData)
	if d.model == nil {
		return errors.New(fmt.Errorf("cannot load TensorFlow Lite model")).
			Category(errors.CategoryModelInit).
			ModelContext(d.Settings.Detector.ModelPath, d.Settings.Detector.ModelName).
			Context("model_size_mb", len(modelData)/1024/1024).
			Context("use_xnnpack", d.Settings.Detector.UseXNNPACK).
			Timing("model-init", time.Since(start)).
			Build()
	}

	// Determine the number of threads for the interpreter based on settings and system capacity.
	threads := d.determineThreadCount(d.Settings.Detector.Threads)

	// Configure interpreter options.
	options := tflite.NewInterpreterOptions()

	// Try to use XNNPACK delegate if enabled in settings
	if d.Settings.Detector.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // G115: thread count bounded by CPU count, safe conversion
		if delegate == nil {
			d.log.Warn("Failed to create XNNPACK delegate, falling back to default CPU",
				"tflite_download", "https://github.com/tphakala/tflite_c/releases/tag/v2.17.1")
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
		}
	} else {
		options.SetNumThread(threads)
	}

	options.SetErrorReporter(func(msg string, user_data any) {
		getLoggerSafe("detector").Error("TFLite error", "message", msg)
	}, nil)

	// Create and allocate the TensorFlow Lite interpreter.
	d.interpreter = tflite.NewInterpreter(d.model, options)
	if d.interpreter == nil {
		return fmt.Errorf("cannot create interpreter")
	}
	if status := d.interpreter.AllocateTensors(); status != tflite.OK {
		return fmt.Errorf("tensor allocation failed")
	}

	// Read the square input edge from the model unless configured explicitly.
	d.inputSize = d.Settings.Detector.ImageSize
	if inputTensor := d.interpreter.GetInputTensor(0); inputTensor != nil && inputTensor.NumDims() == 4 {
		if edge := inputTensor.Dim(1); edge > 0 && edge != d.inputSize {
			d.log.Warn("Configured image size differs from model input, using model input",
				"configured", d.inputSize, "model", edge)
			d.inputSize = edge
		}
	}

	// Force garbage collection to reclaim memory from model loading
	// The model data is no longer needed as TFLite has created its own internal copy
	runtime.GC()

	if d.Settings.Detector.Threads == 0 {
		spec := cpuspec.GetCPUSpec()
		if spec.PerformanceCores > 0 {
			d.log.Info("Detection model initialized",
				"model", d.Settings.Detector.ModelName,
				"threads", threads,
				"performance_cores", spec.PerformanceCores,
				"total_cpus", runtime.NumCPU())
		} else {
			d.log.Info("Detection model initialized",
				"model", d.Settings.Detector.ModelName,
				"threads", threads,
				"total_cpus", runtime.NumCPU())
		}
	} else {
		d.log.Info("Detection model initialized",
			"model", d.Settings.Detector.ModelName,
			"threads", threads,
			"total_cpus", runtime.NumCPU(),
			"threads_configured", true)
	}
	return nil
}

// loadModel reads the model file configured in settings.
func (d *Detector) loadModel() ([]byte, error) {
	start := time.Now()

	modelPath := d.Settings.Detector.ModelPath
	// Expand environment variables first
	modelPath = os.ExpandEnv(modelPath)

	// Then expand ~ to home directory if needed
	if strings.HasPrefix(modelPath, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryFileIO).
				Context("path", modelPath).
				Build()
		}
		modelPath = filepath.Join(homeDir, modelPath[2:])
	}

	data, err := os.ReadFile(modelPath) //nolint:gosec // G304: modelPath is from application settings
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			ModelContext(modelPath, d.Settings.Detector.ModelName).
			Context("operation", "read").
			Timing("model-file-read", time.Since(start)).
			Build()
	}

	d.log.Debug("Loaded model file", "path", modelPath, "size_mb", len(data)/1024/1024)
	return data, nil
}

// determineThreadCount calculates the appropriate number of threads to use based on settings and system capabilities.
func (d *Detector) determineThreadCount(configuredThreads int) int {
	systemCpuCount := runtime.NumCPU()

	// If threads are configured to 0, try to get optimal count from cpuspec
	if configuredThreads == 0 {
		spec := cpuspec.GetCPUSpec()
		optimalThreads := spec.GetOptimalThreadCount()
		if optimalThreads > 0 {
			return min(optimalThreads, systemCpuCount)
		}

		// If cpuspec doesn't know the CPU, use all available cores
		return systemCpuCount
	}

	// If threads are configured but exceed system CPU count, limit to system CPU count
	if configuredThreads > systemCpuCount {
		return systemCpuCount
	}

	return configuredThreads
}

// validateModelAndLabels checks that the label table matches the model's
// class dimension. YOLO-family detection output is [1, 4+classes, candidates].
func (d *Detector) validateModelAndLabels() error {
	outputTensor := d.interpreter.GetOutputTensor(0)
	if outputTensor == nil {
		return errors.New(fmt.Errorf("cannot get output tensor from model")).
			Category(errors.CategoryValidation).
			ModelContext(d.Settings.Detector.ModelPath, d.Settings.Detector.ModelName).
			Context("interpreter_status", "failed").
			Build()
	}

	if outputTensor.NumDims() != 3 {
		return errors.Newf("unexpected output tensor rank %d, want 3", outputTensor.NumDims()).
			Category(errors.CategoryValidation).
			ModelContext(d.Settings.Detector.ModelPath, d.Settings.Detector.ModelName).
			Build()
	}

	modelClassCount := outputTensor.Dim(1) - boxAttributes
	labelCount := len(d.labels)

	if labelCount != modelClassCount {
		return errors.Newf("label count mismatch: model expects %d classes but label table has %d labels",
			modelClassCount, labelCount).
			Category(errors.CategoryValidation).
			ModelContext(d.Settings.Detector.ModelPath, d.Settings.Detector.ModelName).
			Context("expected_labels", modelClassCount).
			Context("actual_labels", labelCount).
			Context("label_path_type", func() string {
				if d.Settings.Detector.LabelPath == "" {
					return "embedded"
				}
				return "external"
			}()).
			Build()
	}

	d.log.Debug("Model validation successful", "labels", labelCount, "classes", modelClassCount)
	return nil
}

// recordModelLoad reports the load outcome to metrics when metrics are wired.
func (d *Detector) recordModelLoad(err error) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordModelLoad(d.Settings.Detector.ModelName, err)
}

// Close releases the interpreter and model. The Detector must not be used
// after Close.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.interpreter != nil {
		d.interpreter.Delete()
		d.interpreter = nil
	}
	if d.model != nil {
		d.model.Delete()
		d.model = nil
	}
}
