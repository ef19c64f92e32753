// Package log defines standard attribute keys for training and inference logs.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so that log output can be filtered by category.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "RandomForestClassifier", "OneHotEncoder", "MultiOutputClassifier"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "score", "load", "save"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component emitted the record.
	// Examples: "catalog", "training", "inference", "recommend"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"

	// TargetKey names the target attribute a record refers to.
	// Examples: "ideallight", "watering"
	TargetKey = "ml.target"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of rows being processed.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of feature columns.
	FeaturesKey = "data.features"

	// TargetsKey indicates the number of target columns.
	TargetsKey = "data.targets"

	// DroppedKey counts rows excluded for missing values.
	DroppedKey = "data.dropped"

	// ClassesKey lists or counts the classes of a target.
	ClassesKey = "data.classes"

	// PathKey is the filesystem path of an input or output.
	PathKey = "data.path"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy in [0.0, 1.0].
	AccuracyKey = "metrics.accuracy"

	// PrecisionKey records per-class or macro precision.
	PrecisionKey = "metrics.precision"

	// RecallKey records per-class or macro recall.
	RecallKey = "metrics.recall"
)

// Error Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	// Populated automatically when an error carries a cockroachdb stack.
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// RunIDKey identifies the training run that produced an artifact bundle.
	RunIDKey = "artifact.run_id"

	// ArtifactKey names a single artifact file within a bundle.
	ArtifactKey = "artifact.name"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationLoad      = "load"
	OperationSave      = "save"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorInsufficientData  = "INSUFFICIENT_DATA"
	ErrorArtifactLoad      = "ARTIFACT_LOAD"
)
