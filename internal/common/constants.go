package common

// Environment variable keys
const (
	EnvModelPath        = "MODEL_PATH"
	EnvPort             = "PORT"
	EnvMetricsPort      = "METRICS_PORT"
	EnvDashboardPort    = "DASHBOARD_PORT"
	EnvDataPath         = "DATA_PATH"
	EnvProbThreshold    = "PROB_THRESHOLD"
	EnvInferenceTimeout = "INFERENCE_TIMEOUT"
	EnvEnableFallback   = "ENABLE_FALLBACK"
	EnvRateLimit        = "RATE_LIMIT"
	EnvMaxBatchSize     = "MAX_BATCH_SIZE"
	EnvConfigFile       = "CONFIG_FILE"
)

// Configuration defaults
const (
	DefaultModelPath     = "models/loan_default.onnx"
	DefaultPort          = 9000
	DefaultMetricsPort   = 9100
	DefaultProbThreshold = 0.5
	DefaultMaxBatchSize  = 100
	DefaultRateLimit     = 60 // requests per minute per client
	ServiceName          = "Loan Default Prediction API"
)

// Underwriting policy thresholds. These drive the derived risk flags and are
// named constants so the decision policy stays auditable independently of the
// classifier.
const (
	EmploymentRiskMaxYears    = 2    // employment_length below this flags employment_risk
	HighInterestCutoff        = 15.0 // annual rate (%) above this flags high_interest
	YoungBorrowerMaxAge       = 30   // age below this flags young_borrower
	ExperiencedWorkerMinYears = 10   // employment_length above this flags experienced_worker
	HighCreditScoreCutoff     = 750  // credit_score above this flags high_credit_score
	MultipleDelinquenciesMin  = 2    // delinquency_2yrs at or above this flags multiple_delinquencies
	ManyOpenAccountsCutoff    = 10   // num_open_acc above this flags many_open_accounts
)

// Credit score bin edges. Bins are right-closed: [0,580] Poor, (580,670] Fair,
// (670,740] Good, (740,850] Excellent. Scores outside [0,850] are rejected at
// validation.
const (
	CreditScoreMin     = 0.0
	CreditScorePoorMax = 580.0
	CreditScoreFairMax = 670.0
	CreditScoreGoodMax = 740.0
	CreditScoreMax     = 850.0
)

// Risk band lower bounds over the default probability. A probability equal to
// a bound belongs to the band that bound opens (p=0.10 is Low, not Very Low).
const (
	RiskBandLow      = 0.10
	RiskBandMedium   = 0.25
	RiskBandHigh     = 0.50
	RiskBandVeryHigh = 0.75
)

// Validation limits
const (
	MinPort           = 1024
	MaxPort           = 65535
	MaxBatchSizeLimit = 1000
)
