package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidIntent     = errors.New("invalid intent")
	ErrUnsupportedAsset  = errors.New("unsupported asset")
	ErrIntentExpired     = errors.New("intent expired")
	ErrInvalidRoute      = errors.New("invalid route")
	ErrNoRoutes          = errors.New("no viable routes")
	ErrQuoteTimeout      = errors.New("no quotes received within timeout")
	ErrNoQuotes          = errors.New("no acceptable quotes")
	ErrConditionTimeout  = errors.New("execution conditions not met within timeout")
	ErrRiskCeiling       = errors.New("risk ceiling exceeded")
	ErrNotCancellable    = errors.New("execution not cancellable")
	ErrSolverInactive    = errors.New("solver not active")
	ErrInvalidSignature  = errors.New("invalid quote signature")
	ErrWSDisconnect      = errors.New("websocket disconnected")
	ErrContextDone       = errors.New("context cancelled")
	ErrLockHeld          = errors.New("lock already held")
)

// Error codes attached to ExecutionError records.
const (
	CodeSlippageExceeded      = "SLIPPAGE_EXCEEDED"
	CodeInsufficientLiquidity = "INSUFFICIENT_LIQUIDITY"
	CodeNetworkCongestion     = "NETWORK_CONGESTION"
	CodeRiskCritical          = "RISK_CRITICAL"
	CodeRiskIncreased         = "RISK_INCREASED"
	CodeConditionTimeout      = "CONDITION_TIMEOUT"
	CodeConditionUnmet        = "CONDITION_UNMET"
	CodeQuoteTimeout          = "QUOTE_TIMEOUT"
	CodeHopFailed             = "HOP_FAILED"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeMajorityFailed        = "SPLIT_MAJORITY_FAILED"
)

// recoverableCodes is the fixed whitelist of known transient execution
// failure categories. Anything outside it fails the whole attempt.
var recoverableCodes = map[string]bool{
	CodeSlippageExceeded:      true,
	CodeInsufficientLiquidity: true,
	CodeNetworkCongestion:     true,
	CodeConditionTimeout:      true,
	CodeConditionUnmet:        true,
	CodeQuoteTimeout:          true,
	CodeRiskIncreased:         true,
}

// RecoverableCode reports whether an error code belongs to the transient
// whitelist.
func RecoverableCode(code string) bool {
	return recoverableCodes[code]
}

// HopError is a coded failure reported by the settlement layer for a single
// hop. The code feeds the recoverability classification.
type HopError struct {
	Code    string
	Message string
}

func (e *HopError) Error() string {
	return e.Message
}

// ClassifyHopError maps an arbitrary hop failure to an error code. Coded
// failures keep their code; everything else is an uncategorized hop failure.
func ClassifyHopError(err error) string {
	var he *HopError
	if errors.As(err, &he) {
		return he.Code
	}
	return CodeHopFailed
}
