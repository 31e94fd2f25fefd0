package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidParameter      ErrorCode = 100
	ErrCodeInvalidConfiguration  ErrorCode = 101
	ErrCodeMissingParameter      ErrorCode = 102
	ErrCodeInvalidType           ErrorCode = 103
	ErrCodeInvalidPeriod         ErrorCode = 104
	ErrCodeInvalidCapital        ErrorCode = 105
	ErrCodeInvalidLeverage       ErrorCode = 106
	ErrCodeInvalidLiquidityCap   ErrorCode = 107
	ErrCodeInvalidCommission     ErrorCode = 108
	ErrCodeInvalidSlippageModel  ErrorCode = 109
	ErrCodeInvalidContractSize   ErrorCode = 110
	ErrCodeUnknownStrategy       ErrorCode = 111
	ErrCodeInvalidStrategyConfig ErrorCode = 112

	// Data/Feed errors (200-299)
	ErrCodeDataNotFound    ErrorCode = 200
	ErrCodeDataOutOfOrder  ErrorCode = 201
	ErrCodeDataParseFailed ErrorCode = 202
	ErrCodeDataQueryFailed ErrorCode = 203
	ErrCodeInvalidBar      ErrorCode = 204

	// Strategy errors (300-399)
	ErrCodeStrategyDecideFailed ErrorCode = 300
	ErrCodeInvalidIntent        ErrorCode = 301

	// Execution errors (400-499)
	ErrCodeInvalidOrder          ErrorCode = 400
	ErrCodeInsufficientLiquidity ErrorCode = 401
	ErrCodeInvalidExecutionPrice ErrorCode = 402
	ErrCodeUnsupportedOrderType  ErrorCode = 403
	ErrCodeLedgerApplyFailed     ErrorCode = 404

	// Backtest run errors (500-599)
	ErrCodeRunNotInitialized ErrorCode = 500
	ErrCodeRunAlreadyDone    ErrorCode = 501
	ErrCodeRunCancelled      ErrorCode = 502
	ErrCodeRunFailed         ErrorCode = 503

	// Metrics errors (600-699)
	ErrCodeInsufficientData   ErrorCode = 600
	ErrCodeMetricsCalculation ErrorCode = 601

	// Result store errors (700-799)
	ErrCodeStoreInitFailed  ErrorCode = 700
	ErrCodeStoreWriteFailed ErrorCode = 701
	ErrCodeStoreQueryFailed ErrorCode = 702
)
