package core

// Error codes classifying failures across the pipeline. Codes travel inside
// tool results and order-placement outcomes so the model (and logs) can
// distinguish recoverable validation problems from upstream failures.
const (
	ErrCodeAuth       = "AUTH_ERROR"
	ErrCodeData       = "DATA_ERROR"
	ErrCodeAddress    = "ADDRESS_ERROR"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeAPI        = "API_ERROR"
	ErrCodeParsing    = "PARSING_ERROR"
	ErrCodeConnection = "CONNECTION_ERROR"
	ErrCodeUnknown    = "UNKNOWN_ERROR"
)
