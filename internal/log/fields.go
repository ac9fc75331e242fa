package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldSource      = "source"
	FieldBackend     = "backend"
	FieldAETitle     = "ae_title"
	FieldOrderNum    = "order_num"
	FieldRows        = "rows"
	FieldDropped     = "dropped"
	FieldCacheHit    = "cache_hit"
	FieldTimelineLen = "timeline_months"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLoader  = "loader"
	ComponentCache   = "cache"
	ComponentDevice  = "device"
	ComponentSource  = "source"
	ComponentAMQP    = "amqp"
	ComponentBackend = "backend"
	ComponentTrace   = "trace"
)

// Operations defines standard operation names
const (
	OpLoad      = "load"
	OpAggregate = "aggregate"
	OpSummarize = "summarize"
	OpReload    = "reload"
	OpConsume   = "consume"
	OpPublish   = "publish"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeNotFound   = "not_found_error"
	ErrorTypeLoad       = "load_error"
	ErrorTypeDegraded   = "degraded_load"
	ErrorTypeInternal   = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds the error message and its category.
func (f LogFields) WithError(err error, errorType string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = errorType
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithDevice(aeTitle, orderNum string) LogFields {
	f[FieldAETitle] = aeTitle
	if orderNum != "" {
		f[FieldOrderNum] = orderNum
	}
	return f
}

// WithTable describes the outcome of reading one reference table.
func (f LogFields) WithTable(source string, rows, dropped int) LogFields {
	f[FieldSource] = source
	f[FieldRows] = rows
	f[FieldDropped] = dropped
	return f
}

func (f LogFields) WithHTTP(method, path string, statusCode int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
