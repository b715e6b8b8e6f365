package log

// Field names.
const (
	FieldComponent    = "component"
	FieldError        = "error"
	FieldErrorType    = "error_type"
	FieldOperation    = "operation"
	FieldLedgerKey    = "ledger_key"
	FieldMonth        = "month"
	FieldRevision     = "revision"
	FieldScope        = "scope"
	FieldLevel        = "alert_level"
	FieldIdentifier   = "identifier"
	FieldAdded        = "added"
	FieldSkipped      = "skipped"
	FieldDuplicates   = "duplicates"
	FieldDigest       = "digest"
	FieldTransactions = "transactions"
	FieldDuration     = "duration_ms"
)

const (
	ComponentApp       = "app"
	ComponentService   = "service"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentAlerts    = "alerts"
	ComponentBackend   = "backend"
	ComponentProcessor = "processor"
)

const (
	OpCommit   = "commit"
	OpEvaluate = "evaluate"
	OpImport   = "import"
	OpBackup   = "backup"
	OpRestore  = "restore"
	OpSync     = "sync"
	OpExport   = "export"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields is a builder for structured log attributes.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithErrorType(t string) LogFields {
	f[FieldErrorType] = t
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithLedger(key string) LogFields {
	f[FieldLedgerKey] = key
	return f
}

func (f LogFields) WithMonth(month string) LogFields {
	f[FieldMonth] = month
	return f
}

func (f LogFields) WithAlert(scope, level, identifier string) LogFields {
	f[FieldScope] = scope
	f[FieldLevel] = level
	f[FieldIdentifier] = identifier
	return f
}

func (f LogFields) WithImport(added, skipped, duplicates int, digest string) LogFields {
	f[FieldAdded] = added
	f[FieldSkipped] = skipped
	f[FieldDuplicates] = duplicates
	f[FieldDigest] = digest
	return f
}

func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
	return f
}

// ToSlice flattens the fields into slog key/value pairs.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
