package log

import "sort"

// Field names shared by every log line.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldReferer    = "referer"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldMonthID    = "month_id"
	FieldNoteID     = "note_id"
	FieldRecordID   = "record_id"
	FieldPeriod     = "period"
	FieldChangeKind = "change_kind"
	FieldSheetsRef  = "sheets_ref"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentMonth     = "month"
	ComponentNote      = "note"
	ComponentAuth      = "auth"
	ComponentWorker    = "worker"
	ComponentBackend   = "backend"
	ComponentTemplate  = "template"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
)

const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpExport = "export"
	OpSignIn = "sign_in"
	OpSignUp = "sign_up"
	OpRender = "render"
)

const (
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields builds the attribute list of one log line.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithMonth(id, period string) LogFields {
	f[FieldMonthID] = id
	f[FieldPeriod] = period
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields into slog key/value pairs, sorted by key so
// lines are stable.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
