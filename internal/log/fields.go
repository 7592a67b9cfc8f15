package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldEntity      = "entity"
	FieldEntityID    = "entity_id"
	FieldBudgetID    = "budget_id"
	FieldCategoryID  = "category_id"
	FieldAmountCents = "amount_cents"
	FieldPeriod      = "period"
	FieldUseCase     = "use_case"
	FieldErrorKind   = "error_kind"
	FieldWorkID      = "work_id"
	FieldWorkKind    = "work_kind"
	FieldWorkName    = "work_name"
	FieldAttempts    = "attempts"
	FieldOutcome     = "outcome"
	FieldDuration    = "duration_ms"
	FieldCount       = "count"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentCLI       = "cli"
	ComponentUseCase   = "usecase"
	ComponentBudget    = "budget"
	ComponentStorage   = "storage"
	ComponentRepo      = "repository"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentScheduler = "scheduler"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpPush     = "push"
	OpPull     = "pull"
	OpSync     = "sync"
	OpRollover = "rollover"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithSync adds the entity/user pair a sync round works on.
func (f LogFields) WithSync(entity, userID string) LogFields {
	f[FieldEntity] = entity
	f[FieldUserID] = userID
	return f
}

// WithBudget adds budget identification fields
func (f LogFields) WithBudget(budgetID, categoryID string, amountCents int64) LogFields {
	f[FieldBudgetID] = budgetID
	f[FieldCategoryID] = categoryID
	f[FieldAmountCents] = amountCents
	return f
}

// WithWork adds scheduler work item fields
func (f LogFields) WithWork(id int64, kind, name string, attempts int) LogFields {
	f[FieldWorkID] = id
	f[FieldWorkKind] = kind
	f[FieldWorkName] = name
	f[FieldAttempts] = attempts
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
