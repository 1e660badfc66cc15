package orders

type Status string

// remember to add new statuses to validNext
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusCompleted: true},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// ParseStatus validates s against the known statuses.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validNext[status]; ok {
		return status, nil
	}
	return "", &ValidationError{Field: "status", Reason: "must be one of pending, processing, completed, cancelled"}
}

func Statuses() []Status {
	return []Status{StatusPending, StatusProcessing, StatusCompleted, StatusCancelled}
}

// CanTransition reports whether the lifecycle graph allows from -> to.
// Admin status overrides deliberately bypass it.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func CanCancel(s Status) bool {
	return s == StatusPending
}

func IsTerminal(s Status) bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

// StatusText is the customer-facing label.
func StatusText(s Status) string {
	switch s {
	case StatusPending:
		return "Pendiente"
	case StatusProcessing:
		return "En Proceso"
	case StatusCompleted:
		return "Completado"
	case StatusCancelled:
		return "Cancelado"
	default:
		return "Desconocido"
	}
}

// StatusBadge is the UI colour hint used by the back office.
func StatusBadge(s Status) string {
	switch s {
	case StatusPending:
		return "warning"
	case StatusProcessing:
		return "info"
	case StatusCompleted:
		return "success"
	case StatusCancelled:
		return "danger"
	default:
		return "secondary"
	}
}
