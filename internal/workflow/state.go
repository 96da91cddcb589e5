package workflow

// State is the controller's position in the selection flow.
type State int

const (
	Idle State = iota
	ServicesLoaded
	ServiceSelected
	FormsLoaded
	FormSelected
	FieldsLoaded
	Generating
	DocumentReady
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ServicesLoaded:
		return "services loaded"
	case ServiceSelected:
		return "service selected"
	case FormsLoaded:
		return "forms loaded"
	case FormSelected:
		return "form selected"
	case FieldsLoaded:
		return "fields loaded"
	case Generating:
		return "generating"
	case DocumentReady:
		return "document ready"
	default:
		return "unknown"
	}
}
