package catalog

// Service is a top-level offering exposing one or more forms.
type Service struct {
	ID          ID     `json:"service_id"`
	Name        string `json:"service_name"`
	Description string `json:"service_description,omitempty"`
}

// Form is a fillable document template belonging to a service.
type Form struct {
	ID          ID     `json:"form_id"`
	Name        string `json:"form_name"`
	ServiceID   ID     `json:"service_id"`
	ServiceName string `json:"service_name"`
	Link        string `json:"form_link,omitempty"`
}

// FormMeta carries form-level metadata inside a form-details response.
type FormMeta struct {
	FormID      ID     `json:"form_id"`
	Name        string `json:"form_name,omitempty"`
	Description string `json:"form_description,omitempty"`
	Link        string `json:"form_link,omitempty"`
	ServiceID   ID     `json:"service_id,omitempty"`
}

// Category is a named grouping of questions.
type Category struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Question is a single field definition.
type Question struct {
	ID          ID     `json:"ques_id"`
	CategoryID  ID     `json:"category_id"`
	Text        string `json:"ques_text"`
	Placeholder string `json:"placeholder,omitempty"`
}
