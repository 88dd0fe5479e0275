package domain

// Request variable labels recognized on onboarding incidents.
const (
	LabelStartDate    = "Start date"
	LabelFirstName    = "First Name"
	LabelLastName     = "Last Name"
	LabelPrivateEmail = "Private mail"
	LabelCostCenter   = "Cost Center"
	LabelMobilePhone  = "Mobile # (example:+972123456789)"
	LabelTitle        = "Title"
	LabelEmployeeType = "Employee Type"
	LabelWorkAddress  = "Work Address"
	LabelManager      = "Manager"
)

// RecognizedLabels lists every label an onboarding incident must carry, in
// the order missing labels are reported.
var RecognizedLabels = []string{
	LabelStartDate,
	LabelFirstName,
	LabelLastName,
	LabelPrivateEmail,
	LabelCostCenter,
	LabelMobilePhone,
	LabelTitle,
	LabelEmployeeType,
	LabelWorkAddress,
	LabelManager,
}

// UserRecord is the typed result of parsing an incident's request variables.
// Manager holds the resolved manager name.
type UserRecord struct {
	StartDate    string `validate:"nonzero"`
	FirstName    string `validate:"nonzero"`
	LastName     string `validate:"nonzero"`
	PrivateEmail string `validate:"nonzero"`
	CostCenter   string `validate:"nonzero"`
	MobilePhone  string `validate:"nonzero"`
	Title        string `validate:"nonzero"`
	EmployeeType string `validate:"nonzero"`
	WorkAddress  string `validate:"nonzero"`
	Manager      string `validate:"nonzero"`
}

// Field returns a pointer to the record field that stores label.
func (u *UserRecord) Field(label string) (*string, bool) {
	switch label {
	case LabelStartDate:
		return &u.StartDate, true
	case LabelFirstName:
		return &u.FirstName, true
	case LabelLastName:
		return &u.LastName, true
	case LabelPrivateEmail:
		return &u.PrivateEmail, true
	case LabelCostCenter:
		return &u.CostCenter, true
	case LabelMobilePhone:
		return &u.MobilePhone, true
	case LabelTitle:
		return &u.Title, true
	case LabelEmployeeType:
		return &u.EmployeeType, true
	case LabelWorkAddress:
		return &u.WorkAddress, true
	case LabelManager:
		return &u.Manager, true
	}
	return nil, false
}

// LabelForField maps UserRecord field names back to incident labels.
var LabelForField = map[string]string{
	"StartDate":    LabelStartDate,
	"FirstName":    LabelFirstName,
	"LastName":     LabelLastName,
	"PrivateEmail": LabelPrivateEmail,
	"CostCenter":   LabelCostCenter,
	"MobilePhone":  LabelMobilePhone,
	"Title":        LabelTitle,
	"EmployeeType": LabelEmployeeType,
	"WorkAddress":  LabelWorkAddress,
	"Manager":      LabelManager,
}

// Extraction pairs the user record with the manager email used for routing
// notifications.
type Extraction struct {
	User         UserRecord
	ManagerEmail string
}

// Contact is a ticketing-system group resolved by id.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
