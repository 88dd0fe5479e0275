package domain

// ProfileAttributes is the "profile" object of an identity-provider user.
type ProfileAttributes struct {
	FirstName   string `json:"firstName"`
	State       string `json:"state"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Login       string `json:"login"`
	SecondEmail string `json:"secondEmail"`
	MobilePhone string `json:"mobilePhone"`
	CostCenter  string `json:"costCenter"`
	Title       string `json:"title"`
	Department  string `json:"department"`
	Manager     string `json:"manager"`
	UserType    string `json:"userType"`
	Address     string `json:"address"`
}

// IdentityProfile is the account-creation payload sent to the identity provider.
type IdentityProfile struct {
	Profile  ProfileAttributes `json:"profile"`
	GroupIDs []string          `json:"groupIds"`
}

// IdentityUser is a user as returned by the identity provider.
type IdentityUser struct {
	ID      string            `json:"id"`
	Status  string            `json:"status"`
	Profile ProfileAttributes `json:"profile"`
}

// CloudAccount holds credentials of a provisioned cloud workspace user.
type CloudAccount struct {
	Username string
	Password string
}
