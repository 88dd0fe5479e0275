package domain

// VPNLinks are the VPN client downloads included in onboarding emails.
type VPNLinks struct {
	WindowsDownload string
	MacDownload     string
	LinuxDownload   string
	RemoteGateway   string
	Port            string
}

// WelcomeNotice is sent to every new hire once the identity account exists.
type WelcomeNotice struct {
	CompanyName    string
	FirstName      string
	PrivateEmail   string
	WorkEmail      string
	ManagerEmail   string
	ActivationLink string
	VPN            VPNLinks
}

// CloudAccessNotice carries the cloud workspace credentials.
type CloudAccessNotice struct {
	FirstName     string
	WorkEmail     string
	ManagerEmail  string
	PortalURL     string
	CloudUsername string
	CloudPassword string
	VPN           VPNLinks
}
