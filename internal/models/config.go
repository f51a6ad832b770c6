package models

import (
	"path"

	"github.com/kardianos/osext"
)

// AppConfig is the application's main configuration structure
type AppConfig struct {
	// The directory where Eventdesk stores its database - defaults to the /data subdirectory of the folder the
	// executable resides in
	DataDir string `json:"dataDir" env:"EVENTDESK_DATA_DIR"`
	// The IP address to listen at - including the port number
	ListenAddress string `json:"listenAddress" env:"EVENTDESK_LISTEN_ADDRESS"`
	// Maximum number of simultaneously open client connections - 0 means unlimited
	MaxConnections int `json:"maxConnections" env:"EVENTDESK_MAX_CONNECTIONS"`
	// The credentials for the admin account that is created on startup
	DefaultAdmin DefaultAdminConfig `json:"defaultAdmin"`
	// How registrations are handled
	Registration RegistrationPolicy `json:"registration"`
	// Page sizes of listings
	Pagination PaginationConfig `json:"pagination"`
}

// The DefaultAdminConfig struct configures the admin user that is ensured to exist on startup
type DefaultAdminConfig struct {
	Name     string `json:"name" env:"EVENTDESK_ADMIN_NAME"`
	Password string `json:"password" env:"EVENTDESK_ADMIN_PASSWORD"`
	Email    string `json:"email" env:"EVENTDESK_ADMIN_EMAIL"`
}

// RegistrationPolicy decides what happens when users register for a full event
type RegistrationPolicy struct {
	// If set, registrations for full events are accepted as "waitlisted" and promoted when a seat is freed.
	// Otherwise they are rejected
	AllowWaitlist bool `json:"allowWaitlist" env:"EVENTDESK_ALLOW_WAITLIST"`
}

// PaginationConfig configures the page sizes used when the client does not request a specific one
type PaginationConfig struct {
	DefaultLimit uint `json:"defaultLimit"`
	MaxLimit     uint `json:"maxLimit"`
}

// GetDefaultConfig returns the default configuration values for the application
func GetDefaultConfig() (*AppConfig, error) {
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		return nil, err
	}
	return &AppConfig{
		DataDir: path.Join(execDir, "data"),
		DefaultAdmin: DefaultAdminConfig{
			Name:     "admin",
			Password: "changeme",
			Email:    "admin@localhost",
		},
		Pagination: PaginationConfig{
			DefaultLimit: 10,
			MaxLimit:     100,
		},
		ListenAddress:  ":3000",
		MaxConnections: 256,
	}, nil
}
