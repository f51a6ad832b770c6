package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"

	"github.com/derWhity/eventdesk/internal/ctxhelper"
	"github.com/derWhity/eventdesk/internal/log"
	"github.com/derWhity/eventdesk/internal/models"
)

// ConfigService gives the authenticated user access to parts of the application's configuration
type ConfigService interface {
	// RegistrationPolicy returns how registrations for full events are handled
	RegistrationPolicy(ctx context.Context) models.RegistrationPolicy
	// SetRegistrationPolicy changes the registration policy and persists the configuration
	SetRegistrationPolicy(ctx context.Context, policy models.RegistrationPolicy) error
	// Load loads the application config from its default file location
	Load(ctx context.Context) error
	// LoadFromFile loads the configuration from the given JSON file. Values set in the environment take precedence
	LoadFromFile(ctx context.Context, filename string) error
	// Write writes the current application configuration to the default file name
	Write(ctx context.Context) error
	// WriteToFile writes the current application configuration to a JSON file
	WriteToFile(ctx context.Context, filename string) error
	// GetConfig retuns the current application configuration
	GetConfig(ctx context.Context) models.AppConfig
}

// -- ConfigService implementation -------------------------------------------------------------------------------------

type configService struct {
	sync.RWMutex
	configFilename string
	config         *models.AppConfig
}

// NewConfigService creates a new configuration service instance with the given default file name
func NewConfigService(configFilename string) ConfigService {
	return &configService{
		configFilename: configFilename,
	}
}

// NewStaticConfigService creates a configuration service serving the given configuration without a backing file
func NewStaticConfigService(conf models.AppConfig) ConfigService {
	return &configService{config: &conf}
}

// RegistrationPolicy returns how registrations for full events are handled
func (s *configService) RegistrationPolicy(ctx context.Context) models.RegistrationPolicy {
	return s.GetConfig(ctx).Registration
}

// SetRegistrationPolicy changes the registration policy and persists the configuration
func (s *configService) SetRegistrationPolicy(ctx context.Context, policy models.RegistrationPolicy) error {
	conf := s.GetConfig(ctx)
	conf.Registration = policy
	s.Lock()
	s.config = &conf
	s.Unlock()
	ctxhelper.Logger(ctx).WithField("allowWaitlist", policy.AllowWaitlist).Info("Registration policy changed")
	if s.configFilename == "" {
		return nil
	}
	if err := s.Write(ctx); err != nil {
		return MakeErrorWithData(http.StatusInternalServerError, ErrCodeUnknown, "Failed to save the configuration", err)
	}
	return nil
}

// Load loads the application config from its default file location
func (s *configService) Load(ctx context.Context) error {
	return s.LoadFromFile(ctx, s.configFilename)
}

// LoadFromFile loads the configuration from the given JSON file. A missing file leaves the defaults in place.
// Values set in the environment take precedence over both
func (s *configService) LoadFromFile(ctx context.Context, filename string) error {
	logger := ctxhelper.Logger(ctx)
	conf, err := models.GetDefaultConfig()
	if err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to create default config")
	}
	f, err := os.Open(filename)
	switch {
	case os.IsNotExist(err):
		logger.WithField(log.FldFile, filename).Warn("Configuration file does not exist. Using defaults")
	case err != nil:
		return errors.Wrap(err, "LoadFromFile: cannot load configuration file")
	default:
		logger.WithField(log.FldFile, filename).Info("Loading configuration file")
		defer f.Close()
		if err = json.NewDecoder(f).Decode(conf); err != nil {
			return errors.Wrap(err, "LoadFromFile: Failed to decode configuration file")
		}
	}
	if err = env.Parse(conf); err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to read configuration from the environment")
	}
	s.Lock()
	s.config = conf
	s.Unlock()
	return nil
}

// Write writes the current application configuration to the default file name
func (s *configService) Write(ctx context.Context) error {
	return s.WriteToFile(ctx, s.configFilename)
}

// WriteToFile writes the current application configuration to a JSON file
func (s *configService) WriteToFile(ctx context.Context, filename string) error {
	logger := ctxhelper.Logger(ctx)
	logger.WithField(log.FldFile, filename).Info("Writing configuration file")
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "WriteToFile: Cannot open configuration file '%s' to write to", filename)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	conf := s.GetConfig(ctx)
	if err := enc.Encode(&conf); err != nil {
		return errors.Wrap(err, "WriteToFile: Failed to serialize configuration data")
	}
	return nil
}

// GetConfig retuns the current application configuration
func (s *configService) GetConfig(ctx context.Context) models.AppConfig {
	s.RLock()
	defer s.RUnlock()
	var ret models.AppConfig
	if s.config != nil {
		ret = *s.config
	} else if tmp, err := models.GetDefaultConfig(); err == nil {
		ret = *tmp
	}
	return ret
}
