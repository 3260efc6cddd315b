package app

import (
	"fmt"

	consentHTTP "github.com/allisson/consentbroker/internal/consent/http"
	consentRepository "github.com/allisson/consentbroker/internal/consent/repository"
	consentUseCase "github.com/allisson/consentbroker/internal/consent/usecase"
	"github.com/allisson/consentbroker/internal/database"
)

// ApplicationRepository returns the application repository based on database driver.
func (c *Container) ApplicationRepository() (consentUseCase.ApplicationRepository, error) {
	var err error
	c.applicationRepositoryInit.Do(func() {
		c.applicationRepository, err = c.initApplicationRepository()
		if err != nil {
			c.initErrors["applicationRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["applicationRepository"]; exists {
		return nil, storedErr
	}
	return c.applicationRepository, nil
}

// CapabilityRepository returns the capability repository based on database driver.
func (c *Container) CapabilityRepository() (consentUseCase.CapabilityRepository, error) {
	var err error
	c.capabilityRepositoryInit.Do(func() {
		c.capabilityRepository, err = c.initCapabilityRepository()
		if err != nil {
			c.initErrors["capabilityRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["capabilityRepository"]; exists {
		return nil, storedErr
	}
	return c.capabilityRepository, nil
}

// ConsentRepository returns the consent repository based on database driver.
func (c *Container) ConsentRepository() (consentUseCase.ConsentRepository, error) {
	var err error
	c.consentRepositoryInit.Do(func() {
		c.consentRepository, err = c.initConsentRepository()
		if err != nil {
			c.initErrors["consentRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["consentRepository"]; exists {
		return nil, storedErr
	}
	return c.consentRepository, nil
}

// ApplicationUseCase returns the application registry use case.
func (c *Container) ApplicationUseCase() (consentUseCase.ApplicationUseCase, error) {
	var err error
	c.applicationUseCaseInit.Do(func() {
		c.applicationUseCase, err = c.initApplicationUseCase()
		if err != nil {
			c.initErrors["applicationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["applicationUseCase"]; exists {
		return nil, storedErr
	}
	return c.applicationUseCase, nil
}

// ConsentUseCase returns the consent use case.
func (c *Container) ConsentUseCase() (consentUseCase.ConsentUseCase, error) {
	var err error
	c.consentUseCaseInit.Do(func() {
		c.consentUseCase, err = c.initConsentUseCase()
		if err != nil {
			c.initErrors["consentUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["consentUseCase"]; exists {
		return nil, storedErr
	}
	return c.consentUseCase, nil
}

// ApplicationHandler returns the HTTP handler for the application registry.
func (c *Container) ApplicationHandler() (*consentHTTP.ApplicationHandler, error) {
	var err error
	c.applicationHandlerInit.Do(func() {
		c.applicationHandler, err = c.initApplicationHandler()
		if err != nil {
			c.initErrors["applicationHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["applicationHandler"]; exists {
		return nil, storedErr
	}
	return c.applicationHandler, nil
}

// ConsentHandler returns the HTTP handler for consent grants.
func (c *Container) ConsentHandler() (*consentHTTP.ConsentHandler, error) {
	var err error
	c.consentHandlerInit.Do(func() {
		c.consentHandler, err = c.initConsentHandler()
		if err != nil {
			c.initErrors["consentHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["consentHandler"]; exists {
		return nil, storedErr
	}
	return c.consentHandler, nil
}

// initApplicationRepository creates the application repository based on the database driver.
func (c *Container) initApplicationRepository() (consentUseCase.ApplicationRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for application repository: %w", err)
	}

	switch {
	case database.IsPostgres(c.config.DBDriver):
		return consentRepository.NewPostgreSQLApplicationRepository(db), nil
	case c.config.DBDriver == "mysql":
		return consentRepository.NewMySQLApplicationRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initCapabilityRepository creates the capability repository based on the database driver.
func (c *Container) initCapabilityRepository() (consentUseCase.CapabilityRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for capability repository: %w", err)
	}

	switch {
	case database.IsPostgres(c.config.DBDriver):
		return consentRepository.NewPostgreSQLCapabilityRepository(db), nil
	case c.config.DBDriver == "mysql":
		return consentRepository.NewMySQLCapabilityRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initConsentRepository creates the consent repository based on the database driver.
func (c *Container) initConsentRepository() (consentUseCase.ConsentRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for consent repository: %w", err)
	}

	switch {
	case database.IsPostgres(c.config.DBDriver):
		return consentRepository.NewPostgreSQLConsentRepository(db), nil
	case c.config.DBDriver == "mysql":
		return consentRepository.NewMySQLConsentRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initApplicationUseCase creates the application use case with all its dependencies.
func (c *Container) initApplicationUseCase() (consentUseCase.ApplicationUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for application use case: %w", err)
	}

	applicationRepository, err := c.ApplicationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get application repository for application use case: %w", err)
	}

	capabilityRepository, err := c.CapabilityRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get capability repository for application use case: %w", err)
	}

	baseUseCase := consentUseCase.NewApplicationUseCase(txManager, applicationRepository, capabilityRepository)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for application use case: %w", err)
		}
		return consentUseCase.NewApplicationUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initConsentUseCase creates the consent use case with all its dependencies.
func (c *Container) initConsentUseCase() (consentUseCase.ConsentUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for consent use case: %w", err)
	}

	applicationRepository, err := c.ApplicationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get application repository for consent use case: %w", err)
	}

	capabilityRepository, err := c.CapabilityRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get capability repository for consent use case: %w", err)
	}

	consentRepo, err := c.ConsentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get consent repository for consent use case: %w", err)
	}

	baseUseCase := consentUseCase.NewConsentUseCase(
		txManager,
		applicationRepository,
		capabilityRepository,
		consentRepo,
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for consent use case: %w", err)
		}
		return consentUseCase.NewConsentUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initApplicationHandler creates the application HTTP handler.
func (c *Container) initApplicationHandler() (*consentHTTP.ApplicationHandler, error) {
	applicationUseCase, err := c.ApplicationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get application use case for application handler: %w", err)
	}
	return consentHTTP.NewApplicationHandler(applicationUseCase, c.Logger()), nil
}

// initConsentHandler creates the consent HTTP handler.
func (c *Container) initConsentHandler() (*consentHTTP.ConsentHandler, error) {
	useCase, err := c.ConsentUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get consent use case for consent handler: %w", err)
	}
	return consentHTTP.NewConsentHandler(useCase, c.Logger()), nil
}
