package app

import (
	"fmt"
	"log/slog"

	delegationHTTP "github.com/allisson/consentbroker/internal/delegation/http"
	delegationService "github.com/allisson/consentbroker/internal/delegation/service"
	delegationUseCase "github.com/allisson/consentbroker/internal/delegation/usecase"
	identityService "github.com/allisson/consentbroker/internal/identity/service"
	manifestDomain "github.com/allisson/consentbroker/internal/manifest/domain"
	manifestHTTP "github.com/allisson/consentbroker/internal/manifest/http"
	manifestService "github.com/allisson/consentbroker/internal/manifest/service"
)

// Consent state backends.
const (
	stateBackendMemory = "memory"
	stateBackendRedis  = "redis"
)

// Manifest returns the capability manifest this deployment publishes, or nil when
// MANIFEST_FILE is not set.
func (c *Container) Manifest() (*manifestDomain.Manifest, error) {
	var err error
	c.manifestInit.Do(func() {
		c.manifest, err = c.initManifest()
		if err != nil {
			c.initErrors["manifest"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["manifest"]; exists {
		return nil, storedErr
	}
	return c.manifest, nil
}

// ManifestFetcher returns the cached fetcher for destination manifests.
func (c *Container) ManifestFetcher() *manifestService.Fetcher {
	c.manifestFetcherInit.Do(func() {
		c.manifestFetcher = manifestService.NewFetcher(
			c.config.ManifestCacheTTL,
			c.config.UpstreamTimeout,
			c.config.UpstreamMaxRetries,
			c.Logger(),
		)
	})
	return c.manifestFetcher
}

// ManifestHandler returns the handler publishing this deployment's manifest, or nil
// when there is none.
func (c *Container) ManifestHandler() (*manifestHTTP.ManifestHandler, error) {
	var err error
	c.manifestHandlerInit.Do(func() {
		c.manifestHandler, err = c.initManifestHandler()
		if err != nil {
			c.initErrors["manifestHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["manifestHandler"]; exists {
		return nil, storedErr
	}
	return c.manifestHandler, nil
}

// TokenVerifier returns the verifier for inbound user tokens.
func (c *Container) TokenVerifier() identityService.TokenVerifier {
	c.tokenVerifierInit.Do(func() {
		keys := identityService.NewJWKSKeySet(
			c.config.AuthJWKSURL,
			c.config.AuthJWKSCacheTTL,
			c.config.UpstreamTimeout,
			c.config.UpstreamMaxRetries,
			c.Logger(),
		)
		c.tokenVerifier = identityService.NewJWTVerifier(keys, c.config.AuthIssuer, c.config.AuthAudience)
	})
	return c.tokenVerifier
}

// Destinations returns the catalog of destination services.
func (c *Container) Destinations() (*delegationService.Destinations, error) {
	var err error
	c.destinationsInit.Do(func() {
		c.destinations, err = delegationService.LoadDestinations(c.config.DestinationsFile)
		if err != nil {
			c.initErrors["destinations"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["destinations"]; exists {
		return nil, storedErr
	}
	return c.destinations, nil
}

// StateStore returns the store for pending consent requests.
func (c *Container) StateStore() (delegationUseCase.StateStore, error) {
	var err error
	c.stateStoreInit.Do(func() {
		c.stateStore, err = c.initStateStore()
		if err != nil {
			c.initErrors["stateStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["stateStore"]; exists {
		return nil, storedErr
	}
	return c.stateStore, nil
}

// TokenExchanger returns the audience-scoped token exchanger, or nil when token
// exchange is disabled.
func (c *Container) TokenExchanger() delegationUseCase.TokenExchanger {
	c.tokenExchangerInit.Do(func() {
		if !c.config.TokenExchangeEnabled {
			return
		}
		c.tokenExchanger = delegationService.NewRFC8693Exchanger(delegationService.TokenExchangeConfig{
			TokenURL:     c.config.TokenExchangeURL,
			ClientID:     c.config.TokenExchangeClientID,
			ClientSecret: c.config.TokenExchangeClientSecret,
			Timeout:      c.config.UpstreamTimeout,
			MaxRetries:   c.config.UpstreamMaxRetries,
		}, c.Logger())
	})
	return c.tokenExchanger
}

// Forwarder returns the client calling destination services.
func (c *Container) Forwarder() delegationUseCase.Forwarder {
	c.forwarderInit.Do(func() {
		c.forwarder = delegationService.NewHTTPForwarder(
			c.config.UpstreamTimeout,
			c.config.UpstreamMaxRetries,
			c.Logger(),
		)
	})
	return c.forwarder
}

// ConsentClient returns the remote consent client when CONSENT_SERVICE_URL is set,
// otherwise the in-process consent use case.
func (c *Container) ConsentClient() (delegationUseCase.ConsentClient, error) {
	var err error
	c.consentClientInit.Do(func() {
		c.consentClient, err = c.initConsentClient()
		if err != nil {
			c.initErrors["consentClient"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["consentClient"]; exists {
		return nil, storedErr
	}
	return c.consentClient, nil
}

// DelegationUseCase returns the delegation protocol use case.
func (c *Container) DelegationUseCase() (delegationUseCase.DelegationUseCase, error) {
	var err error
	c.delegationUseCaseInit.Do(func() {
		c.delegationUseCase, err = c.initDelegationUseCase()
		if err != nil {
			c.initErrors["delegationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["delegationUseCase"]; exists {
		return nil, storedErr
	}
	return c.delegationUseCase, nil
}

// DelegationHandler returns the HTTP handler for delegated calls and consent decisions.
func (c *Container) DelegationHandler() (*delegationHTTP.DelegationHandler, error) {
	var err error
	c.delegationHandlerInit.Do(func() {
		c.delegationHandler, err = c.initDelegationHandler()
		if err != nil {
			c.initErrors["delegationHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["delegationHandler"]; exists {
		return nil, storedErr
	}
	return c.delegationHandler, nil
}

// initManifest loads MANIFEST_FILE when configured.
func (c *Container) initManifest() (*manifestDomain.Manifest, error) {
	if c.config.ManifestFile == "" {
		return nil, nil
	}
	manifest, err := manifestService.LoadFile(c.config.ManifestFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load capability manifest: %w", err)
	}
	return manifest, nil
}

// initManifestHandler creates the manifest handler when a manifest is configured.
func (c *Container) initManifestHandler() (*manifestHTTP.ManifestHandler, error) {
	manifest, err := c.Manifest()
	if err != nil {
		return nil, err
	}
	if manifest == nil {
		return nil, nil
	}
	return manifestHTTP.NewManifestHandler(manifest, c.Logger()), nil
}

// initStateStore selects the consent state backend.
func (c *Container) initStateStore() (delegationUseCase.StateStore, error) {
	switch c.config.ConsentStateBackend {
	case stateBackendMemory:
		return delegationService.NewMemoryStateStore(c.config.ConsentStateTTL), nil
	case stateBackendRedis:
		client, err := c.RedisClient()
		if err != nil {
			return nil, fmt.Errorf("failed to get redis client for state store: %w", err)
		}
		return delegationService.NewRedisStateStore(client, "", c.config.ConsentStateTTL), nil
	default:
		return nil, fmt.Errorf("unsupported consent state backend: %s", c.config.ConsentStateBackend)
	}
}

// initConsentClient picks the remote or in-process consent service.
func (c *Container) initConsentClient() (delegationUseCase.ConsentClient, error) {
	if c.config.UsesRemoteConsentService() {
		return delegationService.NewRemoteConsentClient(
			c.config.ConsentServiceURL,
			c.config.UpstreamTimeout,
			c.config.UpstreamMaxRetries,
			c.Logger(),
		), nil
	}

	useCase, err := c.ConsentUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get consent use case for consent client: %w", err)
	}
	return useCase, nil
}

// initDelegationUseCase creates the delegation use case with all its collaborators.
func (c *Container) initDelegationUseCase() (delegationUseCase.DelegationUseCase, error) {
	logger := c.Logger()

	consentClient, err := c.ConsentClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get consent client for delegation use case: %w", err)
	}

	destinations, err := c.Destinations()
	if err != nil {
		return nil, fmt.Errorf("failed to get destinations for delegation use case: %w", err)
	}

	stateStore, err := c.StateStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get state store for delegation use case: %w", err)
	}

	delegationMetrics, err := c.DelegationMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get delegation metrics for delegation use case: %w", err)
	}

	exchanger := c.TokenExchanger()
	if exchanger == nil {
		logger.Warn("token exchange disabled, destinations receive the caller's original token")
	}

	baseUseCase := delegationUseCase.NewDelegationUseCase(
		delegationUseCase.Config{
			AppName:             c.config.AppName,
			DefaultConsentUIURL: c.config.ConsentUIURL,
		},
		consentClient,
		destinations,
		c.ManifestFetcher(),
		exchanger,
		c.Forwarder(),
		stateStore,
		delegationService.GenerateState,
		delegationMetrics,
		logger,
	)

	logger.Info("delegation configured",
		slog.String("app_name", c.config.AppName),
		slog.Int("destinations", len(destinations.List())),
		slog.Bool("remote_consent_service", c.config.UsesRemoteConsentService()),
		slog.String("state_backend", c.config.ConsentStateBackend),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for delegation use case: %w", err)
		}
		return delegationUseCase.NewDelegationUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initDelegationHandler creates the delegation HTTP handler.
func (c *Container) initDelegationHandler() (*delegationHTTP.DelegationHandler, error) {
	useCase, err := c.DelegationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get delegation use case for delegation handler: %w", err)
	}
	return delegationHTTP.NewDelegationHandler(useCase, c.Logger()), nil
}
