// Package service implements the application services: the token registry
// operations and the dispatch coordinator.
package service

import (
	"context"

	"github.com/turtacn/pushgate/internal/domain/models"
	"github.com/turtacn/pushgate/internal/domain/repository"
	domainsvc "github.com/turtacn/pushgate/internal/domain/service"
	"github.com/turtacn/pushgate/pkg/constants"
	"github.com/turtacn/pushgate/pkg/errors"
	"github.com/turtacn/pushgate/pkg/logger"
)

var _ domainsvc.TokenRegistry = (*RegistryService)(nil)

// RegistryService implements the Allow/Deny recipient registry on top of a
// namespaced key/value backend.
//
// Multi-step operations (Register, MoveToDeny, MoveToAllow) are sequences of
// independent backend calls. Concurrent callers can interleave between the
// steps; a failure between the copy and the delete of a move leaves the
// record present in both lists and nothing repairs it. Wrap the service in
// NewLockedRegistry when callers need those sequences serialized.
type RegistryService struct {
	store   repository.KVBackend
	logger  logger.Logger
	metrics domainsvc.Metrics
}

// NewRegistryService creates a RegistryService.
func NewRegistryService(store repository.KVBackend, log logger.Logger, metrics domainsvc.Metrics) *RegistryService {
	if metrics == nil {
		metrics = domainsvc.NewNoopMetrics()
	}
	return &RegistryService{
		store:   store,
		logger:  log.WithComponent("token_registry"),
		metrics: metrics,
	}
}

// Get returns the token stored for key.
func (s *RegistryService) Get(ctx context.Context, list models.ListKind, env models.Environment, key string) (string, error) {
	if err := validateList(list); err != nil {
		return "", err
	}
	if err := validateKey(key); err != nil {
		return "", err
	}
	tok, err := s.store.Get(ctx, models.Namespace(list, env), key)
	s.record("get", err)
	return tok, err
}

// Set upserts key → token.
func (s *RegistryService) Set(ctx context.Context, list models.ListKind, env models.Environment, key, token string) error {
	if err := validateList(list); err != nil {
		return err
	}
	if err := validateEntry(key, token); err != nil {
		return err
	}
	err := s.store.Put(ctx, models.Namespace(list, env), key, token)
	s.record("set", err)
	return err
}

// Delete removes key from one environment of list.
func (s *RegistryService) Delete(ctx context.Context, list models.ListKind, env models.Environment, key string) error {
	if err := validateList(list); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	err := s.store.Delete(ctx, models.Namespace(list, env), key)
	s.record("delete", err)
	return err
}

// DeleteByKey removes key from list in every environment. It succeeds when
// at least one environment held the key.
func (s *RegistryService) DeleteByKey(ctx context.Context, list models.ListKind, key string) error {
	if err := validateList(list); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	deleted := 0
	for _, env := range models.Environments {
		err := s.store.Delete(ctx, models.Namespace(list, env), key)
		switch {
		case err == nil:
			deleted++
		case errors.Is(err, errors.ErrRegistryNotFound):
		default:
			s.record("delete_by_key", err)
			return err
		}
	}

	if deleted == 0 {
		err := errors.ErrRegistryNotFound.WithMetadata("key", key)
		s.record("delete_by_key", err)
		return err
	}
	s.record("delete_by_key", nil)
	return nil
}

// Enumerate lists list for env, or for every environment when env is nil.
// At most MaxEnumerateEntries records are returned per call; Truncated
// reports that more existed.
func (s *RegistryService) Enumerate(ctx context.Context, list models.ListKind, env *models.Environment) (*models.EnumerateResult, error) {
	if err := validateList(list); err != nil {
		return nil, err
	}

	envs := models.Environments
	if env != nil {
		envs = []models.Environment{*env}
	}

	result := &models.EnumerateResult{Records: []models.TokenRecord{}}
	for _, e := range envs {
		remaining := constants.MaxEnumerateEntries - len(result.Records)
		if remaining == 0 {
			more, err := s.nonEmpty(ctx, list, e)
			if err != nil {
				s.record("enumerate", err)
				return nil, err
			}
			result.Truncated = result.Truncated || more
			continue
		}

		truncated, err := s.store.Scan(ctx, models.Namespace(list, e), remaining, func(key, value string) bool {
			result.Records = append(result.Records, models.TokenRecord{Key: key, Token: value, Environment: e})
			return true
		})
		if err != nil {
			s.record("enumerate", err)
			return nil, err
		}
		result.Truncated = result.Truncated || truncated
	}

	if result.Truncated {
		s.logger.Warn(ctx, "enumeration truncated",
			logger.String("list", string(list)),
			logger.Int("limit", constants.MaxEnumerateEntries))
	}
	s.record("enumerate", nil)
	return result, nil
}

func (s *RegistryService) nonEmpty(ctx context.Context, list models.ListKind, env models.Environment) (bool, error) {
	found := false
	_, err := s.store.Scan(ctx, models.Namespace(list, env), 1, func(string, string) bool {
		found = true
		return false
	})
	return found, err
}

// Register adds key → token to the Allow list of env unless the key is on
// the Deny list of env or the identical token is already registered. The
// deny check and the write are separate backend calls.
func (s *RegistryService) Register(ctx context.Context, env models.Environment, key, token string) (models.RegisterResult, error) {
	if err := validateEntry(key, token); err != nil {
		return models.RegisterResult{}, err
	}

	_, err := s.store.Get(ctx, models.Namespace(models.ListDeny, env), key)
	switch {
	case err == nil:
		s.logger.Info(ctx, "registration ignored, identity blocked",
			logger.String("key", key), logger.String("environment", env.String()))
		s.metrics.RecordRegistryOp("register", string(constants.RegisterReasonBlocked))
		return models.RegisterResult{Status: constants.RegisterStatusIgnored, Reason: constants.RegisterReasonBlocked}, nil
	case !errors.Is(err, errors.ErrRegistryNotFound):
		s.record("register", err)
		return models.RegisterResult{}, err
	}

	allowNS := models.Namespace(models.ListAllow, env)
	existing, err := s.store.Get(ctx, allowNS, key)
	switch {
	case err == nil && existing == token:
		s.metrics.RecordRegistryOp("register", string(constants.RegisterReasonNoChange))
		return models.RegisterResult{Status: constants.RegisterStatusIgnored, Reason: constants.RegisterReasonNoChange}, nil
	case err != nil && !errors.Is(err, errors.ErrRegistryNotFound):
		s.record("register", err)
		return models.RegisterResult{}, err
	}

	if err := s.store.Put(ctx, allowNS, key, token); err != nil {
		s.record("register", err)
		return models.RegisterResult{}, err
	}

	s.logger.Info(ctx, "token registered",
		logger.String("key", key), logger.String("environment", env.String()))
	s.record("register", nil)
	return models.RegisterResult{Status: constants.RegisterStatusOK}, nil
}

// MoveToDeny moves key from Allow to Deny in every environment where it is
// on the Allow list.
func (s *RegistryService) MoveToDeny(ctx context.Context, key string) error {
	return s.move(ctx, "move_to_deny", models.ListAllow, key)
}

// MoveToAllow moves key from Deny to Allow in every environment where it is
// on the Deny list.
func (s *RegistryService) MoveToAllow(ctx context.Context, key string) error {
	return s.move(ctx, "move_to_allow", models.ListDeny, key)
}

func (s *RegistryService) move(ctx context.Context, op string, from models.ListKind, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	to := from.Other()

	moved := 0
	for _, env := range models.Environments {
		src := models.Namespace(from, env)
		tok, err := s.store.Get(ctx, src, key)
		if errors.Is(err, errors.ErrRegistryNotFound) {
			continue
		}
		if err != nil {
			s.record(op, err)
			return err
		}

		if err := s.store.Put(ctx, models.Namespace(to, env), key, tok); err != nil {
			s.record(op, err)
			return err
		}
		if err := s.store.Delete(ctx, src, key); err != nil {
			s.logger.Error(ctx, "move left entry in both lists", err,
				logger.String("key", key),
				logger.String("environment", env.String()),
				logger.String("from", string(from)))
			s.record(op, err)
			return err
		}
		moved++
	}

	if moved == 0 {
		err := errors.ErrRegistryNotFound.WithMetadata("key", key)
		s.record(op, err)
		return err
	}

	s.logger.Info(ctx, "identity moved",
		logger.String("key", key), logger.String("to", string(to)), logger.Int("environments", moved))
	s.record(op, nil)
	return nil
}

// SetDeny writes key → token directly to the Deny list of env, or of both
// environments when env is nil.
func (s *RegistryService) SetDeny(ctx context.Context, env *models.Environment, key, token string) error {
	if err := validateEntry(key, token); err != nil {
		return err
	}

	envs := models.Environments
	if env != nil {
		envs = []models.Environment{*env}
	}
	for _, e := range envs {
		if err := s.store.Put(ctx, models.Namespace(models.ListDeny, e), key, token); err != nil {
			s.record("set_deny", err)
			return err
		}
	}
	s.record("set_deny", nil)
	return nil
}

func (s *RegistryService) record(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrRegistryNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	s.metrics.RecordRegistryOp(op, result)
}

func validateList(list models.ListKind) error {
	if !list.Valid() {
		return errors.ErrInvalidArgument.WithMessage("unknown list").WithMetadata("list", string(list))
	}
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return errors.ErrInvalidArgument.WithMessage("identity key is required")
	}
	if len(key) > constants.MaxIdentityKeyLen {
		return errors.ErrInvalidArgument.WithMessage("identity key too long").WithMetadata("max", constants.MaxIdentityKeyLen)
	}
	return nil
}

func validateEntry(key, token string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if token == "" {
		return errors.ErrInvalidArgument.WithMessage("token is required")
	}
	if len(token) > constants.MaxTokenLen {
		return errors.ErrInvalidArgument.WithMessage("token too long").WithMetadata("max", constants.MaxTokenLen)
	}
	return nil
}
