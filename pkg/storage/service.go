// Package storage provides the storage service: the single entry point
// through which callers operate on a storage space's resources.
//
// The service owns the calling discipline the repo layer demands: before
// an operation it locks the names of every resource the operation touches
// (through locker.LockAll, so overlapping compound operations stay
// deadlock-free), resolves status tokens under those locks, branches on
// the token variants, and only then invokes the repo operators. Callers
// of the service never handle tokens or locks themselves.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/podstore/podstore/internal/logger"
	"github.com/podstore/podstore/internal/ratelimiter"
	"github.com/podstore/podstore/pkg/locker"
	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/space"
)

// defaultLockTimeout bounds how long an operation waits for its name
// locks.
const defaultLockTimeout = 10 * time.Second

// createAttempts bounds slug-based name probing in CreateIn.
const createAttempts = 3

// Service orchestrates resource operations on one storage space.
//
// All methods are safe for concurrent use.
type Service struct {
	repo        repo.Repo
	locker      locker.NameLocker
	lockTimeout time.Duration
	writeLimit  *ratelimiter.Limiter
	metrics     Metrics
}

// Option customizes a storage service.
type Option func(*Service)

// WithLockTimeout bounds the wait for name locks.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) { s.lockTimeout = d }
}

// WithWriteLimiter throttles mutating operations.
func WithWriteLimiter(l *ratelimiter.Limiter) Option {
	return func(s *Service) { s.writeLimit = l }
}

// WithMetrics enables operation metrics collection. A nil Metrics
// leaves collection disabled.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a storage service over a repo and a name locker.
func NewService(r repo.Repo, l locker.NameLocker, opts ...Option) *Service {
	s := &Service{
		repo:        r,
		locker:      l,
		lockTimeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Space returns the storage space the service operates on.
func (s *Service) Space() *space.StorageSpace {
	return s.repo.Space()
}

// Initialize prepares the underlying repo. Idempotent.
func (s *Service) Initialize(ctx context.Context) error {
	return s.repo.Initialize(ctx)
}

// PutResult reports the outcome of a Put.
type PutResult struct {
	// Created reports whether the resource was created rather than
	// updated.
	Created bool

	// Slot is the resource's slot.
	Slot *space.ResourceSlot

	// Validators are the stored representation's validators.
	Validators repo.RepValidators
}

// ============================================================================
// Read path
// ============================================================================

// Get reads a resource's representation under a shared lock on its name.
func (s *Service) Get(ctx context.Context, uri space.ResourceURI, accept ...string) (out *repo.ReadResult, err error) {
	start := time.Now()
	defer func() { s.observe(opGet, start, err) }()

	guard, err := s.acquire(ctx, []string{string(uri)}, locker.Shared)
	if err != nil {
		return nil, s.mapLockErr(err, uri)
	}
	defer guard.Release()

	tok, err := s.repo.ResolveStatus(ctx, uri)
	if err != nil {
		return nil, err
	}
	switch tok.Variant() {
	case repo.TokenExistingRepresented:
		return s.repo.Read(ctx, repo.ReadRequest{Token: tok, Accept: accept})
	case repo.TokenExistingNonRepresented:
		return nil, repo.NewError(repo.ErrNotFound, "resource has no stored representation", string(uri))
	default:
		return nil, repo.NewError(repo.ErrNotFound, "no such resource", string(uri))
	}
}

// Stat resolves a resource's status under a shared lock. The returned
// token is a point-in-time snapshot for inspection only; it is not valid
// as an operator capability outside the lock scope it was resolved in.
func (s *Service) Stat(ctx context.Context, uri space.ResourceURI) (tok *repo.StatusToken, err error) {
	start := time.Now()
	defer func() { s.observe(opStat, start, err) }()

	guard, err := s.acquire(ctx, []string{string(uri)}, locker.Shared)
	if err != nil {
		return nil, s.mapLockErr(err, uri)
	}
	defer guard.Release()

	return s.repo.ResolveStatus(ctx, uri)
}

// ============================================================================
// Write path
// ============================================================================

// Put stores a full representation at a name, creating the resource when
// it does not exist yet. The name and its derived host are locked
// exclusively for the whole resolve-and-operate span.
func (s *Service) Put(ctx context.Context, uri space.ResourceURI, rep *repo.Representation, pre repo.Preconditions) (out *PutResult, err error) {
	start := time.Now()
	defer func() { s.observe(opPut, start, err) }()
	return s.write(ctx, uri, repo.SetAction(rep), pre)
}

// Patch applies a patch document at a name. Patching a non-existing
// conflict-free name creates the resource from the patch format's empty
// document, provided a patching layer is in the repo stack.
func (s *Service) Patch(ctx context.Context, uri space.ResourceURI, patch *repo.Patch, pre repo.Preconditions) (out *PutResult, err error) {
	start := time.Now()
	defer func() { s.observe(opPatch, start, err) }()
	return s.write(ctx, uri, repo.PatchAction(patch), pre)
}

func (s *Service) write(ctx context.Context, uri space.ResourceURI, action repo.RepUpdateAction, pre repo.Preconditions) (*PutResult, error) {
	if err := s.throttle(ctx); err != nil {
		return nil, err
	}

	names := []string{string(uri)}
	candidate, derr := space.DeriveSlot(s.Space(), uri)
	if derr == nil {
		if hostID, ok := candidate.HostSlotID(); ok {
			names = append(names, string(hostID.URI))
		}
	}

	guard, err := s.acquire(ctx, names, locker.Exclusive)
	if err != nil {
		return nil, s.mapLockErr(err, uri)
	}
	defer guard.Release()

	tok, err := s.repo.ResolveStatus(ctx, uri)
	if err != nil {
		return nil, err
	}

	switch tok.Variant() {
	case repo.TokenExistingRepresented, repo.TokenExistingNonRepresented:
		out, err := s.repo.Update(ctx, repo.UpdateRequest{
			Token:         tok,
			Action:        action,
			Preconditions: pre,
		})
		if err != nil {
			return nil, err
		}
		return &PutResult{Slot: out.Slot, Validators: out.Validators}, nil

	case repo.TokenNonExistingConflict:
		return nil, repo.NewError(repo.ErrConflict, tok.ConflictReason(), string(uri))

	default:
		if !pre.IsZero() && pre.IfMatch != "" {
			// Conditional writes against an absent resource fail before
			// any creation is attempted.
			return nil, repo.NewError(repo.ErrPreconditionFailed,
				"resource does not exist", string(uri))
		}
		out, err := s.createLocked(ctx, tok)
		if err != nil {
			return nil, err
		}
		out2, err := s.finishCreate(ctx, out, action)
		if err != nil {
			return nil, err
		}
		return &PutResult{Created: true, Slot: out2.Slot, Validators: out2.Validators}, nil
	}
}

// createLocked resolves the host token for a conflict-free target and
// assembles the creation token set. The caller holds exclusive locks on
// both names.
func (s *Service) createLocked(ctx context.Context, res *repo.StatusToken) (*repo.CreateTokenSet, error) {
	candidate := res.CandidateSlot()
	hostID, ok := candidate.HostSlotID()
	if !ok {
		return nil, repo.NewError(repo.ErrInvalidArgument, "name has no host", string(res.URI()))
	}

	host, err := s.repo.ResolveStatus(ctx, hostID.URI)
	if err != nil {
		return nil, err
	}
	if !host.IsExisting() {
		return nil, repo.NewError(repo.ErrNotFound,
			"host resource does not exist", string(hostID.URI))
	}
	if host.Variant() != repo.TokenExistingRepresented {
		return nil, repo.NewError(repo.ErrConflict,
			"host resource has no stored representation", string(hostID.URI))
	}

	tokens, err := repo.NewCreateTokenSet(res, host)
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

func (s *Service) finishCreate(ctx context.Context, tokens *repo.CreateTokenSet, action repo.RepUpdateAction) (*repo.CreateResult, error) {
	candidate := tokens.Res().CandidateSlot()
	relType, _ := candidate.RevRelType()

	return s.repo.Create(ctx, repo.CreateRequest{
		Tokens:  *tokens,
		Kind:    candidate.Kind(),
		RelType: relType,
		Action:  action,
	})
}

// Delete removes a resource. The name and its auxiliary names are locked
// exclusively, since the deletion removes the auxiliaries too.
func (s *Service) Delete(ctx context.Context, uri space.ResourceURI) (err error) {
	start := time.Now()
	defer func() { s.observe(opDelete, start, err) }()

	if err := s.throttle(ctx); err != nil {
		return err
	}

	names := []string{string(uri)}
	if s.Space().IsLegalUserResourceURI(uri) {
		for _, policy := range s.Space().AuxPolicies() {
			names = append(names, string(s.Space().AuxURIOf(uri, policy.Kind)))
		}
	}

	guard, err := s.acquire(ctx, names, locker.Exclusive)
	if err != nil {
		return s.mapLockErr(err, uri)
	}
	defer guard.Release()

	tok, err := s.repo.ResolveStatus(ctx, uri)
	if err != nil {
		return err
	}
	if !tok.IsExisting() {
		return repo.NewError(repo.ErrNotFound, "no such resource", string(uri))
	}
	return s.repo.Delete(ctx, repo.DeleteRequest{Token: tok})
}

// CreateIn creates a resource inside a container under a server-chosen
// name, honoring a caller-suggested slug when the derived name is free.
// Conflicted or taken names fall back to fresh random names, bounded by
// createAttempts.
func (s *Service) CreateIn(ctx context.Context, container space.ResourceURI, slug string, kind space.ResourceKind, rep *repo.Representation) (out *repo.CreateResult, err error) {
	start := time.Now()
	defer func() { s.observe(opCreateIn, start, err) }()

	if !container.IsContainerURI() {
		return nil, repo.NewError(repo.ErrInvalidArgument,
			"creation target is not a container", string(container))
	}
	if err := s.throttle(ctx); err != nil {
		return nil, err
	}

	name := sanitizeSlug(slug)
	for attempt := 0; attempt < createAttempts; attempt++ {
		if name == "" {
			name = uuid.NewString()
		}
		uri := container + space.ResourceURI(name)
		if kind == space.KindContainer {
			uri += "/"
		}

		out, err := s.tryCreateIn(ctx, uri, container, rep)
		if err == nil {
			return out, nil
		}
		if !repo.IsCode(err, repo.ErrConflict) {
			return nil, err
		}
		logger.Debug("create in %s: name %q conflicted, retrying", container, name)
		name = ""
	}
	return nil, repo.NewError(repo.ErrConflict,
		fmt.Sprintf("no free name found after %d attempts", createAttempts), string(container))
}

func (s *Service) tryCreateIn(ctx context.Context, uri, container space.ResourceURI, rep *repo.Representation) (*repo.CreateResult, error) {
	guard, err := s.acquire(ctx, []string{string(uri), string(container)}, locker.Exclusive)
	if err != nil {
		return nil, s.mapLockErr(err, uri)
	}
	defer guard.Release()

	res, err := s.repo.ResolveStatus(ctx, uri)
	if err != nil {
		return nil, err
	}
	if res.Variant() != repo.TokenNonExistingConflictFree {
		return nil, repo.NewError(repo.ErrConflict, "name is taken", string(uri))
	}

	tokens, err := s.createLocked(ctx, res)
	if err != nil {
		return nil, err
	}
	return s.finishCreate(ctx, tokens, repo.SetAction(rep))
}

// ============================================================================
// Internals
// ============================================================================

func (s *Service) lockContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.lockTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.lockTimeout)
}

// acquire locks the given names within the service's lock timeout. The
// bound context only covers the wait; held locks outlive it.
func (s *Service) acquire(ctx context.Context, names []string, kind locker.LockKind) (locker.Guard, error) {
	lctx, cancel := s.lockContext(ctx)
	defer cancel()

	start := time.Now()
	var guard locker.Guard
	var err error
	if len(names) == 1 {
		guard, err = s.locker.Lock(lctx, names[0], kind)
	} else {
		guard, err = locker.LockAll(lctx, s.locker, names, kind)
	}
	s.observeLockWait(start)
	return guard, err
}

func (s *Service) mapLockErr(err error, uri space.ResourceURI) error {
	if errors.Is(err, locker.ErrLockTimeout) {
		return repo.WrapError(repo.ErrLockTimeout, "could not lock resource name in time", string(uri), err)
	}
	return err
}

func (s *Service) throttle(ctx context.Context) error {
	if s.writeLimit == nil {
		return nil
	}
	if err := s.writeLimit.Wait(ctx); err != nil {
		return repo.WrapError(repo.ErrBackendTimeout, "write throttled past deadline", "", err)
	}
	return nil
}

// sanitizeSlug reduces a caller-suggested slug to a safe path segment.
func sanitizeSlug(slug string) string {
	var b strings.Builder
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
