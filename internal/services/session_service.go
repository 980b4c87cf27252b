package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/storefront/customizer/internal/catalog"
	"github.com/storefront/customizer/internal/preview"
	"github.com/storefront/customizer/internal/productstate"
)

var (
	errSessionCatalogRequired       = errors.New("session service: catalog is required")
	errSessionCustomizationRequired = errors.New("session service: customization service is required")
)

// ErrSessionInvalidInput indicates the caller supplied an unusable update.
var ErrSessionInvalidInput = errors.New("session service: invalid input")

// ErrSessionNotFound indicates the session does not exist or has expired.
var ErrSessionNotFound = errors.New("session service: not found")

// ErrProductNotFound indicates no catalog product carries the requested handle.
var ErrProductNotFound = errors.New("product not found")

// ProductSessionServiceDeps wires the product session service.
type ProductSessionServiceDeps struct {
	Catalog       ProductCatalog
	Customization CustomizationService
	Clock         func() time.Time
	IDGenerator   func() string
	// IdleTTL expires sessions that have not been touched for the duration. Zero disables expiry.
	IdleTTL time.Duration
	Logger  func(context.Context, string, map[string]any)
}

type productSession struct {
	id        string
	product   Product
	holder    *productstate.Holder
	createdAt time.Time
	updatedAt time.Time
}

type productSessionService struct {
	catalog       ProductCatalog
	customization CustomizationService
	now           func() time.Time
	newID         func() string
	idleTTL       time.Duration
	logger        func(context.Context, string, map[string]any)

	mu       sync.Mutex
	sessions map[string]*productSession
}

// NewProductSessionService constructs an in-memory ProductSessionService.
func NewProductSessionService(deps ProductSessionServiceDeps) (ProductSessionService, error) {
	if deps.Catalog == nil {
		return nil, errSessionCatalogRequired
	}
	if deps.Customization == nil {
		return nil, errSessionCustomizationRequired
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &productSessionService{
		catalog:       deps.Catalog,
		customization: deps.Customization,
		now:           func() time.Time { return clock().UTC() },
		newID:         idGen,
		idleTTL:       deps.IdleTTL,
		logger:        logger,
		sessions:      make(map[string]*productSession),
	}, nil
}

func (s *productSessionService) Open(ctx context.Context, cmd OpenSessionCommand) (ProductSession, error) {
	handle := strings.TrimSpace(cmd.ProductHandle)
	if handle == "" {
		return ProductSession{}, fmt.Errorf("%w: product handle is required", ErrSessionInvalidInput)
	}

	product, err := s.catalog.ProductByHandle(ctx, handle)
	if err != nil {
		return ProductSession{}, translateCatalogError(err)
	}

	fromQuery := productstate.FromQuery(cmd.Query)
	seed := productstate.Update{Values: querySelections(product, fromQuery)}
	if c, ok := fromQuery.Customization(); ok {
		seed.Customization = &c
	}
	initial := productstate.Merge(catalog.DefaultState(product), seed)

	if !cmd.Seed.IsEmpty() {
		base, _ := initial.Customization()
		explicit, err := normaliseUpdate(product, cmd.Seed.FoldLines(&base))
		if err != nil {
			return ProductSession{}, err
		}
		initial = productstate.Merge(initial, explicit)
	}
	if c, ok := initial.Customization(); ok {
		if err := s.customization.Validate(ctx, c).Err(); err != nil {
			return ProductSession{}, err
		}
	}

	now := s.now()
	id := strings.TrimSpace(s.newID())
	if id == "" {
		id = fmt.Sprintf("session-%d", now.UnixNano())
	}
	sess := &productSession{
		id:        id,
		product:   product,
		holder:    productstate.NewHolder(initial),
		createdAt: now,
		updatedAt: now,
	}

	s.mu.Lock()
	s.evictExpiredLocked(now)
	s.sessions[id] = sess
	view := s.viewLocked(sess)
	s.mu.Unlock()

	s.logger(ctx, "session.opened", map[string]any{
		"sessionID":     id,
		"productHandle": product.Handle,
	})
	return view, nil
}

func (s *productSessionService) Get(_ context.Context, sessionID string) (ProductSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(sessionID)
	if err != nil {
		return ProductSession{}, err
	}
	return s.viewLocked(sess), nil
}

func (s *productSessionService) Update(ctx context.Context, sessionID string, update productstate.Update) (ProductSession, error) {
	ctx, span := tracer.Start(ctx, "session.Update")
	defer span.End()
	span.SetAttributes(
		attribute.Int("session.update.keys", len(update.Values)),
		attribute.Bool("session.update.customization", update.Customization != nil),
	)

	if update.IsEmpty() {
		return ProductSession{}, fmt.Errorf("%w: update carries no keys", ErrSessionInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(sessionID)
	if err != nil {
		return ProductSession{}, err
	}

	var base *TextCustomization
	if c, ok := sess.holder.Speculative().Customization(); ok {
		base = &c
	}
	update, err = normaliseUpdate(sess.product, update.FoldLines(base))
	if err != nil {
		return ProductSession{}, err
	}
	if update.Customization != nil {
		if err := s.customization.Validate(ctx, *update.Customization).Err(); err != nil {
			return ProductSession{}, err
		}
	}

	sess.holder.Apply(update)
	sess.updatedAt = s.now()
	return s.viewLocked(sess), nil
}

func (s *productSessionService) SelectOption(ctx context.Context, sessionID, name, value string) (ProductSession, error) {
	return s.Update(ctx, sessionID, productstate.OptionUpdate(strings.TrimSpace(name), value))
}

func (s *productSessionService) SelectImage(ctx context.Context, sessionID, index string) (ProductSession, error) {
	return s.Update(ctx, sessionID, productstate.ImageUpdate(strings.TrimSpace(index)))
}

func (s *productSessionService) UpdateCustomization(ctx context.Context, sessionID string, c TextCustomization) (ProductSession, error) {
	return s.Update(ctx, sessionID, productstate.CustomizationUpdate(c))
}

func (s *productSessionService) Confirm(ctx context.Context, sessionID string) (ProductSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(sessionID)
	if err != nil {
		return ProductSession{}, err
	}
	pending := sess.holder.Pending()
	sess.holder.Commit()
	sess.updatedAt = s.now()

	s.logger(ctx, "session.confirmed", map[string]any{
		"sessionID": sess.id,
		"updates":   pending,
	})
	return s.viewLocked(sess), nil
}

func (s *productSessionService) lookupLocked(sessionID string) (*productSession, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, ErrSessionInvalidInput
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.expired(sess, s.now()) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *productSessionService) evictExpiredLocked(now time.Time) {
	if s.idleTTL <= 0 {
		return
	}
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
		}
	}
}

func (s *productSessionService) expired(sess *productSession, now time.Time) bool {
	return s.idleTTL > 0 && now.Sub(sess.updatedAt) > s.idleTTL
}

func (s *productSessionService) viewLocked(sess *productSession) ProductSession {
	state := sess.holder.Speculative()
	view := ProductSession{
		ID:            sess.id,
		ProductHandle: sess.product.Handle,
		State:         state,
		Confirmed:     sess.holder.Confirmed(),
		Pending:       sess.holder.Pending(),
		Query:         productstate.ToQuery(nil, state).Encode(),
		Customizable:  sess.product.Customizable,
		Preview:       preview.FromState(state),
		CreatedAt:     sess.createdAt,
		UpdatedAt:     sess.updatedAt,
	}
	if variant, ok := catalog.ResolveVariant(sess.product, state); ok {
		view.Variant = &variant
	}
	return view
}

// normaliseUpdate checks every free-form key of u against the product: image
// must be a non-negative integer and every other key must name an option with
// a listed value. Option keys are rewritten to their state key.
func normaliseUpdate(product Product, u productstate.Update) (productstate.Update, error) {
	out := productstate.Update{Customization: u.Customization}
	for key, value := range u.Values {
		stateKey, err := checkSelection(product, key, value)
		if err != nil {
			return productstate.Update{}, err
		}
		if out.Values == nil {
			out.Values = make(map[string]string, len(u.Values))
		}
		out.Values[stateKey] = value
	}
	return out, nil
}

// querySelections keeps the query values that name a valid image or option
// selection and drops the rest.
func querySelections(product Product, state productstate.State) map[string]string {
	out := make(map[string]string)
	for _, key := range state.Keys() {
		value, _ := state.Value(key)
		if stateKey, err := checkSelection(product, key, value); err == nil {
			out[stateKey] = value
		}
	}
	return out
}

func checkSelection(product Product, key, value string) (string, error) {
	if key == productstate.KeyImage {
		if n, err := strconv.Atoi(value); err != nil || n < 0 {
			return "", fmt.Errorf("%w: image index must be a non-negative integer", ErrSessionInvalidInput)
		}
		return key, nil
	}
	option, ok := findOption(product, key)
	if !ok {
		return "", fmt.Errorf("%w: unknown option %q", ErrSessionInvalidInput, key)
	}
	if !containsString(option.Values, value) {
		return "", fmt.Errorf("%w: option %s has no value %q", ErrSessionInvalidInput, option.Name, value)
	}
	return catalog.StateKey(option.Name), nil
}

func findOption(product Product, name string) (ProductOption, bool) {
	key := catalog.StateKey(strings.TrimSpace(name))
	for _, opt := range product.Options {
		if catalog.StateKey(opt.Name) == key {
			return opt, true
		}
	}
	return ProductOption{}, false
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func translateCatalogError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, catalog.ErrProductNotFound) {
		return ErrProductNotFound
	}
	return err
}
