// Package memstore provides in-memory repositories for tests. Foreign keys
// cascade the way the SQL schema does.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/repository"
)

// Store holds every table behind one lock.
type Store struct {
	mu         sync.RWMutex
	last       time.Time
	identities map[string]domain.Identity
	users      map[string]domain.User
	decisions  map[string]domain.Decision
	options    map[string]domain.Option
	refresh    map[int64]domain.RefreshToken
	revoked    map[string]time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		identities: make(map[string]domain.Identity),
		users:      make(map[string]domain.User),
		decisions:  make(map[string]domain.Decision),
		options:    make(map[string]domain.Option),
		refresh:    make(map[int64]domain.RefreshToken),
		revoked:    make(map[string]time.Time),
	}
}

// tick returns a strictly increasing timestamp. Caller holds mu.
func (s *Store) tick() time.Time {
	now := time.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

func (s *Store) deleteDecisionLocked(id string) {
	delete(s.decisions, id)
	for optID, opt := range s.options {
		if opt.DecisionID == id {
			delete(s.options, optID)
		}
	}
}

func (s *Store) deleteUserLocked(id string) {
	delete(s.users, id)
	for decID, dec := range s.decisions {
		if dec.OwnerID == id {
			s.deleteDecisionLocked(decID)
		}
	}
	for tokID, tok := range s.refresh {
		if tok.UserID == id {
			delete(s.refresh, tokID)
		}
	}
}

func (s *Store) Users() *Users { return &Users{s} }
func (s *Store) Decisions() *Decisions { return &Decisions{s} }
func (s *Store) Options() *Options { return &Options{s} }
func (s *Store) Identities() *Identities { return &Identities{s} }
func (s *Store) RefreshTokens() *RefreshTokens { return &RefreshTokens{s} }
func (s *Store) Revocations() *Revocations { return &Revocations{s} }

var (
	_ repository.UserRepository         = (*Users)(nil)
	_ repository.DecisionRepository     = (*Decisions)(nil)
	_ repository.OptionRepository       = (*Options)(nil)
	_ repository.IdentityRepository     = (*Identities)(nil)
	_ repository.RefreshTokenRepository = (*RefreshTokens)(nil)
	_ repository.RevocationStore        = (*Revocations)(nil)
)

// Users is the users table.
type Users struct{ s *Store }

func (r *Users) GetByID(ctx context.Context, id string) (domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (r *Users) Create(ctx context.Context, user domain.User) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; ok {
		return domain.User{}, fmt.Errorf("duplicate key users.id %q", user.ID)
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	user.CreatedAt = r.s.tick()
	r.s.users[user.ID] = user
	return user, nil
}

func (r *Users) List(ctx context.Context) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Users) UpdateRole(ctx context.Context, id, role string) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	u.Role = role
	r.s.users[id] = u
	return u, nil
}

func (r *Users) Count(ctx context.Context, role string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, u := range r.s.users {
		if role == "" || u.Role == role {
			n++
		}
	}
	return n, nil
}

// Decisions is the decisions table.
type Decisions struct{ s *Store }

func (r *Decisions) Create(ctx context.Context, d domain.Decision) (domain.Decision, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.decisions[d.ID]; ok {
		return domain.Decision{}, fmt.Errorf("duplicate key decisions.id %q", d.ID)
	}
	d.CreatedAt = r.s.tick()
	d.UpdatedAt = d.CreatedAt
	r.s.decisions[d.ID] = d
	return d, nil
}

func (r *Decisions) GetByID(ctx context.Context, id string) (domain.Decision, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.decisions[id]
	if !ok {
		return domain.Decision{}, repository.ErrNotFound
	}
	return d, nil
}

func (r *Decisions) ListByOwner(ctx context.Context, ownerID string) ([]domain.Decision, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Decision, 0)
	for _, d := range r.s.decisions {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Decisions) Update(ctx context.Context, id, ownerID string, patch domain.DecisionPatch) (domain.Decision, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.decisions[id]
	if !ok || d.OwnerID != ownerID {
		return domain.Decision{}, repository.ErrNotFound
	}
	if patch.Title != nil {
		d.Title = *patch.Title
	}
	if patch.Description.Set {
		d.Description = nil
		if patch.Description.Value != nil {
			desc := *patch.Description.Value
			d.Description = &desc
		}
	}
	if patch.IsActive != nil {
		d.IsActive = *patch.IsActive
	}
	d.UpdatedAt = r.s.tick()
	r.s.decisions[id] = d
	return d, nil
}

func (r *Decisions) Delete(ctx context.Context, id, ownerID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.decisions[id]
	if !ok || d.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	r.s.deleteDecisionLocked(id)
	return nil
}

func (r *Decisions) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.decisions)), nil
}

// Options is the decision_options table.
type Options struct{ s *Store }

func (r *Options) Create(ctx context.Context, o domain.Option) (domain.Option, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.decisions[o.DecisionID]; !ok {
		return domain.Option{}, fmt.Errorf("foreign key decision_options.decision_id %q", o.DecisionID)
	}
	o.CreatedAt = r.s.tick()
	o.UpdatedAt = o.CreatedAt
	r.s.options[o.ID] = o
	return o, nil
}

func (r *Options) GetByID(ctx context.Context, id string) (domain.Option, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.options[id]
	if !ok {
		return domain.Option{}, repository.ErrNotFound
	}
	return o, nil
}

func (r *Options) ListByDecision(ctx context.Context, decisionID string) ([]domain.Option, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Option, 0)
	for _, o := range r.s.options {
		if o.DecisionID == decisionID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Options) Update(ctx context.Context, id string, patch domain.OptionPatch) (domain.Option, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.options[id]
	if !ok {
		return domain.Option{}, repository.ErrNotFound
	}
	if patch.OptionText != nil {
		o.OptionText = *patch.OptionText
	}
	if patch.Rating.Set {
		o.Rating = nil
		if patch.Rating.Value != nil {
			rating := *patch.Rating.Value
			o.Rating = &rating
		}
	}
	o.UpdatedAt = r.s.tick()
	r.s.options[id] = o
	return o, nil
}

func (r *Options) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.options[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.options, id)
	return nil
}

func (r *Options) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.options)), nil
}

// Identities is the auth_identities table. Deleting an identity cascades
// to its users row and everything owned by it.
type Identities struct{ s *Store }

func (r *Identities) Create(ctx context.Context, identity domain.Identity) (domain.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.identities {
		if existing.Email == identity.Email {
			return domain.Identity{}, fmt.Errorf("create identity: %w", domain.ErrEmailTaken)
		}
	}
	identity.CreatedAt = r.s.tick()
	r.s.identities[identity.ID] = identity
	return identity, nil
}

func (r *Identities) GetByEmail(ctx context.Context, email string) (domain.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, identity := range r.s.identities {
		if identity.Email == email {
			return identity, nil
		}
	}
	return domain.Identity{}, repository.ErrNotFound
}

func (r *Identities) GetByID(ctx context.Context, id string) (domain.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	identity, ok := r.s.identities[id]
	if !ok {
		return domain.Identity{}, repository.ErrNotFound
	}
	return identity, nil
}

func (r *Identities) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.identities[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.identities, id)
	r.s.deleteUserLocked(id)
	return nil
}

// RefreshTokens is the refresh_tokens table.
type RefreshTokens struct{ s *Store }

func (r *RefreshTokens) Create(ctx context.Context, token domain.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	token.CreatedAt = r.s.tick()
	r.s.refresh[token.ID] = token
	return nil
}

func (r *RefreshTokens) GetByToken(ctx context.Context, value string) (domain.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, token := range r.s.refresh {
		if token.Token == value {
			return token, nil
		}
	}
	return domain.RefreshToken{}, repository.ErrNotFound
}

func (r *RefreshTokens) Rotate(ctx context.Context, id int64, value string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	token, ok := r.s.refresh[id]
	if !ok || token.Revoked {
		return repository.ErrNotFound
	}
	token.Token = value
	token.ExpiresAt = expiresAt
	r.s.refresh[id] = token
	return nil
}

func (r *RefreshTokens) RevokeAllForUser(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, token := range r.s.refresh {
		if token.UserID == userID {
			token.Revoked = true
			r.s.refresh[id] = token
		}
	}
	return nil
}

// Revocations remembers logged-out access tokens.
type Revocations struct{ s *Store }

func (r *Revocations) Revoke(ctx context.Context, token string, until time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.revoked[token] = until
	return nil
}

func (r *Revocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	until, ok := r.s.revoked[token]
	return ok && time.Now().Before(until), nil
}
