package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alhaqil/storefront/internal/backend"
	"github.com/alhaqil/storefront/internal/events"
	"github.com/alhaqil/storefront/internal/models"
	"github.com/alhaqil/storefront/internal/store"
)

// ErrRemote wraps a failed remote write behind an already-applied local
// mutation. Local state is the current truth until the next reconciliation;
// callers decide whether to surface the failure.
var ErrRemote = errors.New("cart: remote update failed")

// Remote is the slice of the commerce API the engine needs. The server-held
// cart is the durable source of truth while authenticated; these calls set
// absolute quantities, so duplicate or reordered writes converge on the last
// caller's intent.
type Remote interface {
	FetchCart(ctx context.Context, token string, customerID uint, locale string) ([]backend.CartEntry, error)
	UpdateCart(ctx context.Context, token string, customerID uint, productID int, quantity uint, locale string) error
	ClearCart(ctx context.Context, token string, customerID uint, locale string) error
}

// Identity is the authenticated principal, nil for guests.
type Identity struct {
	UserID uint
	Token  string
}

// Engine keeps one cart per storefront session: optimistic local writes to
// the durable store, best-effort absolute-quantity writes upstream, and a
// login-time merge of the guest cart with the server cart.
//
// Overlapping syncs are not queued; the later call's result wins. The mutex
// only keeps concurrent handlers from interleaving a partially applied
// merge in the local store.
type Engine struct {
	mu     sync.Mutex
	store  *store.Store
	remote Remote
	events events.Publisher
	log    *slog.Logger
}

func NewEngine(s *store.Store, remote Remote, pub events.Publisher, log *slog.Logger) *Engine {
	return &Engine{store: s, remote: remote, events: pub, log: log}
}

func (e *Engine) Items(sessionID string) ([]models.CartLine, error) {
	return e.store.CartLines(sessionID)
}

// AddItem merges the new line into the cart: an existing line for the same
// product has its quantity incremented, otherwise the line is appended.
// The local write always lands; the remote write is attempted afterwards for
// authenticated users and its failure is returned wrapped in ErrRemote
// without rolling the local state back.
func (e *Engine) AddItem(ctx context.Context, sessionID string, line models.CartLine, ident *Identity, locale string) (*models.CartLine, error) {
	if line.ProductID == 0 {
		return nil, errors.New("cart: product id is required")
	}
	if line.Quantity == 0 {
		line.Quantity = 1
	}

	e.mu.Lock()
	existing, err := e.store.CartLine(sessionID, line.ProductID)
	switch {
	case err == nil:
		existing.Quantity += line.Quantity
		err = e.store.SaveCartLine(existing)
	case errors.Is(err, store.ErrNotFound):
		line.ID = 0
		line.SessionID = sessionID
		existing = &line
		err = e.store.SaveCartLine(existing)
	}
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.publish(ctx, sessionID, map[string]any{
		"type":       "cart_item_added",
		"product_id": existing.ProductID,
		"quantity":   existing.Quantity,
	})

	if ident != nil {
		if rerr := e.remote.UpdateCart(ctx, ident.Token, ident.UserID, existing.ProductID, existing.Quantity, locale); rerr != nil {
			e.log.Warn("cart_remote_update_failed", "product_id", existing.ProductID, "error", rerr)
			return existing, fmt.Errorf("%w: %w", ErrRemote, rerr)
		}
	}
	return existing, nil
}

// UpdateQuantity sets the line's quantity to exactly newQuantity; zero or
// negative removes the line. Removal uses the backend's zero-quantity update
// semantics remotely.
func (e *Engine) UpdateQuantity(ctx context.Context, sessionID string, productID int, newQuantity int, ident *Identity, locale string) error {
	e.mu.Lock()
	var err error
	if newQuantity <= 0 {
		err = e.store.DeleteCartLine(sessionID, productID)
	} else {
		var existing *models.CartLine
		existing, err = e.store.CartLine(sessionID, productID)
		if err == nil {
			existing.Quantity = uint(newQuantity)
			err = e.store.SaveCartLine(existing)
		}
	}
	e.mu.Unlock()
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	remoteQty := uint(0)
	if newQuantity > 0 {
		remoteQty = uint(newQuantity)
	}
	e.publish(ctx, sessionID, map[string]any{
		"type":       "cart_quantity_set",
		"product_id": productID,
		"quantity":   remoteQty,
	})

	if ident != nil {
		if rerr := e.remote.UpdateCart(ctx, ident.Token, ident.UserID, productID, remoteQty, locale); rerr != nil {
			e.log.Warn("cart_remote_update_failed", "product_id", productID, "error", rerr)
			return fmt.Errorf("%w: %w", ErrRemote, rerr)
		}
	}
	return nil
}

// RemoveItem removes the product from the cart entirely.
func (e *Engine) RemoveItem(ctx context.Context, sessionID string, productID int, ident *Identity, locale string) error {
	return e.UpdateQuantity(ctx, sessionID, productID, 0, ident, locale)
}

// Clear empties the cart locally and, when authenticated, upstream. Used
// after a successful checkout.
func (e *Engine) Clear(ctx context.Context, sessionID string, ident *Identity, locale string) error {
	e.mu.Lock()
	err := e.store.ClearCart(sessionID)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.publish(ctx, sessionID, map[string]any{"type": "cart_cleared"})

	if ident != nil {
		if rerr := e.remote.ClearCart(ctx, ident.Token, ident.UserID, locale); rerr != nil {
			e.log.Warn("cart_remote_clear_failed", "error", rerr)
			return fmt.Errorf("%w: %w", ErrRemote, rerr)
		}
	}
	return nil
}

// Sync reconciles the local cart with the server cart. Triggered on login,
// on session restore and on locale change while authenticated.
//
// Merge policy, guest-cart-wins-by-addition: server lines are adopted at the
// server's quantity unless the local line is strictly greater, in which case
// the local quantity wins and is pushed back up; local-only lines are pushed
// up at their accumulated quantity. A failed fetch leaves the local cart
// untouched.
func (e *Engine) Sync(ctx context.Context, sessionID string, ident Identity, locale string) ([]models.CartLine, error) {
	serverLines, err := e.remote.FetchCart(ctx, ident.Token, ident.UserID, locale)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	local, err := e.store.CartLines(sessionID)
	if err != nil {
		return nil, err
	}
	localByProduct := make(map[int]models.CartLine, len(local))
	for _, l := range local {
		localByProduct[l.ProductID] = l
	}

	merged := make([]models.CartLine, 0, len(serverLines)+len(local))
	seen := make(map[int]bool, len(serverLines))

	for _, s := range serverLines {
		line := models.CartLine{
			ProductID:     s.ProductID,
			NameEN:        s.NameEN,
			NameAR:        s.NameAR,
			DescriptionEN: s.DescriptionEN,
			DescriptionAR: s.DescriptionAR,
			Price:         s.Price,
			Image:         s.Image,
			Quantity:      s.Quantity,
		}
		if l, ok := localByProduct[s.ProductID]; ok && l.Quantity > s.Quantity {
			line.Quantity = l.Quantity
			e.push(ctx, ident, s.ProductID, l.Quantity, locale)
		}
		seen[s.ProductID] = true
		merged = append(merged, line)
	}

	for _, l := range local {
		if seen[l.ProductID] {
			continue
		}
		l.ID = 0
		merged = append(merged, l)
		e.push(ctx, ident, l.ProductID, l.Quantity, locale)
	}

	if err := e.store.ReplaceCart(sessionID, merged); err != nil {
		return nil, err
	}

	e.publish(ctx, sessionID, map[string]any{
		"type":    "cart_synced",
		"user_id": ident.UserID,
		"lines":   len(merged),
	})
	return merged, nil
}

// Logout drops local state only; the remote cart stays as the durable
// record for the next login.
func (e *Engine) Logout(sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ClearCart(sessionID)
}

// push sends a quantity upstream during a merge. Failures are logged, not
// fatal: the merged local view stands and the next sync reconciles.
func (e *Engine) push(ctx context.Context, ident Identity, productID int, quantity uint, locale string) {
	if err := e.remote.UpdateCart(ctx, ident.Token, ident.UserID, productID, quantity, locale); err != nil {
		e.log.Warn("cart_sync_push_failed", "product_id", productID, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, sessionID string, event map[string]any) {
	if e.events == nil {
		return
	}
	if err := e.events.PublishEvent(ctx, events.TopicCart, sessionID, event); err != nil {
		e.log.Warn("cart_event_publish_failed", "error", err)
	}
}
