// Package resource holds what every gateway resource shares: a server-assigned
// identity, tri-state fields and the fetch/create/update/delete protocol.
// Resources never own their parent; a child's path is computed from the ids in
// its ownership chain.
package resource

import (
	"context"
	"strings"

	"fjacquet/payledger/internal/payerror"
	"fjacquet/payledger/internal/transport"
)

// Resource is anything that can be synchronised with the gateway.
type Resource interface {
	// ID is empty while the resource is unsaved.
	ID() string
	// Path is the resource's own path once saved, its collection path before.
	Path() string
	// Serialize returns the canonical request body. Unset fields are omitted.
	Serialize() transport.Snapshot
	// Deserialize applies a response. Applying the same snapshot twice leaves
	// the resource unchanged after the first application.
	Deserialize(snap transport.Snapshot) error
}

// Base carries the server-assigned id. Once set it never changes and never
// goes back to empty.
type Base struct {
	id string
}

func (b *Base) ID() string {
	return b.id
}

// IsPersisted reports whether the gateway has assigned an id.
func (b *Base) IsPersisted() bool {
	return b.id != ""
}

// AssignID records the server-assigned id. An empty id is ignored; a different
// id than the one already held is rejected.
func (b *Base) AssignID(id string) error {
	switch {
	case id == "" || id == b.id:
		return nil
	case b.id != "":
		return payerror.Invalid("assign id", payerror.ErrAlreadyPersisted,
			"resource "+b.id+" cannot become "+id)
	}
	b.id = id
	return nil
}

// JoinPath joins path segments with "/", skipping empty ones, so that an unsaved
// resource resolves to its collection path.
func JoinPath(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

// Fetch replaces r's fields with the gateway's current view.
func Fetch(ctx context.Context, t transport.Transport, r Resource) error {
	if r.ID() == "" {
		return payerror.Invalid("fetch", payerror.ErrUnsavedResource, r.Path())
	}
	snap, err := t.Send(ctx, transport.MethodGet, r.Path(), nil)
	if err != nil {
		return err
	}
	return r.Deserialize(snap)
}

// Create posts r to its collection and applies the response, which assigns the
// id. Put an idempotency key on ctx to make retries safe.
func Create(ctx context.Context, t transport.Transport, r Resource) error {
	if r.ID() != "" {
		return payerror.Invalid("create", payerror.ErrAlreadyPersisted, r.Path())
	}
	snap, err := t.Send(ctx, transport.MethodPost, r.Path(), r.Serialize())
	if err != nil {
		return err
	}
	return r.Deserialize(snap)
}

// Update sends r's serialized fields and applies the response.
func Update(ctx context.Context, t transport.Transport, r Resource) error {
	if r.ID() == "" {
		return payerror.Invalid("update", payerror.ErrUnsavedResource, r.Path())
	}
	snap, err := t.Send(ctx, transport.MethodPut, r.Path(), r.Serialize())
	if err != nil {
		return err
	}
	return r.Deserialize(snap)
}

// Delete removes r on the gateway. The local object keeps its id.
func Delete(ctx context.Context, t transport.Transport, r Resource) error {
	if r.ID() == "" {
		return payerror.Invalid("delete", payerror.ErrUnsavedResource, r.Path())
	}
	_, err := t.Send(ctx, transport.MethodDelete, r.Path(), nil)
	return err
}
