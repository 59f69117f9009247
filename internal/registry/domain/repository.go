package domain

import "context"

// ApiRepository defines the persistence interface for encoded Api records.
// Implementations store opaque bytes; encoding and decoding stay in the
// registry so decode faults are never confused with missing keys.
type ApiRepository interface {
	// Lookup returns the stored bytes for name.
	// found is false when name has never been inserted.
	Lookup(ctx context.Context, name string) (data []byte, found bool, err error)

	// InsertIfAbsent stores data under name in one indivisible step.
	// inserted is false, with no mutation, when name is already occupied.
	InsertIfAbsent(ctx context.Context, name string, data []byte) (inserted bool, err error)

	// Delete removes name. Removing an absent name is not an error.
	Delete(ctx context.Context, name string) error

	// Names returns every stored name in byte order.
	Names(ctx context.Context) ([]string, error)

	// Flush blocks until previously written data survives a crash.
	Flush(ctx context.Context) error

	// Close releases the store handle.
	Close() error
}
