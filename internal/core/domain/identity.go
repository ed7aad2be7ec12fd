package domain

import "context"

// Identity is a party's threshold-signing identity: the master key id under
// which the counterpart knows us, plus the opaque local share material. It is
// generated once and reused for every subsequent swap.
type Identity struct {
	MasterKeyID   string
	ShareMaterial []byte
}

// IdentityRepository persists the party's single identity row.
type IdentityRepository interface {
	// GetIdentity returns the stored identity or nil if none was generated yet.
	GetIdentity(ctx context.Context) (*Identity, error)
	// AddIdentity stores a freshly generated identity.
	AddIdentity(ctx context.Context, identity *Identity) error
}

// AccountIndexRepository hands out per-currency deposit account indexes. The
// counter is monotonic, persisted across restarts, and an index is never
// reused.
type AccountIndexRepository interface {
	// NextAccountIndex reserves and returns the next index for the currency,
	// starting from 0.
	NextAccountIndex(ctx context.Context, currency string) (uint32, error)
}
