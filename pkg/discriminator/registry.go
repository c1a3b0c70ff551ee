package discriminator

import "fmt"

// Kind is the closed set of identifiers the wrapper protocol understands.
type Kind int

const (
	KindUnknown Kind = iota

	// Wrapper instructions.
	KindInitialize
	KindInitializePoolAuthority
	KindSwapWithPoolAuthority
	KindSwapWithSeq

	// AMM instruction carried as the inner payload.
	KindAmmSwap

	// Wrapper accounts.
	KindFifoStateAccount
	KindPoolAuthorityStateAccount

	// Wrapper events.
	KindSwapEvent
)

// Entry binds a Kind to its one canonical namespace/name pair and the
// pinned identifier derived from it.
type Entry struct {
	Kind          Kind
	Namespace     string
	Name          string
	Discriminator Discriminator
}

// Pinned identifiers. Each value equals Compute(Namespace, Name) of its
// entry in canonicalEntries; the package tests recompute them.
var (
	Initialize              = Discriminator{175, 175, 109, 31, 13, 152, 155, 237}
	InitializePoolAuthority = Discriminator{245, 243, 142, 59, 138, 3, 209, 46}
	SwapWithPoolAuthority   = Discriminator{237, 180, 80, 103, 107, 172, 187, 137}
	SwapWithSeq             = Discriminator{175, 1, 32, 219, 181, 148, 80, 154}
	AmmSwap                 = Discriminator{248, 198, 158, 145, 225, 117, 135, 200}

	FifoStateAccount          = Discriminator{95, 31, 138, 201, 99, 121, 124, 131}
	PoolAuthorityStateAccount = Discriminator{255, 175, 6, 75, 18, 125, 230, 196}

	SwapEvent = Discriminator{64, 198, 205, 232, 38, 8, 113, 226}
)

// Instruction names are snake_case, account and event names PascalCase.
var canonicalEntries = []Entry{
	{KindInitialize, NamespaceGlobal, "initialize", Initialize},
	{KindInitializePoolAuthority, NamespaceGlobal, "initialize_pool_authority", InitializePoolAuthority},
	{KindSwapWithPoolAuthority, NamespaceGlobal, "swap_with_pool_authority", SwapWithPoolAuthority},
	{KindSwapWithSeq, NamespaceGlobal, "swap_with_seq", SwapWithSeq},
	{KindAmmSwap, NamespaceGlobal, "swap", AmmSwap},
	{KindFifoStateAccount, NamespaceAccount, "FifoState", FifoStateAccount},
	{KindPoolAuthorityStateAccount, NamespaceAccount, "PoolAuthorityState", PoolAuthorityStateAccount},
	{KindSwapEvent, NamespaceEvent, "SwapEvent", SwapEvent},
}

// Entries returns a copy of the canonical registry in declaration order.
func Entries() []Entry {
	out := make([]Entry, len(canonicalEntries))
	copy(out, canonicalEntries)
	return out
}

func (k Kind) String() string {
	for _, e := range canonicalEntries {
		if e.Kind == k {
			return e.Namespace + ":" + e.Name
		}
	}
	return "unknown"
}

// Registry resolves discriminators to kinds. It is the only supported way
// to identify a payload by its prefix.
type Registry struct {
	byDisc map[Discriminator]Entry
	byKind map[Kind]Entry
}

// NewRegistry builds a registry over the given entries. It fails when two
// entries share a discriminator or a kind, which would make dispatch
// ambiguous.
func NewRegistry(entries []Entry) (*Registry, error) {
	r := &Registry{
		byDisc: make(map[Discriminator]Entry, len(entries)),
		byKind: make(map[Kind]Entry, len(entries)),
	}

	for _, e := range entries {
		if prev, exists := r.byDisc[e.Discriminator]; exists {
			return nil, fmt.Errorf("discriminator %s registered for both %s and %s:%s",
				e.Discriminator, prev.Kind, e.Namespace, e.Name)
		}
		if _, exists := r.byKind[e.Kind]; exists {
			return nil, fmt.Errorf("kind %d registered twice", e.Kind)
		}
		r.byDisc[e.Discriminator] = e
		r.byKind[e.Kind] = e
	}

	return r, nil
}

var defaultRegistry = mustRegistry(canonicalEntries)

func mustRegistry(entries []Entry) *Registry {
	r, err := NewRegistry(entries)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns the registry of canonical wrapper identifiers.
func Default() *Registry {
	return defaultRegistry
}

// Lookup resolves d to its entry.
func (r *Registry) Lookup(d Discriminator) (Entry, bool) {
	e, ok := r.byDisc[d]
	return e, ok
}

// Match resolves the prefix of data to a Kind. KindUnknown is returned for
// short or unregistered data.
func (r *Registry) Match(data []byte) Kind {
	d, ok := FromBytes(data)
	if !ok {
		return KindUnknown
	}
	if e, exists := r.byDisc[d]; exists {
		return e.Kind
	}
	return KindUnknown
}

// MatchBatch resolves a batch of prefixes; unknown entries map to KindUnknown.
func (r *Registry) MatchBatch(targets []Discriminator) []Kind {
	if len(targets) == 0 {
		return nil
	}

	results := make([]Kind, len(targets))
	for i, target := range targets {
		if e, exists := r.byDisc[target]; exists {
			results[i] = e.Kind
		}
	}
	return results
}

// Get returns the pinned discriminator for k.
func (r *Registry) Get(k Kind) (Discriminator, bool) {
	e, ok := r.byKind[k]
	return e.Discriminator, ok
}

// MustGet is like Get but panics for kinds missing from the registry.
func (r *Registry) MustGet(k Kind) Discriminator {
	d, ok := r.Get(k)
	if !ok {
		panic(fmt.Sprintf("discriminator: kind %d not registered", k))
	}
	return d
}
