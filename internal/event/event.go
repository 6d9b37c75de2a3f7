// Package event defines the realm-scoped lifecycle events dispatched across
// plugins and the outcome contract the loadbuffer hook
// returns to the chunk loader.
package event

// Kind identifies which lifecycle event is being dispatched.
type Kind int

const (
	// MenuInit fires once, when the menu realm's VM first becomes available.
	MenuInit Kind = iota
	// ClientInit fires once per process lifetime, on the first client-realm
	// chunk load.
	ClientInit
	// LoadBuffer fires for every client-realm chunk load after the realm has
	// been initialized.
	LoadBuffer
)

// String implements fmt.Stringer for log lines.
func (k Kind) String() string {
	switch k {
	case MenuInit:
		return "menu-init"
	case ClientInit:
		return "client-init"
	case LoadBuffer:
		return "loadbuffer"
	default:
		return "unknown"
	}
}

// Chunk describes the chunk a loadbuffer event is interposing on.
type Chunk struct {
	Name string
	Body []byte
	Mode string // "t", "b", or "bt" per the host's loadbufferx convention
}

// Outcome is the loadbuffer event's return-value contract. Exactly one of the three shapes applies.
type Outcome struct {
	kind    outcomeKind
	replace []byte
}

type outcomeKind int

const (
	outcomeContinue outcomeKind = iota
	outcomeSkip
	outcomeReplace
)

// Continue forwards the original chunk unchanged.
func Continue() Outcome { return Outcome{kind: outcomeContinue} }

// Skip suppresses the chunk: it is never loaded.
func Skip() Outcome { return Outcome{kind: outcomeSkip} }

// Replace loads bytes in place of the original chunk. The bytes are copied
// on the way in.
func Replace(bytes []byte) Outcome {
	owned := make([]byte, len(bytes))
	copy(owned, bytes)
	return Outcome{kind: outcomeReplace, replace: owned}
}

// IsContinue reports whether the chunk should be forwarded unchanged.
func (o Outcome) IsContinue() bool { return o.kind == outcomeContinue }

// IsSkip reports whether the chunk should be suppressed.
func (o Outcome) IsSkip() bool { return o.kind == outcomeSkip }

// Replacement returns the replacement bytes and true, or nil/false if this
// outcome is not a Replace.
func (o Outcome) Replacement() ([]byte, bool) {
	if o.kind != outcomeReplace {
		return nil, false
	}
	return o.replace, true
}
