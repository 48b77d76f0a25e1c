package xso

// UnknownChildPolicy governs child elements with no matching descriptor.
// When the schema declares a Collector, unknown children are captured there
// instead and the policy does not apply.
type UnknownChildPolicy int

const (
	// UnknownChildFail aborts the parse on an unknown child element.
	UnknownChildFail UnknownChildPolicy = iota
	// UnknownChildDrop skips unknown child elements.
	UnknownChildDrop
)

// UnknownAttrPolicy governs attributes with no matching descriptor.
type UnknownAttrPolicy int

const (
	// UnknownAttrFail aborts the parse on an unknown attribute.
	UnknownAttrFail UnknownAttrPolicy = iota
	// UnknownAttrDrop ignores unknown attributes. If the schema declares a
	// Collector, dropped attributes are stashed there instead.
	UnknownAttrDrop
)

// UnknownTextPolicy governs character data when no Text descriptor is
// declared. When the schema declares a Collector, stray character data is
// captured there instead and the policy does not apply. Whitespace-only
// character data is always ignored.
type UnknownTextPolicy int

const (
	// UnknownTextFail aborts the parse on unexpected character data.
	UnknownTextFail UnknownTextPolicy = iota
	// UnknownTextDrop ignores unexpected character data.
	UnknownTextDrop
)

func (p UnknownChildPolicy) String() string {
	if p == UnknownChildFail {
		return "fail"
	}
	return "drop"
}

func (p UnknownAttrPolicy) String() string {
	if p == UnknownAttrFail {
		return "fail"
	}
	return "drop"
}

func (p UnknownTextPolicy) String() string {
	if p == UnknownTextFail {
		return "fail"
	}
	return "drop"
}
