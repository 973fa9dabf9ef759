/*
DESCRIPTION
  errors.go defines the typed container/meta error taxonomy (spec.md §7).
*/

package bmff

import "fmt"

// Kind identifies the category of a container or meta parsing failure.
type Kind int

const (
	// KindTruncatedBox: a box header or its declared payload runs past the
	// end of its parent or the file.
	KindTruncatedBox Kind = iota
	// KindInvalidBoxSize: a box's size field is internally inconsistent
	// (e.g. smaller than its own header).
	KindInvalidBoxSize
	// KindOverrunParent: a child box's end exceeds its parent's end.
	KindOverrunParent
	// KindUnsupportedBox: a structurally valid box this parser does not
	// understand was required but not found (e.g. missing pitm).
	KindUnsupportedBox
	// KindUnsupportedItem: the primary item exists but cannot be safely
	// extracted; Reason names why.
	KindUnsupportedItem
)

func (k Kind) String() string {
	switch k {
	case KindTruncatedBox:
		return "TruncatedBox"
	case KindInvalidBoxSize:
		return "InvalidBoxSize"
	case KindOverrunParent:
		return "OverrunParent"
	case KindUnsupportedBox:
		return "UnsupportedBox"
	case KindUnsupportedItem:
		return "UnsupportedItem"
	default:
		return "Unknown"
	}
}

// ItemReason further qualifies a KindUnsupportedItem error.
type ItemReason int

const (
	ReasonNone ItemReason = iota
	ReasonDerivedPrimary
	ReasonNotAv01
	ReasonExternalDataRef
	ReasonConstructionMethod2
	ReasonImplicitExtent
)

func (r ItemReason) String() string {
	switch r {
	case ReasonDerivedPrimary:
		return "DerivedPrimary"
	case ReasonNotAv01:
		return "NotAv01"
	case ReasonExternalDataRef:
		return "ExternalDataRef"
	case ReasonConstructionMethod2:
		return "ConstructionMethod2"
	case ReasonImplicitExtent:
		return "ImplicitExtent"
	default:
		return "None"
	}
}

// Error is the typed error returned by every function in this package.
type Error struct {
	Kind   Kind
	Reason ItemReason // only meaningful when Kind == KindUnsupportedItem
	Offset int64      // byte offset of the failure, -1 if not applicable
	Msg    string
}

func (e *Error) Error() string {
	if e.Kind == KindUnsupportedItem && e.Reason != ReasonNone {
		return fmt.Sprintf("bmff: %s(%s): %s (offset=%d)", e.Kind, e.Reason, e.Msg, e.Offset)
	}
	return fmt.Sprintf("bmff: %s: %s (offset=%d)", e.Kind, e.Msg, e.Offset)
}

func newErr(k Kind, off int64, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Offset: off, Msg: fmt.Sprintf(format, args...)}
}

func newItemErr(reason ItemReason, off int64, format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnsupportedItem, Reason: reason, Offset: off, Msg: fmt.Sprintf(format, args...)}
}
