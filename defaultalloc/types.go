package defaultalloc

import "fmt"

// Configuration keys. A property value wins over the environment.
const (
	AllocationManagerTypeEnv      = "ARROW_ALLOCATION_MANAGER_TYPE"
	AllocationManagerTypeProperty = "arrow.allocation.manager.type"
	AllocatorTypeEnv              = "ARROW_ALLOCATOR_TYPE"
	AllocatorTypeProperty         = "arrow.allocator.type"
)

// AllocatorType selects the backend of root allocators.
type AllocatorType int

const (
	// Netty is the pooled backend.
	Netty AllocatorType = iota
	// Unsafe is the direct backend.
	Unsafe
	// Unknown defers to the default, which is Netty.
	Unknown
)

var allocatorTypeNames = [...]string{
	Netty:   "Netty",
	Unsafe:  "Unsafe",
	Unknown: "Unknown",
}

func (t AllocatorType) String() string {
	if t >= 0 && int(t) < len(allocatorTypeNames) {
		return allocatorTypeNames[t]
	}
	return fmt.Sprintf("AllocatorType(%d)", int(t))
}

// ParseAllocatorType matches s case-sensitively against the type names.
func ParseAllocatorType(s string) (AllocatorType, bool) {
	for i, name := range allocatorTypeNames {
		if s == name {
			return AllocatorType(i), true
		}
	}
	return 0, false
}

// ManagerType selects the backend that regions are acquired from.
type ManagerType int

const (
	ManagerNetty ManagerType = iota
	ManagerUnsafe
	ManagerUnknown
	// ManagerTest yields a manager factory that returns no manager. Any
	// allocation through it fails. It exists for test harnesses only and must
	// never be configured in production.
	ManagerTest
)

var managerTypeNames = [...]string{
	ManagerNetty:   "Netty",
	ManagerUnsafe:  "Unsafe",
	ManagerUnknown: "Unknown",
	ManagerTest:    "Test",
}

func (t ManagerType) String() string {
	if t >= 0 && int(t) < len(managerTypeNames) {
		return managerTypeNames[t]
	}
	return fmt.Sprintf("ManagerType(%d)", int(t))
}

// ParseManagerType matches s case-sensitively against the type names.
func ParseManagerType(s string) (ManagerType, bool) {
	for i, name := range managerTypeNames {
		if s == name {
			return ManagerType(i), true
		}
	}
	return 0, false
}

// ResolutionKind tells how a configured backend name was interpreted.
type ResolutionKind int

const (
	// ResolvedDefault means no configuration was present.
	ResolvedDefault ResolutionKind = iota
	// ResolvedKnown means the name parsed as a known type.
	ResolvedKnown
	// ResolvedRawName means the name did not parse and is looked up as a
	// fully-qualified factory name.
	ResolvedRawName
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolvedDefault:
		return "default"
	case ResolvedKnown:
		return "known"
	case ResolvedRawName:
		return "raw_name"
	default:
		return fmt.Sprintf("ResolutionKind(%d)", int(k))
	}
}

// Resolution is the outcome of reading a backend setting. Type is meaningful
// for ResolvedDefault and ResolvedKnown, Name for ResolvedRawName.
type Resolution[T fmt.Stringer] struct {
	Kind ResolutionKind
	Type T
	Name string
}

func (r Resolution[T]) String() string {
	if r.Kind == ResolvedRawName {
		return fmt.Sprintf("%s(%q)", r.Kind, r.Name)
	}
	return fmt.Sprintf("%s(%s)", r.Kind, r.Type)
}
