// Package value implements OrgLang's tagged 64-bit Value representation:
// the lower two bits distinguish a heap pointer, a 62-bit immediate
// integer, a special singleton, or a reserved tag, exactly as described by
// the CORE specification's value layout.
package value

import (
	"math/big"
	"unsafe"

	"orglang/internal/arena"
)

// Value is a tagged 64-bit word. It is always passed by value, never by
// pointer: the whole point of the encoding is that small integers, booleans
// and the sentinels never touch the heap.
type Value uint64

const (
	tagMask     = 0x3
	tagPtr      = 0x0
	tagSmall    = 0x1
	tagSpecial  = 0x2
	tagReserved = 0x3
)

// SmallMax and SmallMin bound the 62-bit signed immediate integer range.
const (
	SmallMax = int64(1)<<61 - 1
	SmallMin = -(int64(1) << 61)
)

// Special singleton values. Unused must never be observable outside the
// runtime's own internals — it marks an absent operand slot.
const (
	True   Value = 0x06
	False  Value = 0x02
	Error  Value = 0x0A
	Unused Value = 0x0E
)

// IsPtr, IsSmall and IsSpecial classify a Value by its tag bits.
func IsPtr(v Value) bool     { return v&tagMask == tagPtr }
func IsSmall(v Value) bool   { return v&tagMask == tagSmall }
func IsSpecial(v Value) bool { return v&tagMask == tagSpecial }

func IsTrue(v Value) bool   { return v == True }
func IsFalse(v Value) bool  { return v == False }
func IsError(v Value) bool  { return v == Error }
func IsUnused(v Value) bool { return v == Unused }
func IsBool(v Value) bool   { return v == True || v == False }

// Bool converts a Go bool to the OrgLang True/False singleton.
func Bool(cond bool) Value {
	if cond {
		return True
	}
	return False
}

// SmallFits reports whether n fits the 62-bit immediate integer range.
func SmallFits(n int64) bool {
	return n >= SmallMin && n <= SmallMax
}

// TagSmall packs n into an immediate-integer Value. The caller must ensure
// SmallFits(n); callers that can't guarantee this should go through the
// numeric package's normalization, which falls back to BigInt.
func TagSmall(n int64) Value {
	return Value(uint64(n)<<2) | tagSmall
}

// UntagSmall extracts the int64 from an immediate-integer Value. The shift
// is arithmetic (on a signed type) so the sign is preserved.
func UntagSmall(v Value) int64 {
	return int64(v) >> 2
}

// ObjType enumerates the closed set of heap object variants.
type ObjType uint8

const (
	TypeBigInt ObjType = iota
	TypeRational
	TypeDecimal
	TypeString
	TypeTable
	TypeClosure
	TypeResource
	TypeErrorObj
)

func (t ObjType) String() string {
	switch t {
	case TypeBigInt:
		return "bigint"
	case TypeRational:
		return "rational"
	case TypeDecimal:
		return "decimal"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeClosure:
		return "closure"
	case TypeResource:
		return "resource"
	case TypeErrorObj:
		return "error_obj"
	default:
		return "unknown"
	}
}

// flag bits, stored in Header.Flags. flagIsInstance discriminates a
// TypeResource object between a Resource Definition and a Resource
// Instance (see DESIGN.md's Open Question decision on resource shape).
const flagIsInstance = 1 << 0

// Header is the common 8-byte prefix of every heap object, matching the
// original's OrgObject: type and flags in the first two bytes keep the
// rest of the struct naturally aligned.
type Header struct {
	Type  ObjType
	Flags uint8
	_pad  uint16
	Size  uint32
}

func headerAt(p unsafe.Pointer) *Header {
	return (*Header)(p)
}

// TagPtr wraps a heap object address (whose low 2 bits are necessarily zero
// because arena.Alloc aligns to at least 8 bytes) into a pointer-tagged
// Value.
func TagPtr(p unsafe.Pointer) Value {
	return Value(uintptr(p))
}

// Ptr extracts the heap address from a pointer-tagged Value. The caller
// must have checked IsPtr first.
func Ptr(v Value) unsafe.Pointer {
	return unsafe.Pointer(uintptr(v))
}

// GetType returns the heap type of a pointer-tagged Value.
func GetType(v Value) ObjType {
	return headerAt(Ptr(v)).Type
}

// TypeName returns the diagnostic type name the ops/print layer reports.
func TypeName(v Value) string {
	switch {
	case IsSmall(v):
		return "int"
	case IsTrue(v), IsFalse(v):
		return "bool"
	case IsError(v):
		return "error"
	case IsUnused(v):
		return "unused"
	case IsPtr(v):
		return GetType(v).String()
	default:
		return "reserved"
	}
}

// ---- Numeric type predicates ----

func IsInteger(v Value) bool {
	return IsSmall(v) || (IsPtr(v) && GetType(v) == TypeBigInt)
}

func IsRational(v Value) bool {
	return IsPtr(v) && GetType(v) == TypeRational
}

func IsDecimal(v Value) bool {
	return IsPtr(v) && GetType(v) == TypeDecimal
}

func IsNumeric(v Value) bool {
	return IsInteger(v) || IsRational(v) || IsDecimal(v)
}

// ---- BigInt ----

// bigIntObj is the arena-resident portion of a BigInt value; the *big.Int
// payload itself lives in the arena's pin table (see DESIGN.md) because
// math/big, unlike GMP, offers no allocator-redirection hook.
type bigIntObj struct {
	Header
	ref int32
	_   int32
}

// NewBigInt allocates a BigInt value wrapping n.
func NewBigInt(a *arena.Arena, n *big.Int) (Value, error) {
	p, err := a.Alloc(int(unsafe.Sizeof(bigIntObj{})), 8)
	if err != nil {
		return 0, err
	}
	obj := (*bigIntObj)(p)
	obj.Type = TypeBigInt
	obj.Size = uint32(unsafe.Sizeof(bigIntObj{}))
	obj.ref = int32(a.Pin(n))
	return TagPtr(p), nil
}

// GetBigInt retrieves the *big.Int payload of a BigInt value.
func GetBigInt(a *arena.Arena, v Value) *big.Int {
	obj := (*bigIntObj)(Ptr(v))
	return a.Ref(int(obj.ref)).(*big.Int)
}

// ---- Rational ----

type rationalObj struct {
	Header
	ref int32
	_   int32
}

// NewRational allocates a Rational value wrapping r. r must already be in
// canonical form (see internal/bignum's Reduce and WrapRational); this
// constructor does not reduce or re-sign it.
func NewRational(a *arena.Arena, r *big.Rat) (Value, error) {
	p, err := a.Alloc(int(unsafe.Sizeof(rationalObj{})), 8)
	if err != nil {
		return 0, err
	}
	obj := (*rationalObj)(p)
	obj.Type = TypeRational
	obj.Size = uint32(unsafe.Sizeof(rationalObj{}))
	obj.ref = int32(a.Pin(r))
	return TagPtr(p), nil
}

func GetRational(a *arena.Arena, v Value) *big.Rat {
	obj := (*rationalObj)(Ptr(v))
	return a.Ref(int(obj.ref)).(*big.Rat)
}

// ---- Decimal ----

type decimalObj struct {
	Header
	ref   int32
	scale int32
}

// NewDecimal allocates a Decimal value: an exact rational r together with a
// display scale (digits after the decimal point).
func NewDecimal(a *arena.Arena, r *big.Rat, scale int32) (Value, error) {
	p, err := a.Alloc(int(unsafe.Sizeof(decimalObj{})), 8)
	if err != nil {
		return 0, err
	}
	obj := (*decimalObj)(p)
	obj.Type = TypeDecimal
	obj.Size = uint32(unsafe.Sizeof(decimalObj{}))
	obj.ref = int32(a.Pin(r))
	obj.scale = scale
	return TagPtr(p), nil
}

func GetDecimal(a *arena.Arena, v Value) *big.Rat {
	obj := (*decimalObj)(Ptr(v))
	return a.Ref(int(obj.ref)).(*big.Rat)
}

func GetDecimalScale(v Value) int32 {
	return (*decimalObj)(Ptr(v)).scale
}

// ---- String ----

// stringObj stores its bytes directly in arena memory, as a flexible array
// member would in C: data[] follows the fixed fields with no padding, and
// its length is carried in ByteLen/CodepointLen.
type stringObj struct {
	Header
	ByteLen      uint32
	CodepointLen uint32
}

// NewString allocates a String value copying s into arena bytes.
func NewString(a *arena.Arena, s string) (Value, error) {
	total := int(unsafe.Sizeof(stringObj{})) + len(s)
	p, err := a.Alloc(total, 8)
	if err != nil {
		return 0, err
	}
	obj := (*stringObj)(p)
	obj.Type = TypeString
	obj.Size = uint32(total)
	obj.ByteLen = uint32(len(s))
	obj.CodepointLen = uint32(countCodepoints(s))

	dataPtr := unsafe.Add(p, unsafe.Sizeof(stringObj{}))
	copy(unsafe.Slice((*byte)(dataPtr), len(s)), s)
	return TagPtr(p), nil
}

func countCodepoints(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

// StringData returns the string's bytes as a Go string header aliasing the
// arena's memory; it must not be mutated or retained past the arena's
// lifetime.
func StringData(v Value) string {
	obj := (*stringObj)(Ptr(v))
	dataPtr := unsafe.Add(Ptr(v), unsafe.Sizeof(stringObj{}))
	return unsafe.String((*byte)(dataPtr), int(obj.ByteLen))
}

func StringByteLen(v Value) uint32 { return (*stringObj)(Ptr(v)).ByteLen }
func StringCodepointLen(v Value) uint32 {
	return (*stringObj)(Ptr(v)).CodepointLen
}

// ---- Closure ----

// NativeFunc is the callable payload behind a Closure value: a Go function
// taking the current arena, the receiver/left operand, and the right
// operand, returning a single result Value, mirroring the original's
// `OrgValue *(*)(Arena*, OrgValue*, OrgValue*, OrgValue*)` callable shape.
type NativeFunc func(a *arena.Arena, left, right Value) Value

type closureObj struct {
	Header
	ref int32
	_   int32
}

// closurePayload is what actually lives in the pin table: the callable
// itself, plus upvalues for a future compiler front end to populate. This
// runtime never populates Upvalues; see DESIGN.md's Open Question decision
// on closures.
type closurePayload struct {
	Fn       NativeFunc
	Upvalues []Value
}

// NewClosure allocates a Closure value wrapping fn with no captured
// upvalues.
func NewClosure(a *arena.Arena, fn NativeFunc) (Value, error) {
	p, err := a.Alloc(int(unsafe.Sizeof(closureObj{})), 8)
	if err != nil {
		return 0, err
	}
	obj := (*closureObj)(p)
	obj.Type = TypeClosure
	obj.Size = uint32(unsafe.Sizeof(closureObj{}))
	obj.ref = int32(a.Pin(&closurePayload{Fn: fn}))
	return TagPtr(p), nil
}

func closurePayloadOf(a *arena.Arena, v Value) *closurePayload {
	obj := (*closureObj)(Ptr(v))
	return a.Ref(int(obj.ref)).(*closurePayload)
}

// IsClosure reports whether v is a callable Closure value.
func IsClosure(v Value) bool {
	return IsPtr(v) && GetType(v) == TypeClosure
}

// Call invokes a Closure value with the given operands. It lives in this
// package, rather than in a higher-level dispatch package, specifically so
// that resource/iterator/scheduler/flow can invoke callables without
// importing anything above value in the dependency graph.
func Call(a *arena.Arena, fn, left, right Value) Value {
	if !IsClosure(fn) {
		return Error
	}
	return closurePayloadOf(a, fn).Fn(a, left, right)
}

// Upvalues returns the (currently always empty) captured-binding slice of a
// Closure value.
func Upvalues(a *arena.Arena, v Value) []Value {
	return closurePayloadOf(a, v).Upvalues
}
