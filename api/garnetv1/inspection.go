// Package garnetv1 defines the messages of the garnet.v1 inspection service
// and the CBOR codec both the Connect handlers and gRPC clients use.
package garnetv1

// ServiceName is the fully qualified service name.
const ServiceName = "garnet.v1.InspectionService"

// Procedure paths.
const (
	AncestorsProcedure       = "/" + ServiceName + "/Ancestors"
	InstanceMethodsProcedure = "/" + ServiceName + "/InstanceMethods"
	ConstantsProcedure       = "/" + ServiceName + "/Constants"
	SendProcedure            = "/" + ServiceName + "/Send"
	InspectProcedure         = "/" + ServiceName + "/Inspect"
	ReleaseProcedure         = "/" + ServiceName + "/Release"
	CacheStatsProcedure      = "/" + ServiceName + "/CacheStats"
)

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// RefKind selects which field of a Ref names the value.
type RefKind uint8

const (
	RefNil RefKind = iota
	RefTrue
	RefFalse
	RefInt
	RefString
	RefSymbol
	RefConst  // Const is a class path such as "A::B"
	RefHandle // Handle is an id returned by an earlier call
)

// Ref names a value in a request.
type Ref struct {
	Kind   RefKind `cbor:"1,keyasint"`
	Int    int64   `cbor:"2,keyasint,omitempty"`
	String string  `cbor:"3,keyasint,omitempty"`
	Handle string  `cbor:"4,keyasint,omitempty"`
}

// Value describes a runtime value in a response. Handle can be passed back
// as a RefHandle until it is released or expires.
type Value struct {
	Handle  string `cbor:"1,keyasint"`
	Class   string `cbor:"2,keyasint"`
	Inspect string `cbor:"3,keyasint"`
}

// Raised describes an exception a call raised.
type Raised struct {
	Class     string   `cbor:"1,keyasint"`
	Message   string   `cbor:"2,keyasint"`
	Backtrace []string `cbor:"3,keyasint,omitempty"`
	Exception *Value   `cbor:"4,keyasint,omitempty"`
}

// ---------------------------------------------------------------------------
// Requests and responses
// ---------------------------------------------------------------------------

type AncestorsRequest struct {
	Module string `cbor:"1,keyasint"`
}

type AncestorsResponse struct {
	Names []string `cbor:"1,keyasint"`
}

// InstanceMethodsRequest lists method names. Visibility is "public",
// "protected", "private", or empty for public and protected together.
type InstanceMethodsRequest struct {
	Module     string `cbor:"1,keyasint"`
	Inherited  bool   `cbor:"2,keyasint"`
	Visibility string `cbor:"3,keyasint,omitempty"`
}

type InstanceMethodsResponse struct {
	Names []string `cbor:"1,keyasint"`
}

type ConstantsRequest struct {
	Module string `cbor:"1,keyasint"`
}

type ConstantsResponse struct {
	Names []string `cbor:"1,keyasint"`
}

// SendRequest calls Method on Receiver. With Private set the call ignores
// visibility, like Kernel#send.
type SendRequest struct {
	Receiver Ref    `cbor:"1,keyasint"`
	Method   string `cbor:"2,keyasint"`
	Args     []Ref  `cbor:"3,keyasint,omitempty"`
	Private  bool   `cbor:"4,keyasint,omitempty"`
}

// SendResponse carries either a Result or the exception in Raised.
type SendResponse struct {
	Result *Value  `cbor:"1,keyasint,omitempty"`
	Raised *Raised `cbor:"2,keyasint,omitempty"`
}

type InspectRequest struct {
	Handle string `cbor:"1,keyasint"`
}

// Field is a named instance variable.
type Field struct {
	Name  string `cbor:"1,keyasint"`
	Value Value  `cbor:"2,keyasint"`
}

type InspectResponse struct {
	Value            Value    `cbor:"1,keyasint"`
	InstanceVars     []Field  `cbor:"2,keyasint,omitempty"`
	SingletonMethods []string `cbor:"3,keyasint,omitempty"`
	Frozen           bool     `cbor:"4,keyasint"`
	Tainted          bool     `cbor:"5,keyasint"`
	ObjectID         uint64   `cbor:"6,keyasint"`
}

type ReleaseRequest struct {
	Handle string `cbor:"1,keyasint"`
}

type ReleaseResponse struct {
	Released bool `cbor:"1,keyasint"`
}

type CacheStatsRequest struct{}

type CacheStatsResponse struct {
	Adds           uint64 `cbor:"1,keyasint"`
	Removes        uint64 `cbor:"2,keyasint"`
	Evictions      uint64 `cbor:"3,keyasint"`
	ModuleIncludes uint64 `cbor:"4,keyasint"`
	IncludeEvicts  uint64 `cbor:"5,keyasint"`
	Flushes        uint64 `cbor:"6,keyasint"`
	Names          int64  `cbor:"7,keyasint"`
	Holders        int64  `cbor:"8,keyasint"`
	Serial         uint64 `cbor:"9,keyasint"`
	Handles        int64  `cbor:"10,keyasint"`
}
