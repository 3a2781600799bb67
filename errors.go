package assetgate

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable matches gateway errors caused by a transport or
	// connectivity failure reaching the object store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrStoreRejected matches gateway errors where the store answered but
	// declined the request. ObjectStore implementations wrap it around backend
	// refusals (auth, not found, quota, malformed request).
	ErrStoreRejected = errors.New("store rejected request")
	// ErrInvalidAssetStatus matches gateway errors where the download gate failed.
	ErrInvalidAssetStatus = errors.New("invalid asset status")
	// ErrInvalidCapability is returned when a capability URL fails signature
	// verification or cannot be parsed.
	ErrInvalidCapability = errors.New("invalid capability")
)

const (
	msgStoreUnavailable   = "The object store couldn't be contacted for a response, or the client couldn't parse the response from the object store."
	msgStoreRejected      = "The call was transmitted successfully, but the object store couldn't process it, so it returned an error response."
	msgInvalidAssetStatus = "Status of asset is not 'uploaded'."
)

// ErrorKind classifies a ServiceError.
type ErrorKind int

const (
	KindStoreUnavailable ErrorKind = iota + 1
	KindStoreRejected
	KindInvalidAssetStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindStoreRejected:
		return "store_rejected"
	case KindInvalidAssetStatus:
		return "invalid_asset_status"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindStoreUnavailable:
		return ErrStoreUnavailable
	case KindStoreRejected:
		return ErrStoreRejected
	case KindInvalidAssetStatus:
		return ErrInvalidAssetStatus
	default:
		return nil
	}
}

// ServiceError is the only error type returned by Gateway operations.
// Callers see one opaque error; Kind and the wrapped cause are diagnostics.
type ServiceError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *ServiceError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the ErrorKind carried by err, or 0 if err is not a ServiceError.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func storeError(op string, err error) *ServiceError {
	if errors.Is(err, ErrStoreRejected) {
		return &ServiceError{Kind: KindStoreRejected, Op: op, Message: msgStoreRejected, Err: err}
	}
	return &ServiceError{Kind: KindStoreUnavailable, Op: op, Message: msgStoreUnavailable, Err: err}
}

func invalidStatusError(op string) *ServiceError {
	return &ServiceError{Kind: KindInvalidAssetStatus, Op: op, Message: msgInvalidAssetStatus}
}
