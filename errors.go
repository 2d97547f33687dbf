package detour

// Status is the flat error-kind enum returned by every public operation,
// per the error handling design: one status value per operation, never a
// richer error hierarchy.
type Status int32

const (
	StatusOK Status = iota
	StatusAlreadyInitialized
	StatusNotInitialized
	StatusAlreadyCreated
	StatusNotCreated
	StatusAlreadyEnabled
	StatusAlreadyDisabled
	StatusNotExecutable
	StatusUnsupportedFunction
	StatusMemoryAllocationFailed
	StatusMemoryProtectionFailed
	StatusModuleNotFound
	StatusFunctionNotFound
	StatusUnknown
)

var statusText = map[Status]string{
	StatusOK:                     "ok",
	StatusAlreadyInitialized:     "already initialized",
	StatusNotInitialized:         "not initialized",
	StatusAlreadyCreated:         "already created",
	StatusNotCreated:             "not created",
	StatusAlreadyEnabled:         "already enabled",
	StatusAlreadyDisabled:        "already disabled",
	StatusNotExecutable:          "not executable",
	StatusUnsupportedFunction:    "unsupported function",
	StatusMemoryAllocationFailed: "memory allocation failed",
	StatusMemoryProtectionFailed: "memory protection failed",
	StatusModuleNotFound:         "module not found",
	StatusFunctionNotFound:       "function not found",
	StatusUnknown:                "unknown error",
}

// String returns the human-readable form of the status, as the caller
// would print it.
func (s Status) String() string {
	if t, ok := statusText[s]; ok {
		return t
	}
	return statusText[StatusUnknown]
}

// Error implements the error interface so a Status can be returned and
// compared directly wherever Go idiom expects an error.
func (s Status) Error() string {
	return s.String()
}

// Ok reports whether the status represents success.
func (s Status) Ok() bool {
	return s == StatusOK
}
