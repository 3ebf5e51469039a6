package savesvc

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

// RetCode is the outcome of a save service operation
type RetCode uint64

const (
	RetCOffline        RetCode = iota // 0: The service is disabled or closed.
	RetCSuccess                       // 1: Operation succeeded.
	RetCSQLError                      // 2: The durable store failed (or the stored data could not be decoded).
	RetCKeyNotFound                   // 3: No value exists for the key.
	RetCExists                        // 4: A value exists for the key.
	RetCNotExists                     // 5: No value exists for the key (Exists only).
	RetCInvalidKey                    // 6: The key is empty or blank.
	RetCInvalidPayload                // 7: The payload is nil.
)

// String returns the wire name of the code (e.g. KEY_NOT_FOUND)
func (c RetCode) String() string {
	switch c {
	case RetCOffline:
		return "OFFLINE"
	case RetCSuccess:
		return "SUCCESS"
	case RetCSQLError:
		return "SQL_ERROR"
	case RetCKeyNotFound:
		return "KEY_NOT_FOUND"
	case RetCExists:
		return "EXISTS"
	case RetCNotExists:
		return "NOT_EXISTS"
	case RetCInvalidKey:
		return "INVALID_KEY"
	case RetCInvalidPayload:
		return "INVALID_PAYLOAD"
	default:
		return "UNKNOWN"
	}
}

// ParseRetCode is the inverse of RetCode.String
func ParseRetCode(s string) (RetCode, bool) {
	for c := RetCOffline; c <= RetCInvalidPayload; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return RetCOffline, false
}
