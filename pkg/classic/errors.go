package classic

import (
	"errors"
	"fmt"
)

// Status words returned by the reader for its pseudo APDUs.
const (
	SWSuccess              = 0x9000
	SWOperationFailed      = 0x6300 // Authentication failed or no card response
	SWSecurityNotSatisfied = 0x6982
	SWFunctionNotSupported = 0x6A81
	SWWrongLength          = 0x6700
)

// SWError represents a status word error from the reader.
type SWError struct {
	Cmd byte   // Command INS byte
	SW  uint16 // Status word
}

func (e *SWError) Error() string {
	return fmt.Sprintf("reader command 0x%02X failed with SW=0x%04X (%s)", e.Cmd, e.SW, swDescription(e.SW))
}

func swDescription(sw uint16) string {
	switch sw {
	case SWSuccess:
		return "success"
	case SWOperationFailed:
		return "operation failed"
	case SWSecurityNotSatisfied:
		return "security not satisfied"
	case SWFunctionNotSupported:
		return "function not supported"
	case SWWrongLength:
		return "wrong length"
	default:
		return "unknown error"
	}
}

// IsAuthError checks if an error is a rejected authentication.
func IsAuthError(err error) bool {
	var swErr *SWError
	if errors.As(err, &swErr) {
		return swErr.Cmd == insAuthenticate &&
			(swErr.SW == SWOperationFailed || swErr.SW == SWSecurityNotSatisfied)
	}
	return false
}

// SwOK checks if a status word indicates success.
func SwOK(sw uint16) bool {
	return sw == SWSuccess
}
