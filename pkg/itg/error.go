package itg

import (
	"strconv"

	"github.com/pkg/errors"
)

// ResultCode is the local outcome of a command call. Zero means the command was
// accepted for sending, everything else is an opaque local rejection.
type ResultCode int

const (
	ResultSuccess           ResultCode = 0
	ResultErrNotLoggedIn    ResultCode = -1
	ResultErrInvalidRequest ResultCode = -2
	ResultErrDuplicate      ResultCode = -3
	ResultErrNetwork        ResultCode = -4
	ResultErrNoSpi          ResultCode = -5
	ResultErrUnknown        ResultCode = -99
)

var resultMapping = map[ResultCode]string{
	ResultSuccess:           "success",
	ResultErrNotLoggedIn:    "notLoggedIn",
	ResultErrInvalidRequest: "invalidRequest",
	ResultErrDuplicate:      "duplicateRequest",
	ResultErrNetwork:        "network",
	ResultErrNoSpi:          "spiNotRegistered",
	ResultErrUnknown:        "unknown",
}

func (r ResultCode) Error() string {
	if msg, ok := resultMapping[r]; ok {
		return msg
	}
	return "result " + strconv.Itoa(int(r))
}

// Err return nil for success, the code itself otherwise
func (r ResultCode) Err() error {
	if r == ResultSuccess {
		return nil
	}
	return r
}

var (
	ErrSpiRegistered = errors.New("spi already registered")
	ErrSpiNil        = errors.New("spi is nil")
	ErrClosed        = errors.New("already closed")
)
