package itg

import (
	"bytes"
	"errors"
	"strconv"
)

// SessionDomain separates the trading session from the market data session
type SessionDomain uint8

const (
	SessionTrade SessionDomain = iota
	SessionQuot

	sessionTradeStr = "trade"
	sessionQuotStr  = "quot"
)

var (
	sessionTradeByte = []byte(`"trade"`)
	sessionQuotByte  = []byte(`"quot"`)
)

func (sd SessionDomain) String() string {
	switch sd {
	case SessionTrade:
		return sessionTradeStr
	case SessionQuot:
		return sessionQuotStr
	}
	panic("invalid session domain string conversion" + strconv.Itoa(int(sd)))
}

func (sd SessionDomain) MarshalJSON() ([]byte, error) {
	switch sd {
	case SessionTrade:
		return sessionTradeByte, nil
	case SessionQuot:
		return sessionQuotByte, nil
	}
	return nil, errors.New("invalid session domain json conversion: " + strconv.Itoa(int(sd)))
}

func (sd *SessionDomain) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, sessionTradeByte) {
		*sd = SessionTrade
		return nil
	}
	if bytes.Equal(data, sessionQuotByte) {
		*sd = SessionQuot
		return nil
	}
	return errors.New("unsupported session domain: " + string(data))
}

func SessionDomainStrToType(value string) (SessionDomain, error) {
	switch value {
	case sessionTradeStr:
		return SessionTrade, nil
	case sessionQuotStr:
		return SessionQuot, nil
	}
	return 0, errors.New("unsupported session domain: " + value)
}
