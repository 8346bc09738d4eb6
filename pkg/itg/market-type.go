package itg

import (
	"errors"
	"strconv"
	"strings"
)

// MarketType is the exchange an instrument is listed on. Zero value means not set.
type MarketType int

const (
	MarketTypeSSE MarketType = 1
	MarketTypeSZE MarketType = 2
	MarketTypeOTH MarketType = 3

	marketTypeSSEStr = "SSE"
	marketTypeSZEStr = "SZE"
	marketTypeOTHStr = "OTH"

	exchangeCodeSH = "SH"
	exchangeCodeSZ = "SZ"
)

func (mt MarketType) String() string {
	switch mt {
	case 0:
		return ""
	case MarketTypeSSE:
		return marketTypeSSEStr
	case MarketTypeSZE:
		return marketTypeSZEStr
	case MarketTypeOTH:
		return marketTypeOTHStr
	}
	return "unknown(" + strconv.Itoa(int(mt)) + ")"
}

// IsValid report known market or unset value
func (mt MarketType) IsValid() bool {
	return mt >= 0 && mt <= MarketTypeOTH
}

func (mt MarketType) MarshalJSON() ([]byte, error) {
	if !mt.IsValid() {
		return nil, errors.New("invalid market type json conversion: " + strconv.Itoa(int(mt)))
	}
	return []byte(strconv.Itoa(int(mt))), nil
}

func (mt *MarketType) UnmarshalJSON(data []byte) error {
	val, err := strconv.Atoi(string(data))
	if err != nil || !MarketType(val).IsValid() {
		return errors.New("unsupported market type: " + string(data))
	}
	*mt = MarketType(val)
	return nil
}

func MarketTypeStrToType(value string) (MarketType, error) {
	switch value {
	case marketTypeSSEStr:
		return MarketTypeSSE, nil
	case marketTypeSZEStr:
		return MarketTypeSZE, nil
	case marketTypeOTHStr:
		return MarketTypeOTH, nil
	}
	return 0, errors.New("unsupported market type: " + value)
}

// MarketTypeFromExchangeCode resolve SH/SZ codes used by quotation feeds
func MarketTypeFromExchangeCode(code string) MarketType {
	switch code {
	case exchangeCodeSH:
		return MarketTypeSSE
	case exchangeCodeSZ:
		return MarketTypeSZE
	case "":
		return 0
	}
	return MarketTypeOTH
}

// SplitTicker split "605199.SH" style ticker into vendor symbol and market
func SplitTicker(ticker string) (string, MarketType) {
	dot := strings.LastIndexByte(ticker, '.')
	if dot < 0 {
		return ticker, 0
	}
	return ticker[:dot], MarketTypeFromExchangeCode(ticker[dot+1:])
}
