package itg

import (
	"errors"
	"strconv"
)

// TradeMode is the order side
type TradeMode int

const (
	TradeModeBuy  TradeMode = 1
	TradeModeSell TradeMode = 2

	tradeModeBuyStr  = "buy"
	tradeModeSellStr = "sell"
)

func (tm TradeMode) String() string {
	switch tm {
	case TradeModeBuy:
		return tradeModeBuyStr
	case TradeModeSell:
		return tradeModeSellStr
	}
	return "unknown(" + strconv.Itoa(int(tm)) + ")"
}

func (tm TradeMode) IsValid() bool {
	return tm == TradeModeBuy || tm == TradeModeSell
}

// MarshalJSON keep raw code, reports may carry unset side
func (tm TradeMode) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(tm))), nil
}

// UnmarshalJSON accept side code, vendor pushes -1 for unknown direction
func (tm *TradeMode) UnmarshalJSON(data []byte) error {
	val, err := strconv.Atoi(string(data))
	if err != nil {
		return errors.New("unsupported trade mode: " + string(data))
	}
	*tm = TradeMode(val)
	return nil
}

func TradeModeStrToType(value string) (TradeMode, error) {
	switch value {
	case tradeModeBuyStr:
		return TradeModeBuy, nil
	case tradeModeSellStr:
		return TradeModeSell, nil
	}
	return 0, errors.New("unsupported trade mode: " + value)
}
