package itg

import (
	"errors"
	"strconv"
)

// TickerLevel selects market data feed depth for a subscription
type TickerLevel int

const (
	TickerLevelBook  TickerLevel = 1
	TickerLevelDeal  TickerLevel = 2
	TickerLevelOrder TickerLevel = 3

	tickerLevelBookStr  = "book"
	tickerLevelDealStr  = "deal"
	tickerLevelOrderStr = "order"
)

func (tl TickerLevel) String() string {
	switch tl {
	case TickerLevelBook:
		return tickerLevelBookStr
	case TickerLevelDeal:
		return tickerLevelDealStr
	case TickerLevelOrder:
		return tickerLevelOrderStr
	}
	return "unknown(" + strconv.Itoa(int(tl)) + ")"
}

func (tl TickerLevel) IsValid() bool {
	return tl >= TickerLevelBook && tl <= TickerLevelOrder
}

// HasDeals report trade ticks included
func (tl TickerLevel) HasDeals() bool {
	return tl >= TickerLevelDeal
}

// HasOrders report order-by-order ticks included
func (tl TickerLevel) HasOrders() bool {
	return tl >= TickerLevelOrder
}

func (tl TickerLevel) MarshalJSON() ([]byte, error) {
	if !tl.IsValid() {
		return nil, errors.New("invalid ticker level json conversion: " + strconv.Itoa(int(tl)))
	}
	return []byte(strconv.Itoa(int(tl))), nil
}

func (tl *TickerLevel) UnmarshalJSON(data []byte) error {
	val, err := strconv.Atoi(string(data))
	if err != nil || !TickerLevel(val).IsValid() {
		return errors.New("unsupported ticker level: " + string(data))
	}
	*tl = TickerLevel(val)
	return nil
}

func TickerLevelStrToType(value string) (TickerLevel, error) {
	switch value {
	case tickerLevelBookStr:
		return TickerLevelBook, nil
	case tickerLevelDealStr:
		return TickerLevelDeal, nil
	case tickerLevelOrderStr:
		return TickerLevelOrder, nil
	}
	return 0, errors.New("unsupported ticker level: " + value)
}
