package itg

import (
	"bytes"
	"errors"
	"strconv"
)

// QueryKind names paginated query streams
type QueryKind uint8

const (
	QueryKindOrder QueryKind = iota
	QueryKindTrade
	QueryKindPosition
	QueryKindAsset
	QueryKindStatic

	queryKindOrderStr    = "order"
	queryKindTradeStr    = "trade"
	queryKindPositionStr = "position"
	queryKindAssetStr    = "asset"
	queryKindStaticStr   = "static"
)

var (
	queryKindOrderByte    = []byte(`"order"`)
	queryKindTradeByte    = []byte(`"trade"`)
	queryKindPositionByte = []byte(`"position"`)
	queryKindAssetByte    = []byte(`"asset"`)
	queryKindStaticByte   = []byte(`"static"`)
)

func (qk QueryKind) String() string {
	switch qk {
	case QueryKindOrder:
		return queryKindOrderStr
	case QueryKindTrade:
		return queryKindTradeStr
	case QueryKindPosition:
		return queryKindPositionStr
	case QueryKindAsset:
		return queryKindAssetStr
	case QueryKindStatic:
		return queryKindStaticStr
	}
	panic("invalid query kind string conversion" + strconv.Itoa(int(qk)))
}

// Domain return session serving the query
func (qk QueryKind) Domain() SessionDomain {
	if qk == QueryKindStatic {
		return SessionQuot
	}
	return SessionTrade
}

func (qk QueryKind) MarshalJSON() ([]byte, error) {
	switch qk {
	case QueryKindOrder:
		return queryKindOrderByte, nil
	case QueryKindTrade:
		return queryKindTradeByte, nil
	case QueryKindPosition:
		return queryKindPositionByte, nil
	case QueryKindAsset:
		return queryKindAssetByte, nil
	case QueryKindStatic:
		return queryKindStaticByte, nil
	}
	return nil, errors.New("invalid query kind json conversion: " + strconv.Itoa(int(qk)))
}

func (qk *QueryKind) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, queryKindOrderByte) {
		*qk = QueryKindOrder
		return nil
	}
	if bytes.Equal(data, queryKindTradeByte) {
		*qk = QueryKindTrade
		return nil
	}
	if bytes.Equal(data, queryKindPositionByte) {
		*qk = QueryKindPosition
		return nil
	}
	if bytes.Equal(data, queryKindAssetByte) {
		*qk = QueryKindAsset
		return nil
	}
	if bytes.Equal(data, queryKindStaticByte) {
		*qk = QueryKindStatic
		return nil
	}
	return errors.New("unsupported query kind: " + string(data))
}

func QueryKindStrToType(value string) (QueryKind, error) {
	switch value {
	case queryKindOrderStr:
		return QueryKindOrder, nil
	case queryKindTradeStr:
		return QueryKindTrade, nil
	case queryKindPositionStr:
		return QueryKindPosition, nil
	case queryKindAssetStr:
		return QueryKindAsset, nil
	case queryKindStaticStr:
		return QueryKindStatic, nil
	}
	return 0, errors.New("unsupported query kind: " + value)
}
