package itg

import (
	"bytes"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

type payloadLoginReply struct {
	LoginID   string `json:"loginId"`
	IsSuccess bool   `json:"isSuccess"`
	Msg       string `json:"msg"`
}

type payloadQueryOrder struct {
	RequestID string     `json:"requestId"`
	IsLast    bool       `json:"isLast"`
	Data      *OrderInfo `json:"data"`
}

type payloadQueryTrade struct {
	RequestID string     `json:"requestId"`
	IsLast    bool       `json:"isLast"`
	Data      *TradeInfo `json:"data"`
}

type payloadQueryPosition struct {
	RequestID string        `json:"requestId"`
	IsLast    bool          `json:"isLast"`
	Data      *PositionInfo `json:"data"`
}

type payloadQueryAsset struct {
	RequestID string     `json:"requestId"`
	IsLast    bool       `json:"isLast"`
	Data      *AssetInfo `json:"data"`
}

type payloadQuotStatic struct {
	RequestID string      `json:"requestId"`
	IsLast    bool        `json:"isLast"`
	Data      *StaticData `json:"data"`
}

type messageLoginReply struct {
	Data payloadLoginReply `json:"LoginReply"`
}

type messageOrderReport struct {
	Data OrderInfo `json:"OrderReport"`
}

type messageTradeReport struct {
	Data TradeInfo `json:"TradeReport"`
}

type messageQueryOrder struct {
	Data payloadQueryOrder `json:"QueryOrder"`
}

type messageQueryTrade struct {
	Data payloadQueryTrade `json:"QueryTrade"`
}

type messageQueryPosition struct {
	Data payloadQueryPosition `json:"QueryPosition"`
}

type messageQueryAsset struct {
	Data payloadQueryAsset `json:"QueryAsset"`
}

type messageQuotData struct {
	Data QuotationData `json:"QuotData"`
}

type messageQuotDeal struct {
	Data QuotationDeal `json:"QuotDeal"`
}

type messageQuotOrder struct {
	Data QuotationOrder `json:"QuotOrder"`
}

type messageQuotStatic struct {
	Data payloadQuotStatic `json:"QuotStatic"`
}

var (
	prefixLoginReply    = []byte(`{"LoginReply":`)
	prefixOrderReport   = []byte(`{"OrderReport":`)
	prefixTradeReport   = []byte(`{"TradeReport":`)
	prefixQueryOrder    = []byte(`{"QueryOrder":`)
	prefixQueryTrade    = []byte(`{"QueryTrade":`)
	prefixQueryPosition = []byte(`{"QueryPosition":`)
	prefixQueryAsset    = []byte(`{"QueryAsset":`)
	prefixQuotData      = []byte(`{"QuotData":`)
	prefixQuotDeal      = []byte(`{"QuotDeal":`)
	prefixQuotOrder     = []byte(`{"QuotOrder":`)
	prefixQuotStatic    = []byte(`{"QuotStatic":`)
)

// decodeMessage parse gateway json body into an event, login replies
// come back as *payloadLoginReply. Second value is the message type label.
func decodeMessage(body []byte) (interface{}, string, error) {
	switch {
	case bytes.HasPrefix(body, prefixLoginReply):
		var msg messageLoginReply
		if err := jsoniter.Unmarshal(body, &msg); err != nil {
			return nil, "loginReply", errors.WithMessage(err, "fail parse login reply")
		}
		return &msg.Data, "loginReply", nil

	case bytes.HasPrefix(body, prefixOrderReport):
		var msg messageOrderReport
		if err := jsoniter.Unmarshal(body, &msg); err != nil {
			return nil, "orderReport", errors.WithMessage(err, "fail parse order report")
		}
		return &OrderReportEvent{Order: msg.Data}, "orderReport", nil

	case bytes.HasPrefix(body, prefixTradeReport):
		var msg messageTradeReport
		if err := jsoniter.Unmarshal(body, &msg); err != nil {
			return nil, "tradeReport", errors.WithMessage(err, "fail parse trade report")
		}
		return &TradeReportEvent{Trade: msg.Data}, "tradeReport", nil

	case bytes.HasPrefix(body, prefixQueryOrder):
		var msg messageQueryOrder
		if err := jsoniter.Unmarshal(body, &msg); err != nil {
			return nil, "queryOrder", errors.WithMessage(err, "fail parse query order")
		}
		return &QueryOrderEvent{RequestID: msg.Data.RequestID, IsLast: msg.Data.IsLast, Order: msg.Data.Data}, "queryOrder", nil

	case bytes.HasPrefix(body, prefixQueryTrade):
		var msg messageQueryTrade
		if err := jsoniter.Unmarshal(body, &msg); err != nil {
			return nil, "queryTrade", errors.WithMessage(err, "fail parse query trade")
		}
		return &QueryTradeEvent{RequestID: msg.Data.RequestID, IsLast: msg.Data.IsLast, Trade: msg.Data.Data}, "queryTrade", nil

	case bytes.HasPrefix(body, prefixQueryPosition):
		var msg messageQueryPosition
		if err := jsoniter.Unmarshal(body, &msg); err != nil {
			return nil, "queryPosition", errors.WithMessage(err, "fail parse query position")
		}
		return &QueryPositionEvent{RequestID: msg.Data.RequestID, IsLast: msg.Data.IsLast, Position: msg.Data.Data}, "queryPosition", nil

	case bytes.HasPrefix(body, prefixQueryAsset):
		var msg messageQueryAsset
		if err := jsoniter.Unmarshal(body, &msg); err != nil {
			return nil, "queryAsset", errors.WithMessage(err, "fail parse query asset")
		}
		return &QueryAssetEvent{RequestID: msg.Data.RequestID, IsLast: msg.Data.IsLast, Asset: msg.Data.Data}, "queryAsset", nil

	case bytes.HasPrefix(body, prefixQuotData):
		var msg messageQuotData
		if err := jsoniter.Unmarshal(body, &msg); err != nil {
			return nil, "quotData", errors.WithMessage(err, "fail parse quotation data")
		}
		return &QuotDataEvent{Data: msg.Data}, "quotData", nil

	case bytes.HasPrefix(body, prefixQuotDeal):
		var msg messageQuotDeal
		if err := jsoniter.Unmarshal(body, &msg); err != nil {
			return nil, "quotDeal", errors.WithMessage(err, "fail parse quotation deal")
		}
		return &QuotDealEvent{Deal: msg.Data}, "quotDeal", nil

	case bytes.HasPrefix(body, prefixQuotOrder):
		var msg messageQuotOrder
		if err := jsoniter.Unmarshal(body, &msg); err != nil {
			return nil, "quotOrder", errors.WithMessage(err, "fail parse quotation order")
		}
		return &QuotOrderEvent{Order: msg.Data}, "quotOrder", nil

	case bytes.HasPrefix(body, prefixQuotStatic):
		var msg messageQuotStatic
		if err := jsoniter.Unmarshal(body, &msg); err != nil {
			return nil, "quotStatic", errors.WithMessage(err, "fail parse static data")
		}
		return &QuotStaticEvent{RequestID: msg.Data.RequestID, IsLast: msg.Data.IsLast, Data: msg.Data.Data}, "quotStatic", nil
	}
	return nil, "unknown", errors.New("unsupported message: " + string(body))
}

// splitFrame split "<topic>.<token>\x00<json>\x00" into topic and json body
func splitFrame(msg []byte) (topic []byte, body []byte, err error) {
	sep := bytes.IndexByte(msg, 0)
	if sep < 0 {
		return nil, nil, errors.New("frame without body separator")
	}
	header := msg[:sep]
	body = msg[sep+1:]
	if len(body) > 0 && body[len(body)-1] == 0 {
		body = body[:len(body)-1]
	}
	if dot := bytes.IndexByte(header, '.'); dot >= 0 {
		header = header[:dot]
	}
	return header, body, nil
}
