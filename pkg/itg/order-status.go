package itg

import (
	"errors"
	"strconv"
)

type OrderStatus int

const (
	OrderStatusPending OrderStatus = iota
	OrderStatusAck
	OrderStatusRejected
	OrderStatusConfirmed
	OrderStatusCancelled
	OrderStatusPartialFilled
	OrderStatusAllFilled
	OrderStatusCancelPending
	OrderStatusFillCancelPending
	OrderStatusFillCancelEnd
	OrderStatusError

	orderStatusPendingStr           = "pending"
	orderStatusAckStr               = "ack"
	orderStatusRejectedStr          = "rejected"
	orderStatusConfirmedStr         = "confirmed"
	orderStatusCancelledStr         = "cancelled"
	orderStatusPartialFilledStr     = "partialFilled"
	orderStatusAllFilledStr         = "allFilled"
	orderStatusCancelPendingStr     = "cancelPending"
	orderStatusFillCancelPendingStr = "fillCancelPending"
	orderStatusFillCancelEndStr     = "fillCancelEnd"
	orderStatusErrorStr             = "error"
)

var orderStatusNames = [...]string{
	OrderStatusPending:           orderStatusPendingStr,
	OrderStatusAck:               orderStatusAckStr,
	OrderStatusRejected:          orderStatusRejectedStr,
	OrderStatusConfirmed:         orderStatusConfirmedStr,
	OrderStatusCancelled:         orderStatusCancelledStr,
	OrderStatusPartialFilled:     orderStatusPartialFilledStr,
	OrderStatusAllFilled:         orderStatusAllFilledStr,
	OrderStatusCancelPending:     orderStatusCancelPendingStr,
	OrderStatusFillCancelPending: orderStatusFillCancelPendingStr,
	OrderStatusFillCancelEnd:     orderStatusFillCancelEndStr,
	OrderStatusError:             orderStatusErrorStr,
}

func (os OrderStatus) String() string {
	if os.IsValid() {
		return orderStatusNames[os]
	}
	return "unknown(" + strconv.Itoa(int(os)) + ")"
}

func (os OrderStatus) IsValid() bool {
	return os >= OrderStatusPending && os <= OrderStatusError
}

// IsFinal report status after which no more reports expected for the order
func (os OrderStatus) IsFinal() bool {
	switch os {
	case OrderStatusRejected,
		OrderStatusCancelled,
		OrderStatusAllFilled,
		OrderStatusFillCancelEnd,
		OrderStatusError:
		return true
	}
	return false
}

// IsCancellable report order is still working on exchange side
func (os OrderStatus) IsCancellable() bool {
	return os == OrderStatusAck || os == OrderStatusConfirmed || os == OrderStatusPartialFilled
}

func (os OrderStatus) MarshalJSON() ([]byte, error) {
	if !os.IsValid() {
		return nil, errors.New("invalid order status json conversion: " + strconv.Itoa(int(os)))
	}
	return []byte(strconv.Itoa(int(os))), nil
}

// UnmarshalJSON accept numeric code as number or string, vendor reports carry status text
func (os *OrderStatus) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	val, err := strconv.Atoi(raw)
	if err != nil || !OrderStatus(val).IsValid() {
		return errors.New("unsupported order status: " + string(data))
	}
	*os = OrderStatus(val)
	return nil
}

func OrderStatusStrToType(value string) (OrderStatus, error) {
	for status, name := range orderStatusNames {
		if name == value {
			return OrderStatus(status), nil
		}
	}
	return 0, errors.New("unsupported order status: " + value)
}
