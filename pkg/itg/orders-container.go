package itg

import (
	"sort"
	"sync"
)

// ordersContainer keep orders of the day per user, final orders stay for queries
type ordersContainer struct {
	mx    sync.RWMutex
	users map[string]map[string]OrderInfo
}

func newOrderContainer() *ordersContainer {
	return &ordersContainer{
		users: make(map[string]map[string]OrderInfo),
	}
}

func (con *ordersContainer) setOrders(userID string, orders []OrderInfo) {
	userOrders := make(map[string]OrderInfo, len(orders))
	for _, order := range orders {
		userOrders[order.OrderID] = order
	}
	con.mx.Lock()
	defer con.mx.Unlock()
	con.users[userID] = userOrders
}

// getOrders return user orders sorted by order id
func (con *ordersContainer) getOrders(userID string) ([]OrderInfo, bool) {
	con.mx.RLock()
	defer con.mx.RUnlock()

	ordersData, ok := con.users[userID]
	if !ok {
		return nil, false
	}
	result := make([]OrderInfo, 0, len(ordersData))
	for _, order := range ordersData {
		result = append(result, order)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OrderID < result[j].OrderID
	})
	return result, true
}

// getOrder get one order by its order id
func (con *ordersContainer) getOrder(userID string, orderID string) (OrderInfo, bool) {
	con.mx.RLock()
	defer con.mx.RUnlock()

	orderData, ok := con.users[userID][orderID]
	return orderData, ok
}

// handleReport apply order report, final order never goes back to working state.
// Returns false when report was ignored
func (con *ordersContainer) handleReport(userID string, report OrderInfo) bool {
	con.mx.Lock()
	defer con.mx.Unlock()

	userOrders, ok := con.users[userID]
	if !ok {
		userOrders = make(map[string]OrderInfo)
		con.users[userID] = userOrders
	}
	if exist, ok := userOrders[report.OrderID]; ok && exist.Status.IsFinal() && !report.Status.IsFinal() {
		return false
	}
	userOrders[report.OrderID] = report
	return true
}
