package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderPaid          = "order.paid"
	TopicOrderStatusChanged = "order.status.changed"
	TopicOrderCancelled     = "order.cancelled"
	TopicInventoryDrift     = "inventory.drift"
	TopicPaymentSucceeded   = "payment.succeeded"
)

// TopicFor maps an event type to its topic.
func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderCreated:
		return TopicOrderCreated
	case EventOrderPaid:
		return TopicOrderPaid
	case EventOrderStatusChanged:
		return TopicOrderStatusChanged
	case EventOrderCancelled:
		return TopicOrderCancelled
	case EventInventoryDrift:
		return TopicInventoryDrift
	case EventPaymentSucceeded:
		return TopicPaymentSucceeded
	}
	return ""
}

// Partition key = order_id so all events of one order stay ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
