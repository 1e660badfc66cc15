package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderCancelled     = "order.cancelled"
	TopicOrderStatusChanged = "order.status.changed"
)

// Topics consumed by the status projector.
var Topics = []string{TopicOrderCreated, TopicOrderCancelled, TopicOrderStatusChanged}

func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderCreated:
		return TopicOrderCreated
	case EventOrderCancelled:
		return TopicOrderCancelled
	default:
		return TopicOrderStatusChanged
	}
}

// Partition key = order id, so all events of one order stay ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
