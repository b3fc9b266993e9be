package rabbit

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestDeliveryTopics(t *testing.T) {
	d := amqp.Delivery{
		RoutingKey: "broadcast.ride.42",
		Headers:    amqp.Table{headerTopics: "ride.42,new-bookings"},
	}
	assert.Equal(t, []string{"ride.42", "new-bookings"}, deliveryTopics(d))

	d.Headers = nil
	assert.Equal(t, []string{"ride.42"}, deliveryTopics(d))
}
