//go:build integration

package infra

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// TempQueue declares a server-named exclusive queue bound to exchange and
// returns its deliveries. The queue disappears with the channel.
func TempQueue(conn *amqp.Connection, exchange, bindingKey string) (<-chan amqp.Delivery, func(), error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	closeCh := func() { _ = ch.Close() }

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		closeCh()
		return nil, nil, err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		closeCh()
		return nil, nil, err
	}
	if err := ch.QueueBind(q.Name, bindingKey, exchange, false, nil); err != nil {
		closeCh()
		return nil, nil, err
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		closeCh()
		return nil, nil, err
	}
	return msgs, closeCh, nil
}
