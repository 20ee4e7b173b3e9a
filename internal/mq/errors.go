package mq

import "errors"

var (
	// ErrNoChannel — AMQP канал недоступен (нет соединения).
	ErrNoChannel = errors.New("no amqp channel available")

	// ErrClosed — соединение закрыто через Close.
	ErrClosed = errors.New("amqp connection closed")

	// ErrPermanent — обработчик не сможет обработать сообщение и при повторе.
	// Сообщение уходит в DLQ без requeue.
	ErrPermanent = errors.New("permanent message failure")
)
