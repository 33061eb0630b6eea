// Package audit dispatches security-relevant events asynchronously.
//
// A [Dispatcher] buffers [Event] values and forwards them to a [Sink] on a
// single goroutine. When the buffer is full it either drops the event and
// counts it or blocks the caller, depending on [Config].DropIfFull.
//
// Sinks: [NoOpSink], [ChannelSink], [JSONWriterSink] and [LogrusSink].
//
// This package decides nothing about which events exist; the engine emits them.
package audit
