// Package delivery pushes captured buffers from a producer to a consumer
// handler without ever blocking the producer.
//
// Each Channel has one pending slot. Offer copies the producer's buffer into
// pooled storage and parks it in the slot; a dispatcher goroutine hands it to
// the handler. When a new buffer arrives while an older one is still
// waiting, the older one is dropped (drop-oldest-unconsumed), so a slow
// consumer sees the freshest data at the cost of gaps. Buffers whose
// timestamp does not advance are dropped as out of order.
//
// Buffers passed to a handler are only valid for the duration of the call;
// use Frame.Clone or SampleBuffer.Clone to keep one.
//
// Close discards the pending buffer and waits for an in-flight handler call
// to return. After Close returns the handler is never invoked again.
package delivery
