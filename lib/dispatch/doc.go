// Package dispatch feeds requests from many producers into one device.
//
// A Dispatcher owns N inbound queues (lock-free MPSC queues sharing one notify
// channel) and exactly one worker goroutine. The worker sweeps the queues
// round-robin, taking at most one request per queue per sweep, executes it on
// the device and runs one background GC pass after every completed request.
// The device is therefore only ever touched by the worker and needs no locks.
//
// Submit blocks until the request completed or the context is done. Results
// are routed back through a concurrent map of per-request channels, keyed by a
// request id.
package dispatch
