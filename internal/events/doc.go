// Package events delivers authentication events to the audit trail, MQTT
// and InfluxDB.
//
// The auth service records each event once through an auth.EventSink. A
// Fanout passes it on to every configured sink. Sinks that do I/O queue
// the event on a bounded channel and write it from a single goroutine,
// so a slow broker or a busy database never holds up a login. When a
// queue is full the event is dropped and a warning is logged.
package events
