// Package influxdb provides time-series storage for engagement metrics.
//
// It wraps the official influxdb-client-go v2 library for recording:
//   - access decisions (allows and denials per event and capability)
//   - share token consumption
//   - visibility transitions and their session impact
//   - media upload volume
//
// Writes are non-blocking and batched per the configured batch_size and
// flush_interval; async write errors surface through SetOnError. All
// methods are safe for concurrent use.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil { ... }
//	defer client.Close()
//
//	client.WriteTokenUse("evt-1a2b3c4d", "tok-5e6f7a8b")
package influxdb
