// Package mqtt is the notification bus between the core service and its
// consumers (client apps, mailers, downstream workers).
//
// The core publishes domain notifications (visibility transitions,
// participant decisions, token revocations, media reviews) on a stable
// topic hierarchy under the "gatherly" prefix. Consumers subscribe with
// MQTT wildcards; delivery guarantees follow the configured QoS.
//
// The client wraps paho.mqtt.golang with connection management, automatic
// re-subscription on reconnect, and a retained system status topic with a
// Last Will message so consumers can detect an unclean core shutdown.
//
// All methods are safe for concurrent use.
package mqtt
