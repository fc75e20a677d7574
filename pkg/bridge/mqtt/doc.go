// Package mqtt bridges a link to an MQTT broker.
//
// Topics of a node are under swuart/NODE/ after the prefix from the broker
// URL: rx carries received frames, status the link counters, tx accepts
// Send and StatusQuery commands, and meta holds the retained node
// description.
package mqtt
