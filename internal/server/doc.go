// Package server implements the HTTP and WebSocket surface of PairChat.
//
// Connections are owned by the Hub, which runs their read and write pumps.
// Frames read from a connection go to Ingress, which validates them, updates the
// presence registry, calls the message store and hands events to the presence
// router for delivery. The REST handlers share the same Ingress so messages
// written over HTTP reach live connections too.
package server
