// Package session manages viewer sessions. It handles session creation,
// lookup, expiration, and storage of ephemeral session state backed by
// Redis. One session exists per WebSocket connection; a session is idle,
// watching a stream, or broadcasting one.
package session
