// Package stagehand contains the client transport for a stagehand audio host.
//
// A [Transport] owns one UDP socket.
// It subscribes to a host, runs a single receive loop
// that decodes tagged frames into [sproto.Message] values,
// and delivers them in order through a non-blocking queue
// that the application drains on its own schedule.
//
// The transport also watches the host's liveness:
// if nothing arrives for the configured timeout,
// it delivers a synthesized [sproto.ShutdownOccurred]
// so the application can treat silence the same as an orderly shutdown.
//
// Application state built from the delivered messages
// lives in package sstatus.
package stagehand
