package types

import "errors"

// Domain specific errors for the round pipeline and card creation.
var (
	// ErrInvalidInput marks malformed coordinates or unparsable payloads.
	// Adapters drop these silently; it never crosses a component boundary.
	ErrInvalidInput = errors.New("invalid input")

	// ErrServiceUnavailable marks a geocoding/enrichment/RPC timeout or
	// non-2xx response. Callers fall back rather than failing the round.
	ErrServiceUnavailable = errors.New("external service unavailable")

	// ErrIncompleteRound means the round ended with no resolvable country
	// even after every fallback. Surfaced to the user; no card is created.
	ErrIncompleteRound = errors.New("round has no resolvable location")

	// ErrConfigurationMismatch means the target note model lacks usable
	// front/back fields.
	ErrConfigurationMismatch = errors.New("note model fields do not match")

	// ErrCardAlreadyCreated guards repeat card creation for a round; cleared
	// only by an explicit forced request.
	ErrCardAlreadyCreated = errors.New("card already created for this round")

	// ErrNotFound is returned by the store for unknown round keys.
	ErrNotFound = errors.New("round not found")
)
