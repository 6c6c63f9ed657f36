// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
)

// ErrNoCredential is returned when a privileged operation is attempted
// before the credential gate has stored a validated credential.
var ErrNoCredential = errors.New("no validated credential in session")

// Session is the process-wide state: validated sudo credential,
// detected distribution, and interaction mode. It is constructed once
// at startup, written once by the credential gate and the distribution
// detector, and read-only afterwards. There is exactly one thread of
// control, so no locking.
//
// The credential lives in a memguard enclave: encrypted at rest in
// memory, decrypted only inside WithCredential, and never persisted or
// logged.
type Session struct {
	// ID tags every log entry of this console run.
	ID string

	// Distro is the detected distribution family. Set once by
	// DetectDistro during startup.
	Distro Distro

	// NonInteractive is true when the console must never read from
	// stdin after startup.
	NonInteractive bool

	credential *memguard.Enclave
}

// NewSession creates a session with a fresh id and no credential.
func NewSession(nonInteractive bool) *Session {
	return &Session{
		ID:             uuid.NewString(),
		Distro:         DistroUnknown,
		NonInteractive: nonInteractive,
	}
}

// SetCredential seals the secret into the session's enclave. The
// passed slice is wiped by memguard; callers must not reuse it.
func (s *Session) SetCredential(secret []byte) {
	s.credential = memguard.NewEnclave(secret)
}

// HasCredential reports whether a validated credential is stored.
func (s *Session) HasCredential() bool {
	return s.credential != nil
}

// WithCredential opens the enclave and passes the plaintext secret to
// fn. The locked buffer is destroyed when fn returns; fn must not
// retain the slice. Returns ErrNoCredential when the gate has not run.
func (s *Session) WithCredential(fn func(secret []byte) error) error {
	if s.credential == nil {
		return ErrNoCredential
	}
	buf, err := s.credential.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}
