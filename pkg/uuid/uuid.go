// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

// Package uuid provides a UUID identity provider, adapted from the
// gofrs/uuid-backed provider used across the wider messaging platform this
// module's node/publisher identity scheme is modeled on.
package uuid

import (
	"github.com/gofrs/uuid/v5"

	"github.com/Voldivh/gz-transport/pkg/errors"
)

// ErrGeneratingID indicates error in generating UUID.
var ErrGeneratingID = errors.New("failed to generate uuid")

// IDProvider specifies an API for generating unique identifiers.
type IDProvider interface {
	// ID generates the unique identifier.
	ID() (string, error)
}

type uuidProvider struct{}

// New instantiates a UUID provider.
func New() IDProvider {
	return &uuidProvider{}
}

func (up *uuidProvider) ID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", errors.Wrap(ErrGeneratingID, err)
	}

	return id.String(), nil
}
