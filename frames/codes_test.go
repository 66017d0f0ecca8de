// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package frames

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodesString(t *testing.T) {
	c := Code{
		Reason: "test",
		Code:   0x1,
	}

	require.Equal(t, "test", c.String())
	require.Equal(t, "test", c.Error())
}

func TestClassOf(t *testing.T) {
	require.Equal(t, ClassDecode, ClassOf(fmt.Errorf("wrapped: %w", ErrHeaderParse)))
	require.Equal(t, ClassLiveness, ClassOf(ErrLivenessTimeout))
	require.Equal(t, ClassUnspecified, ClassOf(errors.New("plain")))
}

func TestIsDecodeError(t *testing.T) {
	require.True(t, IsDecodeError(ErrMalformedFrame))
	require.True(t, IsDecodeError(fmt.Errorf("%w: %w", ErrHeaderParse, ErrInvalidEscape)))
	require.False(t, IsDecodeError(ErrNotConnected))
	require.False(t, IsDecodeError(nil))
}
