// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFullyQualify(t *testing.T) {
	cases := []struct {
		name                        string
		partition, namespace, topic string
		wantOK                      bool
		wantFQ                      string
	}{
		{"basic", "p1", "ns", "/a", true, "p1@/ns/a"},
		{"no namespace", "p1", "", "/a", true, "p1@/a"},
		{"topic without leading slash", "p1", "ns", "a", true, "p1@/ns/a"},
		{"empty partition", "", "ns", "/a", false, ""},
		{"empty topic", "p1", "ns", "", false, ""},
		{"topic is only slash", "p1", "ns", "/", false, ""},
		{"partition has @", "p@1", "ns", "/a", false, ""},
		{"topic has @", "p1", "ns", "/a@b", false, ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fq, ok := fullyQualify(c.partition, c.namespace, c.topic)
			require.Equal(t, c.wantOK, ok)
			if c.wantOK {
				require.Equal(t, c.wantFQ, fq)
			}
		})
	}
}

func TestStripPartition(t *testing.T) {
	require.Equal(t, "/ns/a", stripPartition("p1@/ns/a"))
	require.Equal(t, "/a", stripPartition("p1@/a"))
	require.Equal(t, "/a", stripPartition("/a"))
}

func TestFullyQualifyRoundTripsWithStripPartition(t *testing.T) {
	fq, ok := fullyQualify("p1", "ns", "/widgets")
	require.True(t, ok)
	require.Equal(t, "/ns/widgets", stripPartition(fq))
}
