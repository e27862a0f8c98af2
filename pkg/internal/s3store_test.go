// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: Copyright The Vortex Authors

package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestS3StoreKeys(t *testing.T) {
	bare := &S3Store{prefix: ""}
	nested := &S3Store{prefix: "dbs/prod"}

	assert.Equal(t, "t.vtx/manifest.json", bare.key("t.vtx/manifest.json"))
	assert.Equal(t, "dbs/prod/t.vtx/manifest.json", nested.key("t.vtx/manifest.json"))
}

func TestS3StoreListPrefix(t *testing.T) {
	cases := []struct {
		storePrefix string
		prefix      string
		want        string
	}{
		// A directory prefix keeps its trailing slash, so listing table "t"
		// cannot match a sibling table named "t.vtxold".
		{"", "t.vtx/", "t.vtx/"},
		{"dbs/prod", "t.vtx/", "dbs/prod/t.vtx/"},
		// Listing everything under a prefixed database stays inside it.
		{"dbs/prod", "", "dbs/prod/"},
		{"", "", ""},
	}

	for _, tc := range cases {
		s := &S3Store{prefix: tc.storePrefix}
		assert.Equal(t, tc.want, s.listPrefix(tc.prefix),
			"store prefix %q, list prefix %q", tc.storePrefix, tc.prefix)
	}
}
