package tenf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	k := NewKey(FollowValidations, "2024-06", "alice")
	assert.Equal(t, "tenf-follow-validations/2024-06/alice.json", k.String())
	assert.Equal(t, "tenf-follow-validations/2024-06/", k.Prefix())

	// Deterministic, and the suffix is appended once.
	assert.Equal(t, k, NewKey(FollowValidations, "2024-06", "alice.json"))
	assert.Equal(t, k.String(), NewKey(FollowValidations, "2024-06", "alice").String())
}

func TestMonthPartition(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 00:30 on July 1st in Paris is still June in UTC.
	ts := time.Date(2024, time.July, 1, 0, 30, 0, 0, paris)
	assert.Equal(t, "2024-06", MonthPartition(ts))

	k := MonthKey(FollowValidations, ts, "bob")
	assert.Equal(t, "tenf-follow-validations/2024-06/bob.json", k.String())

	month, err := ParseMonth("2024-06")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), month)

	_, err = ParseMonth("June 2024")
	assert.True(t, IsInvalidKey(err))
}

func TestPrefixes(t *testing.T) {
	assert.Equal(t, "c/", CollectionPrefix("c"))
	assert.Equal(t, "c/2024-06/", PartitionPrefix("c", "2024-06"))
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("tenf-follow-validations/2024-06/alice.json")
	require.NoError(t, err)
	assert.Equal(t, Key{Collection: FollowValidations, Partition: "2024-06", Entity: "alice"}, k)
	assert.Equal(t, "tenf-follow-validations/2024-06/alice.json", k.String())

	for _, bad := range []string{
		"",
		"c/2024-06",
		"c/2024-06/alice",
		"c/2024-06/.json",
		"c/x/2024-06/alice.json",
		"/c/2024-06/alice.json",
	} {
		_, err := ParseKey(bad)
		assert.Truef(t, IsInvalidKey(err), "ParseKey(%q) = %v", bad, err)
	}
}

func TestKey_Validate(t *testing.T) {
	require.NoError(t, NewKey("c", "2024-06", "a").Validate())

	cases := []Key{
		{Collection: "", Partition: "2024-06", Entity: "a"},
		{Collection: "c", Partition: "", Entity: "a"},
		{Collection: "c", Partition: "2024-06", Entity: ""},
		{Collection: "c", Partition: "2024/06", Entity: "a"},
		{Collection: "c", Partition: "2024-06", Entity: "a\\b"},
	}
	for _, k := range cases {
		err := k.Validate()
		assert.Truef(t, IsInvalidKey(err), "%+v: %v", k, err)
	}
}

func TestValidateKey(t *testing.T) {
	valid := []string{
		"a.json",
		"c/2024-06/a.json",
		"c/2024-06/staff.member.json",
		"c/2024-06/.bob.tmp",
		"c/.tenf-tmp/a.json",
	}
	for _, k := range valid {
		assert.NoErrorf(t, ValidateKey(k), "key %q", k)
	}

	invalid := []string{
		"",
		"/abs.json",
		"c//a.json",
		"c/./a.json",
		"c/../a.json",
		"c/2024-06/",
		"c\\2024-06\\a.json",
		"c/2024-06/a\x00.json",
		".tenf-tmp/2024-06/a.json",
	}
	for _, k := range invalid {
		err := ValidateKey(k)
		require.Errorf(t, err, "key %q", k)
		assert.ErrorIs(t, err, ErrInvalidKey)
	}
}

func TestValidatePrefix(t *testing.T) {
	for _, p := range []string{"", "c", "c/", "c/2024-06/", "c/2024-06/al"} {
		assert.NoErrorf(t, ValidatePrefix(p), "prefix %q", p)
	}
	for _, p := range []string{"/", "/c/", "c//", "../", "c/../", ".tenf-tmp/"} {
		assert.Errorf(t, ValidatePrefix(p), "prefix %q", p)
	}
}
