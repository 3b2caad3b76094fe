package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeekKind(t *testing.T) {
	kind, err := PeekKind([]byte(`{"_id":"p1","_type":"person","name":"Wanda"}`))
	require.NoError(t, err)
	assert.Equal(t, "person", kind)
}

func TestPeekKind_Missing(t *testing.T) {
	_, err := PeekKind([]byte(`{"_id":"p1","name":"Wanda"}`))
	assert.Error(t, err)
}

func TestDecode_Person(t *testing.T) {
	rec, err := Decode(KindPerson, []byte(`{
		"_id":"p1","_type":"person","name":"Wanda Smith",
		"birth_date":"1962-01-01",
		"other_names":[{"name":"Wanda Jones","note":"maiden name"}]
	}`))
	require.NoError(t, err)

	p, ok := rec.(*Person)
	require.True(t, ok)
	assert.Equal(t, "p1", p.TransientID())
	assert.Equal(t, []string{"Wanda Smith", "Wanda Jones"}, p.AllNames())
}

func TestDecode_UndeclaredFieldRejected(t *testing.T) {
	_, err := Decode(KindPerson, []byte(`{
		"_id":"p1","_type":"person","name":"Wanda","shoe_size":9
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared field")
}

func TestDecode_ExtrasAreOpen(t *testing.T) {
	rec, err := Decode(KindPerson, []byte(`{
		"_id":"p1","_type":"person","name":"Wanda",
		"extras":{"shoe_size":9,"anything":["goes"]}
	}`))
	require.NoError(t, err)
	p := rec.(*Person)
	assert.Equal(t, float64(9), p.Extras["shoe_size"])
}

func TestDecode_MissingID(t *testing.T) {
	_, err := Decode(KindPerson, []byte(`{"_type":"person","name":"Wanda"}`))
	assert.Error(t, err)
}

func TestDecode_ValidateRuns(t *testing.T) {
	_, err := Decode(KindBill, []byte(`{"_id":"b1","_type":"bill","identifier":"HB 1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "legislative session")
}

func TestDecode_UnknownKind(t *testing.T) {
	_, err := Decode("committee_report", []byte(`{"_id":"x"}`))
	assert.Error(t, err)
}

func TestDecode_BillWithRefs(t *testing.T) {
	rec, err := Decode(KindBill, []byte(`{
		"_id":"b1","_type":"bill","identifier":"HB 1","legislative_session":"2021",
		"from_organization":"~{\"classification\":\"lower\"}",
		"actions":[{"description":"Introduced","date":"2021-01-05","organization_id":"~{\"classification\":\"lower\"}","order":0}]
	}`))
	require.NoError(t, err)

	b := rec.(*Bill)
	assert.True(t, b.FromOrganization.IsLookup())
	require.Len(t, b.Actions, 1)
	assert.Equal(t, map[string]string{"classification": "lower"}, b.Actions[0].Organization.Lookup)
}

func TestCanonical_DropsIdentityTags(t *testing.T) {
	rec, err := Decode(KindPerson, []byte(`{"_id":"p1","_type":"person","name":"Wanda"}`))
	require.NoError(t, err)

	fields, err := Canonical(rec)
	require.NoError(t, err)
	assert.NotContains(t, fields, "_id")
	assert.NotContains(t, fields, "_type")
	assert.Equal(t, "Wanda", fields["name"])
}

func TestKinds_CoversDecode(t *testing.T) {
	for _, k := range Kinds() {
		_, err := Decode(k, []byte(`{}`))
		// Every listed kind must at least reach validation.
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "unknown record kind")
	}
}
