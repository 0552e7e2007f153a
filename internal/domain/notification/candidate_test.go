package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupRows_ProjectRule(t *testing.T) {
	rows := []Row{
		{SubjectID: "MALARIA-01", Detail: "UNCST", ExpiryDate: day("2024-02-01"), Status: "OK", Address: "pi@example.org"},
		{SubjectID: "MALARIA-01", Detail: "UNCST", ExpiryDate: day("2024-02-01"), Status: "OK", Address: "coord@example.org"},
		{SubjectID: "MALARIA-01", Detail: "SOMREC", ExpiryDate: day("2024-02-10"), Status: "OK", Address: "pi@example.org"},
		{SubjectID: "HIV-22", Detail: "UNCST", ExpiryDate: day("2024-02-01"), Status: "OK", Address: "PI@example.org"},
	}

	got := GroupRows(testProjectRule(), rows, "admin@example.org")
	require.Len(t, got, 3)

	assert.Equal(t, "MALARIA-01", got[0].Project())
	assert.Equal(t, "UNCST", got[0].RegBody())
	assert.Equal(t, []string{"pi@example.org", "coord@example.org", "admin@example.org"}, got[0].Recipients.Slice())

	assert.Equal(t, "SOMREC", got[1].RegBody())
	assert.Equal(t, "2024-02-10", got[1].Expiry())
	assert.Equal(t, 2, got[1].Recipients.Len())

	assert.Equal(t, "HIV-22", got[2].SubjectID)
	assert.Equal(t, "needs-attention", got[2].Rule)
}

func TestGroupRows_AdminAlreadyPresentIsNotDuplicated(t *testing.T) {
	rows := []Row{
		{SubjectID: "7", Detail: "Jane Doe", ExpiryDate: day("2024-01-05"), Address: "Admin@Example.org"},
	}
	got := GroupRows(testCertificateRule(7), rows, "admin@example.org")
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Recipients.Len())
	assert.Equal(t, "APL", got[0].Certificate)
	assert.Equal(t, "Jane Doe", got[0].Name())
}

func TestGroupRows_Empty(t *testing.T) {
	assert.Empty(t, GroupRows(testProjectRule(), nil, "admin@example.org"))
}

func TestRecipientSet(t *testing.T) {
	var s RecipientSet
	assert.True(t, s.Add(" a@example.org "))
	assert.False(t, s.Add("A@EXAMPLE.ORG"))
	assert.False(t, s.Add(""))
	assert.False(t, s.Add("   "))
	assert.True(t, s.Add("b@example.org"))

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("a@EXAMPLE.org"))
	assert.False(t, s.Contains("c@example.org"))
	assert.Equal(t, "a@example.org;b@example.org", s.String())

	cp := s.Slice()
	cp[0] = "mutated"
	assert.Equal(t, "a@example.org", s.Slice()[0], "Slice returns a copy")

	assert.Equal(t, 2, NewRecipientSet("x@example.org", "X@example.org", "y@example.org").Len())
}

func TestRender(t *testing.T) {
	c := GroupRows(testProjectRule(), []Row{
		{SubjectID: "MALARIA-01", Detail: "UNCST", ExpiryDate: day("2024-02-01"), Address: "pi@example.org"},
	}, "")[0]

	msg, err := Render(testProjectRule(), c, "reg@example.org")
	require.NoError(t, err)
	assert.Equal(t, "reg@example.org", msg.From)
	assert.Equal(t, "IRB Renewal Requires Your Attention", msg.Subject)
	assert.Equal(t, "Study MALARIA-01 at UNCST expires on 2024-02-01.", msg.Body)
	assert.Equal(t, []string{"pi@example.org"}, msg.To.Slice())

	bad := testProjectRule()
	bad.Body = "{{.Unknown}}"
	_, err = Render(bad, c, "reg@example.org")
	assert.Error(t, err)
}

func TestRender_TemplateFunctions(t *testing.T) {
	rule := testCertificateRule(7)
	rule.Subject = `{{.Certificate | lower}} expires {{dateInZone "02 Jan 2006" .ExpiryDate "UTC"}}`
	require.NoError(t, rule.Validate())

	c := Candidate{Certificate: "GCP", ExpiryDate: day("2024-01-05")}
	msg, err := Render(rule, c, "")
	require.NoError(t, err)
	assert.Equal(t, "gcp expires 05 Jan 2024", msg.Subject)
}
