package validate

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/errs"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/model"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	raw, err := Decode(strings.NewReader(s))
	require.NoError(t, err)
	return raw
}

func fields(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *errs.ValidationError
	require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
	out := map[string]string{}
	for _, v := range ve.Violations {
		out[v.Field] = v.Message
	}
	return out
}

func TestDecode(t *testing.T) {
	raw := decode(t, `{"budgetMin": 1500000, "unknown": true}`)
	require.Contains(t, raw, "unknown")

	for _, bad := range []string{``, `null`, `[]`, `"x"`, `{`} {
		_, err := Decode(strings.NewReader(bad))
		require.Contains(t, fields(t, err), "body", bad)
	}
}

func TestUpdate_ReportsEveryViolation(t *testing.T) {
	raw := decode(t, `{
		"fullName": "A",
		"phone": "123",
		"email": "not-an-email",
		"city": "Delhi",
		"budgetMin": -1,
		"budgetMax": 1.5,
		"tags": ["ok", 3],
		"notes": null
	}`)
	_, _, err := Update(raw)
	got := fields(t, err)
	for _, f := range []string{"fullName", "phone", "email", "city", "budgetMin", "budgetMax", "tags[1]", "notes", TokenField} {
		require.Contains(t, got, f)
	}
	require.Equal(t, "required", got[TokenField])
	require.Contains(t, got["city"], "Chandigarh")
	require.Equal(t, "invalid type, expected string but got null", got["notes"])
}

func TestUpdate_Token(t *testing.T) {
	ts := "2025-09-01T10:00:00.123456Z"
	patch, tok, err := Update(decode(t, `{"updatedAt":"`+ts+`","status":"Qualified"}`))
	require.NoError(t, err)
	want, _ := time.Parse(time.RFC3339Nano, ts)
	require.True(t, want.Equal(tok))
	require.Equal(t, []string{"status"}, patch.Fields())

	_, _, err = Update(decode(t, `{"updatedAt":"yesterday"}`))
	require.Contains(t, fields(t, err), TokenField)

	_, _, err = Update(decode(t, `{"updatedAt":12}`))
	require.Contains(t, fields(t, err)[TokenField], "expected string")
}

func TestUpdate_EmptyPatchIsValid(t *testing.T) {
	patch, _, err := Update(decode(t, `{"updatedAt":"2025-09-01T10:00:00Z","ownerId":"ignored"}`))
	require.NoError(t, err)
	require.Empty(t, patch.Fields())
}

func TestCreate(t *testing.T) {
	_, err := Create(decode(t, `{"fullName":"Asha"}`))
	got := fields(t, err)
	for _, f := range []string{"phone", "city", "propertyType", "purpose", "timeline", "source"} {
		require.Equal(t, "required", got[f], f)
	}
	require.NotContains(t, got, "fullName")

	patch, err := Create(decode(t, `{
		"fullName":"Asha Verma","phone":"9876543210","city":"Mohali","propertyType":"Apartment",
		"bhk":"Two","purpose":"Buy","timeline":"_0_3m","source":"Website","budgetMin":5000000,
		"tags":["hot"]}`))
	require.NoError(t, err)
	require.Equal(t, model.BHKTwo, *patch.BHK)
	require.Equal(t, model.Timeline0To3m, *patch.Timeline)
	require.Equal(t, int64(5000000), *patch.BudgetMin)
	require.Equal(t, []string{"hot"}, *patch.Tags)
}

func TestFilter(t *testing.T) {
	f, page, err := Filter(url.Values{
		"search":   {"  asha "},
		"city":     {"Mohali"},
		"timeline": {"_3_6m"},
		"page":     {"3"},
	})
	require.NoError(t, err)
	require.Equal(t, "asha", f.Search)
	require.Equal(t, model.CityMohali, f.City)
	require.Equal(t, model.Timeline3To6m, f.Timeline)
	require.Equal(t, 3, page)

	for _, p := range []string{"", "0", "-2", "abc"} {
		_, page, err = Filter(url.Values{"page": {p}})
		require.NoError(t, err)
		require.Equal(t, 1, page, p)
	}

	_, _, err = Filter(url.Values{"status": {"Lost"}, "propertyType": {"Castle"}})
	got := fields(t, err)
	require.Contains(t, got, "status")
	require.Contains(t, got, "propertyType")
}

func TestCredentials(t *testing.T) {
	require.NoError(t, Credentials("a@b.co", "secret"))

	got := fields(t, Credentials("nope", "123"))
	require.Contains(t, got, "email")
	require.Contains(t, got, "password")
}

func TestDecode_RejectsTrailingData(t *testing.T) {
	_, err := Decode(strings.NewReader("{\"fullName\":\"Asha\"}\n\t "))
	require.NoError(t, err)

	for _, bad := range []string{`{"a":1} {"b":2}`, `{"a":1}]`, `{"a":1} x`} {
		_, err := Decode(strings.NewReader(bad))
		require.Contains(t, fields(t, err)["body"], "after the JSON object", bad)
	}
}

func TestBudget_ExactAndRange(t *testing.T) {
	patch, _, err := Update(decode(t, `{"updatedAt":"2025-09-01T10:00:00Z","budgetMin":9007199254740993,"budgetMax":9223372036854775807}`))
	require.NoError(t, err)
	require.Equal(t, int64(9007199254740993), *patch.BudgetMin)
	require.Equal(t, int64(9223372036854775807), *patch.BudgetMax)

	patch, _, err = Update(decode(t, `{"updatedAt":"2025-09-01T10:00:00Z","budgetMin":5e6}`))
	require.NoError(t, err)
	require.Equal(t, int64(5000000), *patch.BudgetMin)

	cases := map[string]string{
		`9223372036854775808`: "out of range",
		`1e400`:               "out of range",
		`12.5`:                "whole number",
		`-3`:                  "greater than or equal to 0",
		`"100"`:               "expected number but got string",
	}
	for in, want := range cases {
		_, _, err := Update(decode(t, `{"updatedAt":"2025-09-01T10:00:00Z","budgetMin":`+in+`}`))
		require.Contains(t, fields(t, err)["budgetMin"], want, in)
	}
}
