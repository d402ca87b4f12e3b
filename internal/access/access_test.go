package access

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hit struct {
	id string
	c  library.Classification
}

func (h hit) Visibility() library.Classification { return h.c }

func TestSetParseAndString(t *testing.T) {
	s, err := ParseSet("internal, public,,")
	require.NoError(t, err)
	assert.Equal(t, "public,internal", s.String())
	assert.True(t, s.Contains(library.Internal))
	assert.False(t, s.Contains(library.Restricted))

	_, err = ParseSet("public,secret")
	assert.Error(t, err)

	assert.Equal(t, []string{"public", "internal", "confidential", "restricted"}, All.Strings())
	assert.False(t, NewSet(library.Classification(7)).Contains(library.Classification(7)))
}

func TestFilterKeepsOrder(t *testing.T) {
	items := []hit{
		{"d3", library.Restricted},
		{"d1", library.Public},
		{"d2", library.Internal},
		{"d4", library.Public},
	}
	got := Filter(items, PublicOnly)
	require.Len(t, got, 2)
	assert.Equal(t, "d1", got[0].id)
	assert.Equal(t, "d4", got[1].id)

	assert.Len(t, Filter(items, All), 4)
	assert.Empty(t, Filter(items, Set(0)))
}

func TestRolePolicy(t *testing.T) {
	tests := []struct {
		role     Role
		allowed  string
		upload   bool
		manage   bool
		advanced bool
	}{
		{RoleScientist, "public,internal,confidential", true, false, true},
		{RoleStudent, "public", false, false, false},
		{RoleLibrarian, "public,internal,confidential", true, true, true},
		{RoleAdmin, "public,internal,confidential,restricted", true, true, true},
		{RoleGuest, "public", false, false, false},
		{Role("janitor"), "public", false, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.role.Classifications().String())
			assert.Equal(t, tt.upload, tt.role.CanUpload())
			assert.Equal(t, tt.manage, tt.role.CanManage())
			assert.Equal(t, tt.advanced, tt.role.CanUseAdvancedSearch())
		})
	}
	assert.Equal(t, RoleAdmin, ParseRole(" Admin "))
	assert.False(t, Role("janitor").Known())
}

func TestCallerHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	req.Header.Set(HeaderAllowedClassifications, "restricted")
	ForRole("key-1", RoleStudent).Apply(req.Header)

	c := FromRequest(req)
	assert.Equal(t, "key-1", c.ID)
	assert.Equal(t, RoleStudent, c.Role)
	assert.Equal(t, PublicOnly, c.Allowed)
	assert.False(t, c.Advanced)
}

func TestFromRequestDefaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, PublicOnly, FromRequest(req).Allowed)

	req.Header.Set(HeaderAllowedClassifications, "bogus")
	assert.Equal(t, PublicOnly, FromRequest(req).Allowed)

	req.Header.Set(HeaderAllowedClassifications, "public,confidential")
	req.Header.Set(HeaderAdvancedSearch, "true")
	c := FromRequest(req)
	assert.True(t, c.Allowed.Contains(library.Confidential))
	assert.True(t, c.Advanced)
}
