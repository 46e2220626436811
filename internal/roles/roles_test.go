package roles

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelsAreTotallyOrdered(t *testing.T) {
	seen := make(map[int]Role)
	prev := 1 << 30
	for _, info := range All() {
		require.Greater(t, info.HierarchyLevel, 0, "role %s", info.ID)
		other, dup := seen[info.HierarchyLevel]
		require.False(t, dup, "%s and %s share level %d", info.ID, other, info.HierarchyLevel)
		seen[info.HierarchyLevel] = info.ID
		require.Less(t, info.HierarchyLevel, prev, "catalogue must be ordered highest first")
		prev = info.HierarchyLevel
	}
}

func TestDocumentedLevels(t *testing.T) {
	assert.Equal(t, 5, SuperAdmin.Level())
	assert.Equal(t, 4, Admin.Level())
	assert.Equal(t, 3, Moderator.Level())
	assert.Equal(t, 2, Contributor.Level())
	assert.Equal(t, 1, User.Level())
	assert.Equal(t, 0, Unknown.Level())
	assert.Equal(t, SuperAdmin, Top())
	assert.Equal(t, User, Lowest())
}

func TestParseFailsSafe(t *testing.T) {
	assert.Equal(t, Admin, Parse("admin"))
	assert.Equal(t, Admin, Parse(" Admin "))
	assert.Equal(t, Unknown, Parse("translator"))
	assert.Equal(t, Unknown, Parse(""))
	assert.Equal(t, Unknown, Parse("root"))
	assert.Equal(t, 0, Parse("root").Level())
	assert.False(t, Valid(Unknown))
}

func TestCapabilities(t *testing.T) {
	assert.True(t, SuperAdmin.Has(CapManageUsers))
	assert.True(t, Admin.Has(CapManageUsers))
	assert.False(t, Moderator.Has(CapManageUsers))
	assert.True(t, Moderator.Has(CapManageDictionary))
	assert.True(t, Moderator.Has(CapManageTranslations))
	assert.False(t, Contributor.Has(CapManageTranslations))
	assert.False(t, User.Has(CapManageDictionary))
	assert.False(t, Unknown.Has(CapManageUsers))
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0].HierarchyLevel = 99
	assert.Equal(t, 5, SuperAdmin.Level())
}

func TestTextEncoding(t *testing.T) {
	var body struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"moderator"}`), &body))
	assert.Equal(t, Moderator, body.Role)

	err := json.Unmarshal([]byte(`{"role":"overlord"}`), &body)
	assert.Error(t, err)

	out, err := json.Marshal(Admin.Info())
	require.NoError(t, err)
	assert.Contains(t, string(out), `"role_id":"admin"`)
	assert.Contains(t, string(out), `"hierarchy_level":4`)
}
