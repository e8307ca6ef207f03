package main

import (
	"bytes"
	"testing"

	"schoolhub/internal/client"
	"schoolhub/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseToggle(t *testing.T) {
	tests := []struct {
		arg     string
		module  string
		want    bool
		wantErr bool
	}{
		{"cbt=on", "cbt", true, false},
		{"fees=off", "fees", false, false},
		{"exams=true", "exams", true, false},
		{"groups=0", "groups", false, false},
		{"recruitment=Enabled", "recruitment", true, false},
		{"cbt", "", false, true},
		{"=on", "", false, true},
		{"cbt=maybe", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			module, v, err := parseToggle(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.module, module)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestParseCell(t *testing.T) {
	module, action, level, err := parseCell("exams.View=ALL")
	require.NoError(t, err)
	assert.Equal(t, "exams", module)
	assert.Equal(t, model.ActionView, action)
	assert.Equal(t, "all", level)

	module, action, _, err = parseCell("fee.items.delete=none")
	require.NoError(t, err)
	assert.Equal(t, "fee.items", module)
	assert.Equal(t, model.ActionDelete, action)

	for _, bad := range []string{"exams=all", ".view=all", "exams.=all", "exams.view"} {
		_, _, _, err := parseCell(bad)
		assert.Error(t, err, bad)
	}
}

func TestResolveRole(t *testing.T) {
	roles := []client.RoleRef{
		{ID: "7f0c2a4e-0000-0000-0000-000000000001", Name: "Teacher"},
		{ID: "teacher", Name: "Odd ID"},
	}

	r, err := resolveRole(roles, "teacher")
	require.NoError(t, err)
	assert.Equal(t, "Odd ID", r.Name, "id match wins over name match")

	r, err = resolveRole(roles, "TEACHER")
	require.NoError(t, err)
	assert.Equal(t, "Teacher", r.Name)

	_, err = resolveRole(roles, "bursar")
	assert.Error(t, err)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	err := writeYAML(&buf, []roleModulesView{{Role: "Teacher", ID: "r1", Modules: map[string]bool{"cbt": true}}})
	require.NoError(t, err)

	var back []roleModulesView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	require.Len(t, back, 1)
	assert.Equal(t, "Teacher", back[0].Role)
	assert.True(t, back[0].Modules["cbt"])
	assert.Contains(t, buf.String(), "  cbt: true")
}
